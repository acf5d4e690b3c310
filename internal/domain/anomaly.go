package domain

import (
	"math"
	"time"
)

// AnomalyType names one of the five generic gaming/manipulation detectors
// that run against every wallet, distinct from the six insider-pattern
// subtypes in insider.go. Grounded on anomaly_detection.py::AnomalyType.
type AnomalyType string

const (
	AnomalyWinRate             AnomalyType = "WIN_RATE_ANOMALY"
	AnomalyTimingPattern       AnomalyType = "TIMING_PATTERN"
	AnomalyVolumeConcentration AnomalyType = "VOLUME_CONCENTRATION"
	AnomalyImpossibleSharpe    AnomalyType = "IMPOSSIBLE_SHARPE"
	AnomalyWinStreak           AnomalyType = "WIN_STREAK"
)

// AnomalyAlert is the domain-level output of any of the five generic
// detectors, later wrapped in the shared Alert envelope.
type AnomalyAlert struct {
	WalletID    string
	Type        AnomalyType
	Severity    AlertSeverity
	Confidence  float64
	Description string
	DetectedAt  time.Time
}

// AnomalyConfig holds the five detectors' thresholds, verbatim from
// anomaly_detection.py::AnomalyConfig.
type AnomalyConfig struct {
	MaxBelievableWinRate     float64
	MinTradesForWinRateCheck int
	TimingCVThreshold        float64
	TimingMeanIntervalSec    float64
	MinTradesForTimingCheck  int
	VolumeConcentrationMinTrades int
	SharpeImpossibilityThreshold float64
	MaxConsecutiveWins       int
}

// DefaultAnomalyConfig matches spec §4.9 detectors 1-5's literal thresholds.
var DefaultAnomalyConfig = AnomalyConfig{
	MaxBelievableWinRate:         0.85,
	MinTradesForWinRateCheck:     30,
	TimingCVThreshold:            0.1,
	TimingMeanIntervalSec:        5.0,
	MinTradesForTimingCheck:      10,
	VolumeConcentrationMinTrades: 100,
	SharpeImpossibilityThreshold: 5.0,
	MaxConsecutiveWins:           20,
}

// DetectWinRateAnomaly implements spec §4.9 detector 1: win_rate > 0.85 over
// >= 30 trades, escalating severity at 0.95 and 0.98. Verbatim from
// anomaly_detection.py::_check_win_rate_anomaly.
func DetectWinRateAnomaly(walletID string, totalTrades, winningTrades int, cfg AnomalyConfig, now time.Time) (AnomalyAlert, bool) {
	if totalTrades < cfg.MinTradesForWinRateCheck {
		return AnomalyAlert{}, false
	}
	winRate := float64(winningTrades) / float64(totalTrades)
	if winRate <= cfg.MaxBelievableWinRate {
		return AnomalyAlert{}, false
	}

	severity := SeverityMedium
	if winRate > 0.95 {
		severity = SeverityHigh
	}
	if winRate > 0.98 {
		severity = SeverityCritical
	}

	return AnomalyAlert{
		WalletID:    walletID,
		Type:        AnomalyWinRate,
		Severity:    severity,
		Confidence:  0.85,
		Description: "win rate statistically unlikely over sample size",
		DetectedAt:  now,
	}, true
}

// DetectTimingPattern implements spec §4.9 detector 2: coefficient of
// variation of inter-trade intervals < 0.1 with mean interval < 5s implies
// bot-like regularity. intervalsSec is the ordered list of gaps between
// consecutive trades, in seconds. Verbatim from
// anomaly_detection.py::_check_timing_pattern.
func DetectTimingPattern(walletID string, intervalsSec []float64, cfg AnomalyConfig, now time.Time) (AnomalyAlert, bool) {
	if len(intervalsSec) < cfg.MinTradesForTimingCheck {
		return AnomalyAlert{}, false
	}

	var sum float64
	for _, v := range intervalsSec {
		sum += v
	}
	n := float64(len(intervalsSec))
	mean := sum / n

	var sq float64
	for _, v := range intervalsSec {
		d := v - mean
		sq += d * d
	}
	variance := sq / n

	var cv float64
	if mean > 0 {
		cv = math.Sqrt(variance) / mean
	}

	if cv >= cfg.TimingCVThreshold || mean >= cfg.TimingMeanIntervalSec {
		return AnomalyAlert{}, false
	}

	return AnomalyAlert{
		WalletID:    walletID,
		Type:        AnomalyTimingPattern,
		Severity:    SeverityMedium,
		Confidence:  0.75,
		Description: "trade timing is suspiciously regular",
		DetectedAt:  now,
	}, true
}

// DetectVolumeConcentration implements spec §4.9 detector 3: all volume in a
// single market over >= 100 trades implies potential wash trading. Verbatim
// from anomaly_detection.py::_check_volume_inflation.
func DetectVolumeConcentration(walletID string, totalTrades, uniqueMarkets int, cfg AnomalyConfig, now time.Time) (AnomalyAlert, bool) {
	if totalTrades < cfg.VolumeConcentrationMinTrades || uniqueMarkets != 1 {
		return AnomalyAlert{}, false
	}
	return AnomalyAlert{
		WalletID:    walletID,
		Type:        AnomalyVolumeConcentration,
		Severity:    SeverityLow,
		Confidence:  0.60,
		Description: "all trades concentrated in a single market",
		DetectedAt:  now,
	}, true
}

// DetectImpossibleSharpe implements spec §4.9 detector 4: trade-level
// Sharpe (mean/stddev of per-position realized P&L, not the wallet-level annualized
// Sharpe from sharpe.go) exceeding 5.0. Verbatim from
// anomaly_detection.py::_check_impossible_performance.
func DetectImpossibleSharpe(walletID string, tradeLevelSharpe float64, cfg AnomalyConfig, now time.Time) (AnomalyAlert, bool) {
	if tradeLevelSharpe <= cfg.SharpeImpossibilityThreshold {
		return AnomalyAlert{}, false
	}
	return AnomalyAlert{
		WalletID:    walletID,
		Type:        AnomalyImpossibleSharpe,
		Severity:    SeverityHigh,
		Confidence:  0.80,
		Description: "trade-level Sharpe implausibly high",
		DetectedAt:  now,
	}, true
}

// LongestWinStreak returns the longest run of consecutive positive-P&L
// trades in pnlSequence, in chronological order.
func LongestWinStreak(pnlSequence []float64) int {
	best, cur := 0, 0
	for _, v := range pnlSequence {
		if v > 0 {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}

// DetectWinStreak implements spec §4.9 detector 5: a longest run of positive
// P&L trades exceeding 20.
func DetectWinStreak(walletID string, pnlSequence []float64, cfg AnomalyConfig, now time.Time) (AnomalyAlert, bool) {
	streak := LongestWinStreak(pnlSequence)
	if streak <= cfg.MaxConsecutiveWins {
		return AnomalyAlert{}, false
	}
	return AnomalyAlert{
		WalletID:    walletID,
		Type:        AnomalyWinStreak,
		Severity:    SeverityMedium,
		Confidence:  0.70,
		Description: "consecutive winning streak exceeds plausible bounds",
		DetectedAt:  now,
	}, true
}

package domain

import (
	"math"
	"sort"
	"time"
)

const (
	// DefaultMinDaysForSharpe is the configurable floor below which a wallet
	// is excluded from Sharpe output entirely (spec §4.4, boundary behavior).
	DefaultMinDaysForSharpe = 3
	// MaxSharpeRatio caps the annualized Sharpe used for ranking/tiering.
	MaxSharpeRatio = 10.0
	// HighConfidenceDays is the sample size at which Sharpe confidence saturates.
	HighConfidenceDays = 30
	annualizationDays = 365
)

// DailyPnL is one (wallet, calendar day) realized P&L bucket, the
// aggregation grain sharpe_calculator.py groups by before computing
// mean/stddev.
type DailyPnL struct {
	Date time.Time
	PnL  float64
}

// CalculateSharpe computes a wallet's annualized Sharpe ratio from its daily
// P&L series. Returns ok=false when there is insufficient history
// (days_with_pnl < minDays) — per spec, such a wallet is excluded from the
// output entirely rather than assigned a broken value.
func CalculateSharpe(walletID string, daily []DailyPnL, minDays int) (WalletSharpe, bool) {
	if minDays <= 0 {
		minDays = DefaultMinDaysForSharpe
	}
	if len(daily) < minDays {
		return WalletSharpe{}, false
	}

	mean, std := meanStddevPop(daily)

	var sharpeRaw float64
	if std > 0 {
		sharpeRaw = (mean / std) * math.Sqrt(annualizationDays)
	}
	sharpeCapped := math.Min(sharpeRaw, MaxSharpeRatio)

	confidence := math.Min(float64(len(daily))/HighConfidenceDays, 1.0)

	worst := daily[0].PnL
	for _, d := range daily {
		if d.PnL < worst {
			worst = d.PnL
		}
	}
	var drawdown float64
	if mean > 0 {
		drawdown = math.Abs(math.Min(worst, 0) / mean)
		drawdown = math.Min(drawdown, 1.0)
	}

	return WalletSharpe{
		WalletID:     walletID,
		SharpeRatio:  sharpeRaw,
		SharpeCapped: sharpeCapped,
		MeanDailyPnL: mean,
		StdDailyPnL:  std,
		MaxDrawdown:  drawdown,
		DaysWithPnL:  len(daily),
		Confidence:   confidence,
	}, true
}

func meanStddevPop(daily []DailyPnL) (mean, std float64) {
	n := float64(len(daily))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, d := range daily {
		sum += d.PnL
	}
	mean = sum / n

	var sq float64
	for _, d := range daily {
		diff := d.PnL - mean
		sq += diff * diff
	}
	std = math.Sqrt(sq / n)
	return mean, std
}

// RankingScore is the confidence-scaled Sharpe used for ordering wallets:
// capped Sharpe times confidence, so a lucky three-day streak cannot outrank
// a consistent month of history.
func (s WalletSharpe) RankingScore() float64 {
	return s.SharpeCapped * s.Confidence
}

// RankBySharpe orders wallets by descending confidence-scaled Sharpe,
// breaking ties on the capped ratio — the way sharpe_calculator.py scales
// sharpe_ratio_capped by confidence before assigning rank.
func RankBySharpe(scores []WalletSharpe) []WalletSharpe {
	out := make([]WalletSharpe, len(scores))
	copy(out, scores)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].RankingScore(), out[j].RankingScore()
		if ri != rj {
			return ri > rj
		}
		return out[i].SharpeCapped > out[j].SharpeCapped
	})
	return out
}

package domain

import (
	"strings"
	"time"
)

// InsiderConfig holds the six detectors' thresholds, verbatim from
// insider_detector.py::InsiderDetectorConfig.
type InsiderConfig struct {
	NewAccountMaxDays            int
	NewAccountMinBetUSD          float64
	NewAccountMinConcentration   float64

	VolumeSpikeRatio           float64
	VolumeSpikeLookbackDays    int

	SmartMoneyTopN           int
	SmartMoneyMinTraders     int

	WhaleMinVolumeUSD float64

	MinMarketLiquidity float64
	LookbackHours      int

	// ExcludedMarketPatterns is a glob list (SQL LIKE syntax, '%' wildcard)
	// that all insider detectors must exclude — short-horizon price markets
	// where insider information cannot exist (spec §4.9 closing paragraph).
	ExcludedMarketPatterns []string
}

// DefaultInsiderConfig matches insider_detector.py::InsiderDetectorConfig
// defaults, including the verbatim excluded_market_patterns glob list
// (SPEC_FULL §12).
var DefaultInsiderConfig = InsiderConfig{
	NewAccountMaxDays:          7,
	NewAccountMinBetUSD:        5000,
	NewAccountMinConcentration: 0.8,
	VolumeSpikeRatio:           10.0,
	VolumeSpikeLookbackDays:    30,
	SmartMoneyTopN:             100,
	SmartMoneyMinTraders:       3,
	WhaleMinVolumeUSD:          100000,
	MinMarketLiquidity:         1000,
	LookbackHours:              24,
	ExcludedMarketPatterns: []string{
		"%-15m-%",
		"%-1h-%",
		"%-hourly%",
		"%updown%15m%",
		"%up-or-down%",
		"%up-down%",
		"%updown%",
		"btc-updown%",
		"bitcoin-above-%",
		"will-bitcoin-%",
		"%btc%above%",
		"%bitcoin%reach%",
		"%bitcoin%dip%",
		"eth-updown%",
		"ethereum-above-%",
		"will-ethereum-%",
		"%eth%above%",
		"%ethereum%reach%",
		"%ethereum%dip%",
		"solana%up%down%",
		"xrp%up%down%",
		"doge%up%down%",
		"%sol%above%",
		"%xrp%above%",
		"%solana%reach%",
		"%xrp%reach%",
	},
}

// IsExcludedMarket reports whether slug matches any configured glob pattern
// — insider detectors must skip these markets entirely (spec §4.9, test
// scenario S6). Glob syntax: '%' matches any run of characters (SQL LIKE).
func IsExcludedMarket(slug string, patterns []string) bool {
	for _, p := range patterns {
		if globMatch(slug, p) {
			return true
		}
	}
	return false
}

// globMatch implements SQL LIKE-style '%' matching (no '_' single-char
// wildcard is used by the pattern set, so it is not implemented).
func globMatch(s, pattern string) bool {
	parts := strings.Split(pattern, "%")
	if len(parts) == 1 {
		return s == pattern
	}

	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		switch {
		case i == 0:
			if !strings.HasPrefix(s, part) {
				return false
			}
			pos = len(part)
		case i == len(parts)-1:
			if !strings.HasSuffix(s[pos:], part) {
				return false
			}
		default:
			idx := strings.Index(s[pos:], part)
			if idx < 0 {
				return false
			}
			pos += idx + len(part)
		}
	}
	return true
}

// InsiderSignalType names one of the six insider detection subtypes.
type InsiderSignalType string

const (
	SignalNewAccountWhale      InsiderSignalType = "NEW_ACCOUNT_WHALE"
	SignalVolumeSpike          InsiderSignalType = "VOLUME_SPIKE"
	SignalSmartMoneyDivergence InsiderSignalType = "SMART_MONEY_DIVERGENCE"
	SignalWhaleAnomaly         InsiderSignalType = "WHALE_ANOMALY"
	SignalCoordinatedEntry     InsiderSignalType = "COORDINATED_ENTRY"
	SignalLateEntryConviction  InsiderSignalType = "LATE_ENTRY_CONVICTION"
)

// InsiderAlert is the domain-level output of any of the six detectors,
// later wrapped in the shared Alert envelope by the application layer.
type InsiderAlert struct {
	SignalType      InsiderSignalType
	Severity        AlertSeverity
	MarketSlug      string
	Description     string
	Confidence      float64
	Direction       string
	TotalVolumeUSD  float64
	NumTraders      int
	DetectedAt      time.Time
	TradersInvolved []string
}

// NewAccountWhaleInput is one candidate trader's recent activity plus
// account age, pre-aggregated by the scanner's SQL.
type NewAccountWhaleInput struct {
	WalletID       string
	MarketSlug     string
	Direction      string
	MaxMarketBet   float64
	TotalVolume    float64
	AccountAgeDays int
}

// DetectNewAccountWhale implements insider_detector.py::_detect_new_account_whales'
// per-row confidence/severity math for one already-filtered candidate.
func DetectNewAccountWhale(in NewAccountWhaleInput, cfg InsiderConfig, now time.Time) (InsiderAlert, bool) {
	if IsExcludedMarket(in.MarketSlug, cfg.ExcludedMarketPatterns) {
		return InsiderAlert{}, false
	}
	if in.AccountAgeDays > cfg.NewAccountMaxDays {
		return InsiderAlert{}, false
	}
	if in.MaxMarketBet < cfg.NewAccountMinBetUSD {
		return InsiderAlert{}, false
	}
	concentration := 0.0
	if in.TotalVolume > 0 {
		concentration = in.MaxMarketBet / in.TotalVolume
	}
	if concentration < cfg.NewAccountMinConcentration {
		return InsiderAlert{}, false
	}

	confidence := 0.5
	if in.AccountAgeDays <= 3 {
		confidence += 0.2
	}
	if in.MaxMarketBet >= 10000 {
		confidence += 0.15
	}
	if in.MaxMarketBet >= 50000 {
		confidence += 0.15
	}
	if concentration >= 0.95 {
		confidence += 0.1
	}
	confidence = minF(1.0, confidence)

	var severity AlertSeverity
	switch {
	case in.MaxMarketBet >= 50000 && in.AccountAgeDays <= 3:
		severity = SeverityCritical
	case in.MaxMarketBet >= 20000 && in.AccountAgeDays <= 5:
		severity = SeverityHigh
	case in.MaxMarketBet >= 10000:
		severity = SeverityMedium
	default:
		severity = SeverityLow
	}

	return InsiderAlert{
		SignalType:      SignalNewAccountWhale,
		Severity:        severity,
		MarketSlug:      in.MarketSlug,
		Confidence:      confidence,
		Direction:       in.Direction,
		TotalVolumeUSD:  in.MaxMarketBet,
		NumTraders:      1,
		DetectedAt:      now,
		TradersInvolved: []string{in.WalletID},
	}, true
}

// VolumeSpikeInput is one market's recent-vs-historical volume comparison,
// with the historical baseline already computed per SPEC_FULL §13 Open
// Question 2 (`[now-30d, now-lookback]` daily average).
type VolumeSpikeInput struct {
	MarketSlug       string
	RecentVolume     float64
	HistoricalDaily  float64 // average daily volume over the baseline window
	LookbackHours    int
	YesVolume        float64
	NoVolume         float64
	UniqueTraders    int
}

// DetectVolumeSpike implements insider_detector.py::_detect_volume_spikes.
func DetectVolumeSpike(in VolumeSpikeInput, cfg InsiderConfig, now time.Time) (InsiderAlert, bool) {
	if IsExcludedMarket(in.MarketSlug, cfg.ExcludedMarketPatterns) {
		return InsiderAlert{}, false
	}
	if in.RecentVolume < cfg.MinMarketLiquidity {
		return InsiderAlert{}, false
	}

	expected := in.HistoricalDaily * (float64(in.LookbackHours) / 24.0)
	if expected <= 0 {
		return InsiderAlert{}, false
	}
	spikeRatio := in.RecentVolume / expected
	if spikeRatio < cfg.VolumeSpikeRatio {
		return InsiderAlert{}, false
	}

	totalDirectional := in.YesVolume + in.NoVolume
	var imbalance float64
	if totalDirectional > 0 {
		imbalance = absF(in.YesVolume-in.NoVolume) / totalDirectional
	}

	direction := "NO"
	if in.YesVolume > in.NoVolume {
		direction = "YES"
	}

	confidence := minF(1.0, 0.3+(spikeRatio/50)+(imbalance*0.3))

	var severity AlertSeverity
	switch {
	case spikeRatio >= 50 && imbalance >= 0.7:
		severity = SeverityCritical
	case spikeRatio >= 20:
		severity = SeverityHigh
	case spikeRatio >= 10:
		severity = SeverityMedium
	default:
		severity = SeverityLow
	}

	return InsiderAlert{
		SignalType:     SignalVolumeSpike,
		Severity:       severity,
		MarketSlug:     in.MarketSlug,
		Confidence:     confidence,
		Direction:      direction,
		TotalVolumeUSD: in.RecentVolume,
		NumTraders:     in.UniqueTraders,
		DetectedAt:     now,
	}, true
}

// SmartMoneyDivergenceInput is one market where top-N traders bet against
// the 7-day consensus outcome.
type SmartMoneyDivergenceInput struct {
	MarketSlug     string
	Direction      string
	SmartMoneyVol  float64
	NumTraders     int
	ConsensusPct   float64 // volume share of the consensus-favored outcome
}

// DetectSmartMoneyDivergence implements
// insider_detector.py::_detect_smart_money_divergence.
func DetectSmartMoneyDivergence(in SmartMoneyDivergenceInput, cfg InsiderConfig, now time.Time) (InsiderAlert, bool) {
	if IsExcludedMarket(in.MarketSlug, cfg.ExcludedMarketPatterns) {
		return InsiderAlert{}, false
	}
	if in.NumTraders < cfg.SmartMoneyMinTraders {
		return InsiderAlert{}, false
	}

	confidence := minF(1.0, 0.4+(float64(in.NumTraders)*0.1)+(in.SmartMoneyVol/50000))

	var severity AlertSeverity
	switch {
	case in.NumTraders >= 5 && in.ConsensusPct >= 0.7:
		severity = SeverityCritical
	case in.NumTraders >= 3 && in.ConsensusPct >= 0.6:
		severity = SeverityHigh
	default:
		severity = SeverityMedium
	}

	return InsiderAlert{
		SignalType:     SignalSmartMoneyDivergence,
		Severity:       severity,
		MarketSlug:     in.MarketSlug,
		Confidence:     confidence,
		Direction:      in.Direction,
		TotalVolumeUSD: in.SmartMoneyVol,
		NumTraders:     in.NumTraders,
		DetectedAt:     now,
	}, true
}

// CoordinatedEntryInput is a market+direction cluster of same-window entries.
type CoordinatedEntryInput struct {
	MarketSlug     string
	Direction      string
	NumTraders     int
	TotalVolume    float64
	WindowMinutes  int
	TradersInvolved []string
}

// DetectCoordinatedEntry implements
// insider_detector.py::_detect_coordinated_entry.
func DetectCoordinatedEntry(in CoordinatedEntryInput, cfg InsiderConfig, now time.Time) (InsiderAlert, bool) {
	if IsExcludedMarket(in.MarketSlug, cfg.ExcludedMarketPatterns) {
		return InsiderAlert{}, false
	}
	if in.NumTraders < 3 || in.WindowMinutes > 120 || in.TotalVolume < 10000 {
		return InsiderAlert{}, false
	}

	tradersPerMinute := float64(in.NumTraders) / maxF(1, float64(in.WindowMinutes))
	confidence := minF(1.0, 0.3+(float64(in.NumTraders)*0.1)+(tradersPerMinute*0.2))

	var severity AlertSeverity
	switch {
	case in.NumTraders >= 5 && in.WindowMinutes <= 30:
		severity = SeverityCritical
	case in.NumTraders >= 4 && in.WindowMinutes <= 60:
		severity = SeverityHigh
	case in.NumTraders >= 3:
		severity = SeverityMedium
	default:
		severity = SeverityLow
	}

	involved := in.TradersInvolved
	if len(involved) > 10 {
		involved = involved[:10]
	}

	return InsiderAlert{
		SignalType:      SignalCoordinatedEntry,
		Severity:        severity,
		MarketSlug:      in.MarketSlug,
		Confidence:      confidence,
		Direction:       in.Direction,
		TotalVolumeUSD:  in.TotalVolume,
		NumTraders:      in.NumTraders,
		DetectedAt:      now,
		TradersInvolved: involved,
	}, true
}

// LateEntryConvictionInput is one trader's outsized bet in a market, with
// their historical volume in that same market for comparison.
type LateEntryConvictionInput struct {
	WalletID          string
	MarketSlug        string
	Direction         string
	BetSize           float64
	HistoricalVolume  float64 // 0 means never traded this market before
}

// DetectLateEntryConviction implements
// insider_detector.py::_detect_late_entry_conviction.
func DetectLateEntryConviction(in LateEntryConvictionInput, cfg InsiderConfig, now time.Time) (InsiderAlert, bool) {
	if IsExcludedMarket(in.MarketSlug, cfg.ExcludedMarketPatterns) {
		return InsiderAlert{}, false
	}
	if in.BetSize < 10000 {
		return InsiderAlert{}, false
	}
	isNewToMarket := in.HistoricalVolume == 0
	if !isNewToMarket && in.BetSize <= in.HistoricalVolume*2 {
		return InsiderAlert{}, false
	}

	confidence := 0.4
	if isNewToMarket {
		confidence += 0.25
	}
	if in.BetSize >= 25000 {
		confidence += 0.2
	}
	if in.BetSize >= 50000 {
		confidence += 0.15
	}
	confidence = minF(1.0, confidence)

	var severity AlertSeverity
	switch {
	case in.BetSize >= 50000 && isNewToMarket:
		severity = SeverityCritical
	case in.BetSize >= 25000 && isNewToMarket:
		severity = SeverityHigh
	case in.BetSize >= 10000:
		severity = SeverityMedium
	default:
		severity = SeverityLow
	}

	return InsiderAlert{
		SignalType:      SignalLateEntryConviction,
		Severity:        severity,
		MarketSlug:      in.MarketSlug,
		Confidence:      confidence,
		Direction:       in.Direction,
		TotalVolumeUSD:  in.BetSize,
		NumTraders:      1,
		DetectedAt:      now,
		TradersInvolved: []string{in.WalletID},
	}, true
}

// WhaleAnomalyInput is a known whale's first-ever entry into a market.
type WhaleAnomalyInput struct {
	WalletID   string
	MarketSlug string
	Direction  string
	RecentBet  float64
}

// DetectWhaleAnomaly implements insider_detector.py::_detect_whale_anomalies.
// Caller must already have filtered to whales (lifetime volume >=
// WhaleMinVolumeUSD) with no prior trades in MarketSlug.
func DetectWhaleAnomaly(in WhaleAnomalyInput, cfg InsiderConfig, now time.Time) (InsiderAlert, bool) {
	if IsExcludedMarket(in.MarketSlug, cfg.ExcludedMarketPatterns) {
		return InsiderAlert{}, false
	}
	if in.RecentBet < 5000 {
		return InsiderAlert{}, false
	}

	confidence := minF(1.0, 0.4+(in.RecentBet/50000))

	var severity AlertSeverity
	switch {
	case in.RecentBet >= 50000:
		severity = SeverityHigh
	case in.RecentBet >= 20000:
		severity = SeverityMedium
	default:
		severity = SeverityLow
	}

	return InsiderAlert{
		SignalType:      SignalWhaleAnomaly,
		Severity:        severity,
		MarketSlug:      in.MarketSlug,
		Confidence:      confidence,
		Direction:       in.Direction,
		TotalVolumeUSD:  in.RecentBet,
		NumTraders:      1,
		DetectedAt:      now,
		TradersInvolved: []string{in.WalletID},
	}, true
}

// severityOrderRank gives severity a sort key for "CRITICAL first, then by
// descending confidence" ordering, matching
// insider_detector.py::scan_for_insider_activity's final sort.
func severityOrderRank(s AlertSeverity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// SortInsiderAlerts orders alerts CRITICAL-first, then by descending
// confidence within a severity.
func SortInsiderAlerts(alerts []InsiderAlert) []InsiderAlert {
	out := make([]InsiderAlert, len(alerts))
	copy(out, alerts)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j], out[j-1]
			ra, rb := severityOrderRank(a.Severity), severityOrderRank(b.Severity)
			less := ra < rb || (ra == rb && a.Confidence > b.Confidence)
			if !less {
				break
			}
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

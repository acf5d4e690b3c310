package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DiscoveryType names a hidden-alpha discovery method, grounded on
// hidden_alpha.py::DiscoveryType.
type DiscoveryType string

const (
	DiscoveryHiddenGem       DiscoveryType = "HIDDEN_GEM"
	DiscoveryRisingStar      DiscoveryType = "RISING_STAR"
	DiscoveryNicheSpecialist DiscoveryType = "NICHE_SPECIALIST"
	DiscoveryContrarian      DiscoveryType = "CONTRARIAN"
)

// HiddenTrader is one discovered hidden-alpha wallet.
type HiddenTrader struct {
	WalletID        string
	DiscoveryType   DiscoveryType
	DiscoveryScore  float64
	VisibilityScore float64
	TotalScore      float64
	SharpeRatio     float64
	WinRate         float64
	Reason          string
	DiscoveredAt    time.Time
	StandoutMetrics map[string]float64
}

// HiddenAlphaConfig holds the four discovery methods' thresholds, verbatim
// from hidden_alpha.py::DiscoveryConfig.
type HiddenAlphaConfig struct {
	MinSharpeForGem     float64
	MaxVolumeForHidden  float64
	MinTradesForGem     int
	MaxDaysActiveStar   int
	MinWinRateStar      float64
	MinSharpeStar       float64
	MaxMarketsSpecialist int
	MinSharpeSpecialist float64
	MinSharpeContrarian float64
	MaxPerType          int
}

// DefaultHiddenAlphaConfig matches hidden_alpha.py's defaults.
var DefaultHiddenAlphaConfig = HiddenAlphaConfig{
	MinSharpeForGem:      1.5,
	MaxVolumeForHidden:   50_000,
	MinTradesForGem:      30,
	MaxDaysActiveStar:    30,
	MinWinRateStar:       0.60,
	MinSharpeStar:        1.0,
	MaxMarketsSpecialist: 5,
	MinSharpeSpecialist:  1.0,
	MinSharpeContrarian:  0.5,
	MaxPerType:           10,
}

// HiddenAlphaCandidate joins the per-wallet metrics the discovery methods
// screen against: score, Sharpe, win rate, and activity aggregates.
type HiddenAlphaCandidate struct {
	WalletID       string
	TotalScore     float64
	SharpeRatio    float64
	WinRate        float64
	TotalVolumeUSD float64
	TotalTrades    int
	DaysActive     int
	UniqueMarkets  int
	TotalPnL       float64
	StrategyType   StrategyType
}

// visibilityScore grades how visible a wallet is to the public leaderboard,
// 0-100 scaled on volume (hidden_alpha.py: volume/100k*100).
func visibilityScore(volumeUSD float64) float64 {
	return math.Min(100, volumeUSD/100_000*100)
}

// DetectHiddenGem flags high-Sharpe, low-volume wallets: excellent metrics
// flying under the leaderboard's volume radar.
func DetectHiddenGem(c HiddenAlphaCandidate, cfg HiddenAlphaConfig, now time.Time) (HiddenTrader, bool) {
	if c.SharpeRatio < cfg.MinSharpeForGem || c.TotalVolumeUSD > cfg.MaxVolumeForHidden || c.TotalTrades < cfg.MinTradesForGem {
		return HiddenTrader{}, false
	}

	visibility := visibilityScore(c.TotalVolumeUSD)
	sharpeScore := math.Min(50, c.SharpeRatio*20)
	hiddenBonus := 50 - visibility/2

	return HiddenTrader{
		WalletID:        c.WalletID,
		DiscoveryType:   DiscoveryHiddenGem,
		DiscoveryScore:  math.Min(100, sharpeScore+hiddenBonus),
		VisibilityScore: visibility,
		TotalScore:      c.TotalScore,
		SharpeRatio:     c.SharpeRatio,
		WinRate:         c.WinRate,
		Reason:          fmt.Sprintf("Sharpe %.2f with only $%.0f volume - flying under radar", c.SharpeRatio, c.TotalVolumeUSD),
		DiscoveredAt:    now,
		StandoutMetrics: map[string]float64{
			"sharpe_ratio": c.SharpeRatio,
			"volume":       c.TotalVolumeUSD,
			"trades":       float64(c.TotalTrades),
			"pnl":          c.TotalPnL,
		},
	}, true
}

// DetectRisingStar flags new wallets with exceptional early performance.
func DetectRisingStar(c HiddenAlphaCandidate, cfg HiddenAlphaConfig, now time.Time) (HiddenTrader, bool) {
	if c.DaysActive > cfg.MaxDaysActiveStar || c.WinRate < cfg.MinWinRateStar ||
		c.SharpeRatio < cfg.MinSharpeStar || c.TotalTrades < 10 {
		return HiddenTrader{}, false
	}

	newnessScore := math.Max(0, float64(30-c.DaysActive))
	performanceScore := c.WinRate*40 + c.SharpeRatio*20

	return HiddenTrader{
		WalletID:        c.WalletID,
		DiscoveryType:   DiscoveryRisingStar,
		DiscoveryScore:  math.Min(100, newnessScore+performanceScore),
		VisibilityScore: 30,
		TotalScore:      c.TotalScore,
		SharpeRatio:     c.SharpeRatio,
		WinRate:         c.WinRate,
		Reason:          fmt.Sprintf("Only %d days active but %.0f%% win rate", c.DaysActive, c.WinRate*100),
		DiscoveredAt:    now,
		StandoutMetrics: map[string]float64{
			"days_active":  float64(c.DaysActive),
			"win_rate":     c.WinRate,
			"sharpe_ratio": c.SharpeRatio,
			"trades":       float64(c.TotalTrades),
		},
	}, true
}

// DetectNicheSpecialist flags wallets concentrated on a handful of markets
// with a strong risk-adjusted record there.
func DetectNicheSpecialist(c HiddenAlphaCandidate, cfg HiddenAlphaConfig, now time.Time) (HiddenTrader, bool) {
	if c.UniqueMarkets > cfg.MaxMarketsSpecialist || c.TotalTrades < 20 || c.SharpeRatio < cfg.MinSharpeSpecialist {
		return HiddenTrader{}, false
	}

	markets := c.UniqueMarkets
	if markets < 1 {
		markets = 1
	}
	concentration := 1.0 / float64(markets)

	return HiddenTrader{
		WalletID:        c.WalletID,
		DiscoveryType:   DiscoveryNicheSpecialist,
		DiscoveryScore:  math.Min(100, c.SharpeRatio*30+concentration*40),
		VisibilityScore: 40,
		TotalScore:      c.TotalScore,
		SharpeRatio:     c.SharpeRatio,
		WinRate:         c.WinRate,
		Reason:          fmt.Sprintf("Focused on %d markets with %.2f Sharpe", c.UniqueMarkets, c.SharpeRatio),
		DiscoveredAt:    now,
		StandoutMetrics: map[string]float64{
			"unique_markets": float64(c.UniqueMarkets),
			"sharpe_ratio":   c.SharpeRatio,
			"concentration":  concentration,
		},
	}, true
}

// DetectContrarian flags strongly-directional wallets profitable against
// the crowd.
func DetectContrarian(c HiddenAlphaCandidate, cfg HiddenAlphaConfig, now time.Time) (HiddenTrader, bool) {
	if c.StrategyType != StrategyDirectionalMomentum && c.StrategyType != StrategyHybrid {
		return HiddenTrader{}, false
	}
	if c.TotalPnL <= 0 || c.SharpeRatio < cfg.MinSharpeContrarian || c.TotalTrades < 20 {
		return HiddenTrader{}, false
	}

	return HiddenTrader{
		WalletID:        c.WalletID,
		DiscoveryType:   DiscoveryContrarian,
		DiscoveryScore:  math.Min(100, c.SharpeRatio*30+math.Log10(math.Max(1, c.TotalPnL))*10),
		VisibilityScore: 50,
		TotalScore:      c.TotalScore,
		SharpeRatio:     c.SharpeRatio,
		WinRate:         c.WinRate,
		Reason:          fmt.Sprintf("%s trader with $%.0f P&L going against consensus", c.StrategyType, c.TotalPnL),
		DiscoveredAt:    now,
		StandoutMetrics: map[string]float64{
			"pnl":          c.TotalPnL,
			"sharpe_ratio": c.SharpeRatio,
		},
	}, true
}

// DiscoverHiddenAlpha runs all four discovery methods over the candidate
// pool, capping each method at cfg.MaxPerType and returning the combined
// list sorted by descending discovery score.
func DiscoverHiddenAlpha(candidates []HiddenAlphaCandidate, cfg HiddenAlphaConfig, now time.Time) []HiddenTrader {
	type method struct {
		detect func(HiddenAlphaCandidate, HiddenAlphaConfig, time.Time) (HiddenTrader, bool)
	}
	methods := []method{
		{DetectHiddenGem},
		{DetectRisingStar},
		{DetectNicheSpecialist},
		{DetectContrarian},
	}

	var all []HiddenTrader
	for _, m := range methods {
		var found []HiddenTrader
		for _, c := range candidates {
			if t, ok := m.detect(c, cfg, now); ok {
				found = append(found, t)
			}
		}
		sort.SliceStable(found, func(i, j int) bool { return found[i].DiscoveryScore > found[j].DiscoveryScore })
		if cfg.MaxPerType > 0 && len(found) > cfg.MaxPerType {
			found = found[:cfg.MaxPerType]
		}
		all = append(all, found...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].DiscoveryScore > all[j].DiscoveryScore })
	return all
}

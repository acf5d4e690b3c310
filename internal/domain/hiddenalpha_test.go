package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectHiddenGem(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultHiddenAlphaConfig

	gem, ok := DetectHiddenGem(HiddenAlphaCandidate{
		WalletID: "w1", SharpeRatio: 2.0, TotalVolumeUSD: 20000, TotalTrades: 50,
	}, cfg, now)
	require.True(t, ok)
	assert.Equal(t, DiscoveryHiddenGem, gem.DiscoveryType)
	// visibility = 20k/100k·100 = 20; score = min(50, 2·20) + (50 − 20/2) = 40 + 40.
	assert.InDelta(t, 20, gem.VisibilityScore, 1e-9)
	assert.InDelta(t, 80, gem.DiscoveryScore, 1e-9)

	// High volume is no longer hidden.
	_, ok = DetectHiddenGem(HiddenAlphaCandidate{
		WalletID: "w1", SharpeRatio: 2.0, TotalVolumeUSD: 90000, TotalTrades: 50,
	}, cfg, now)
	assert.False(t, ok)

	// Mediocre Sharpe is no gem.
	_, ok = DetectHiddenGem(HiddenAlphaCandidate{
		WalletID: "w1", SharpeRatio: 1.0, TotalVolumeUSD: 20000, TotalTrades: 50,
	}, cfg, now)
	assert.False(t, ok)
}

func TestDetectRisingStar(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultHiddenAlphaConfig

	star, ok := DetectRisingStar(HiddenAlphaCandidate{
		WalletID: "w1", DaysActive: 10, WinRate: 0.7, SharpeRatio: 1.5, TotalTrades: 15,
	}, cfg, now)
	require.True(t, ok)
	assert.Equal(t, DiscoveryRisingStar, star.DiscoveryType)
	// newness 20 + performance 0.7·40 + 1.5·20 = 78.
	assert.InDelta(t, 78, star.DiscoveryScore, 1e-9)

	// Established wallets aren't stars.
	_, ok = DetectRisingStar(HiddenAlphaCandidate{
		WalletID: "w1", DaysActive: 90, WinRate: 0.7, SharpeRatio: 1.5, TotalTrades: 15,
	}, cfg, now)
	assert.False(t, ok)
}

func TestDetectNicheSpecialist(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultHiddenAlphaConfig

	spec, ok := DetectNicheSpecialist(HiddenAlphaCandidate{
		WalletID: "w1", UniqueMarkets: 2, TotalTrades: 40, SharpeRatio: 1.5,
	}, cfg, now)
	require.True(t, ok)
	assert.Equal(t, DiscoveryNicheSpecialist, spec.DiscoveryType)
	// 1.5·30 + 0.5·40 = 65.
	assert.InDelta(t, 65, spec.DiscoveryScore, 1e-9)

	_, ok = DetectNicheSpecialist(HiddenAlphaCandidate{
		WalletID: "w1", UniqueMarkets: 30, TotalTrades: 40, SharpeRatio: 1.5,
	}, cfg, now)
	assert.False(t, ok)
}

func TestDetectContrarian(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultHiddenAlphaConfig

	_, ok := DetectContrarian(HiddenAlphaCandidate{
		WalletID: "w1", StrategyType: StrategyDirectionalMomentum,
		TotalPnL: 10000, SharpeRatio: 1.0, TotalTrades: 40,
	}, cfg, now)
	assert.True(t, ok)

	// Market makers don't count as contrarians.
	_, ok = DetectContrarian(HiddenAlphaCandidate{
		WalletID: "w1", StrategyType: StrategyMarketMaker,
		TotalPnL: 10000, SharpeRatio: 1.0, TotalTrades: 40,
	}, cfg, now)
	assert.False(t, ok)

	// Losing directional traders aren't contrarian edge.
	_, ok = DetectContrarian(HiddenAlphaCandidate{
		WalletID: "w1", StrategyType: StrategyDirectionalMomentum,
		TotalPnL: -500, SharpeRatio: 1.0, TotalTrades: 40,
	}, cfg, now)
	assert.False(t, ok)
}

func TestDiscoverHiddenAlphaCapsAndSorts(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultHiddenAlphaConfig
	cfg.MaxPerType = 3

	var candidates []HiddenAlphaCandidate
	for i := 0; i < 10; i++ {
		candidates = append(candidates, HiddenAlphaCandidate{
			WalletID:       string(rune('a' + i)),
			SharpeRatio:    1.6 + float64(i)*0.1,
			TotalVolumeUSD: 20000,
			TotalTrades:    50,
			DaysActive:     100,
			UniqueMarkets:  20,
		})
	}

	out := DiscoverHiddenAlpha(candidates, cfg, now)
	require.Len(t, out, 3, "gems capped at MaxPerType; no other method fires")
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].DiscoveryScore, out[i].DiscoveryScore)
	}
}

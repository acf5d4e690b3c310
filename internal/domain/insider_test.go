package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExcludedMarketShortHorizonPriceMarkets(t *testing.T) {
	excluded := []string{
		"btc-updown-15m-1700000000",
		"eth-updown-1h-1700000000",
		"bitcoin-above-100k-friday",
		"will-ethereum-reach-5000",
		"solana-up-or-down-july-15",
		"some-market-1h-window",
	}
	for _, slug := range excluded {
		assert.True(t, IsExcludedMarket(slug, DefaultInsiderConfig.ExcludedMarketPatterns), "slug %q should be excluded", slug)
	}

	included := []string{
		"presidential-election-2028",
		"superbowl-winner-2027",
		"fed-rate-cut-september",
	}
	for _, slug := range included {
		assert.False(t, IsExcludedMarket(slug, DefaultInsiderConfig.ExcludedMarketPatterns), "slug %q should not be excluded", slug)
	}
}

// Every detector must stay silent on an excluded short-horizon price market
// no matter how loud the underlying pattern is.
func TestDetectorsSkipExcludedMarkets(t *testing.T) {
	now := time.Now().UTC()
	slug := "btc-updown-15m-1700000000"
	cfg := DefaultInsiderConfig

	_, ok := DetectNewAccountWhale(NewAccountWhaleInput{
		WalletID: "w1", MarketSlug: slug, MaxMarketBet: 100000, TotalVolume: 100000, AccountAgeDays: 1,
	}, cfg, now)
	assert.False(t, ok)

	_, ok = DetectVolumeSpike(VolumeSpikeInput{
		MarketSlug: slug, RecentVolume: 1e6, HistoricalDaily: 100, LookbackHours: 24, YesVolume: 1e6,
	}, cfg, now)
	assert.False(t, ok)

	_, ok = DetectCoordinatedEntry(CoordinatedEntryInput{
		MarketSlug: slug, NumTraders: 10, TotalVolume: 1e6, WindowMinutes: 10,
	}, cfg, now)
	assert.False(t, ok)

	_, ok = DetectLateEntryConviction(LateEntryConvictionInput{
		WalletID: "w1", MarketSlug: slug, BetSize: 100000,
	}, cfg, now)
	assert.False(t, ok)
}

func TestDetectNewAccountWhale(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultInsiderConfig

	a, ok := DetectNewAccountWhale(NewAccountWhaleInput{
		WalletID: "w1", MarketSlug: "election-2028", Direction: "YES",
		MaxMarketBet: 60000, TotalVolume: 60000, AccountAgeDays: 2,
	}, cfg, now)
	require.True(t, ok)
	assert.Equal(t, SignalNewAccountWhale, a.SignalType)
	assert.Equal(t, SeverityCritical, a.Severity)
	assert.InDelta(t, 1.0, a.Confidence, 1e-9)
	assert.Equal(t, []string{"w1"}, a.TradersInvolved)

	// Too old an account: no alert.
	_, ok = DetectNewAccountWhale(NewAccountWhaleInput{
		WalletID: "w1", MarketSlug: "election-2028",
		MaxMarketBet: 60000, TotalVolume: 60000, AccountAgeDays: 30,
	}, cfg, now)
	assert.False(t, ok)

	// Diversified volume fails the concentration gate.
	_, ok = DetectNewAccountWhale(NewAccountWhaleInput{
		WalletID: "w1", MarketSlug: "election-2028",
		MaxMarketBet: 6000, TotalVolume: 60000, AccountAgeDays: 2,
	}, cfg, now)
	assert.False(t, ok)
}

func TestDetectVolumeSpike(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultInsiderConfig

	// 24h recent volume of $30k against a $1k daily baseline = 30x spike.
	a, ok := DetectVolumeSpike(VolumeSpikeInput{
		MarketSlug: "election-2028", RecentVolume: 30000, HistoricalDaily: 1000,
		LookbackHours: 24, YesVolume: 27000, NoVolume: 3000, UniqueTraders: 12,
	}, cfg, now)
	require.True(t, ok)
	assert.Equal(t, SignalVolumeSpike, a.SignalType)
	assert.Equal(t, SeverityHigh, a.Severity)
	assert.Equal(t, "YES", a.Direction)

	// Below the 10x ratio: no alert.
	_, ok = DetectVolumeSpike(VolumeSpikeInput{
		MarketSlug: "election-2028", RecentVolume: 5000, HistoricalDaily: 1000,
		LookbackHours: 24, YesVolume: 5000,
	}, cfg, now)
	assert.False(t, ok)

	// No baseline history: no spike can be established.
	_, ok = DetectVolumeSpike(VolumeSpikeInput{
		MarketSlug: "election-2028", RecentVolume: 30000, HistoricalDaily: 0,
		LookbackHours: 24, YesVolume: 30000,
	}, cfg, now)
	assert.False(t, ok)
}

func TestDetectCoordinatedEntry(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultInsiderConfig

	a, ok := DetectCoordinatedEntry(CoordinatedEntryInput{
		MarketSlug: "election-2028", Direction: "YES", NumTraders: 5,
		TotalVolume: 25000, WindowMinutes: 20,
		TradersInvolved: []string{"a", "b", "c", "d", "e"},
	}, cfg, now)
	require.True(t, ok)
	assert.Equal(t, SeverityCritical, a.Severity)
	assert.Equal(t, 5, a.NumTraders)

	// Window too wide.
	_, ok = DetectCoordinatedEntry(CoordinatedEntryInput{
		MarketSlug: "election-2028", NumTraders: 5, TotalVolume: 25000, WindowMinutes: 240,
	}, cfg, now)
	assert.False(t, ok)

	// Too few traders.
	_, ok = DetectCoordinatedEntry(CoordinatedEntryInput{
		MarketSlug: "election-2028", NumTraders: 2, TotalVolume: 25000, WindowMinutes: 20,
	}, cfg, now)
	assert.False(t, ok)

	// Volume under $10k.
	_, ok = DetectCoordinatedEntry(CoordinatedEntryInput{
		MarketSlug: "election-2028", NumTraders: 4, TotalVolume: 5000, WindowMinutes: 20,
	}, cfg, now)
	assert.False(t, ok)
}

func TestDetectLateEntryConviction(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultInsiderConfig

	// First-ever entry with a huge bet.
	a, ok := DetectLateEntryConviction(LateEntryConvictionInput{
		WalletID: "w1", MarketSlug: "election-2028", Direction: "NO",
		BetSize: 60000, HistoricalVolume: 0,
	}, cfg, now)
	require.True(t, ok)
	assert.Equal(t, SeverityCritical, a.Severity)

	// Repeat participant must bet over 2x their history.
	_, ok = DetectLateEntryConviction(LateEntryConvictionInput{
		WalletID: "w1", MarketSlug: "election-2028",
		BetSize: 15000, HistoricalVolume: 10000,
	}, cfg, now)
	assert.False(t, ok)

	a, ok = DetectLateEntryConviction(LateEntryConvictionInput{
		WalletID: "w1", MarketSlug: "election-2028",
		BetSize: 25000, HistoricalVolume: 10000,
	}, cfg, now)
	require.True(t, ok)
	assert.Equal(t, SeverityMedium, a.Severity)
}

func TestSortInsiderAlertsSeverityThenConfidence(t *testing.T) {
	now := time.Now().UTC()
	alerts := []InsiderAlert{
		{SignalType: SignalVolumeSpike, Severity: SeverityMedium, Confidence: 0.9, DetectedAt: now},
		{SignalType: SignalCoordinatedEntry, Severity: SeverityCritical, Confidence: 0.5, DetectedAt: now},
		{SignalType: SignalNewAccountWhale, Severity: SeverityCritical, Confidence: 0.8, DetectedAt: now},
		{SignalType: SignalWhaleAnomaly, Severity: SeverityLow, Confidence: 1.0, DetectedAt: now},
	}
	sorted := SortInsiderAlerts(alerts)
	require.Len(t, sorted, 4)
	assert.Equal(t, SignalNewAccountWhale, sorted[0].SignalType)
	assert.Equal(t, SignalCoordinatedEntry, sorted[1].SignalType)
	assert.Equal(t, SignalVolumeSpike, sorted[2].SignalType)
	assert.Equal(t, SignalWhaleAnomaly, sorted[3].SignalType)
}

func TestGlobMatchLikeSemantics(t *testing.T) {
	assert.True(t, globMatch("abc-15m-xyz", "%-15m-%"))
	assert.True(t, globMatch("btc-updown-hourly", "btc-updown%"))
	assert.True(t, globMatch("exact", "exact"))
	assert.False(t, globMatch("exact-no", "exact"))
	assert.False(t, globMatch("abc", "%-15m-%"))
	assert.True(t, globMatch("my-btc-goes-above-100", "%btc%above%"))
}

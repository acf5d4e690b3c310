package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileTrade(cond string, outcome int, side Side, notional, price float64, ts time.Time) Trade {
	return Trade{
		Timestamp: ts, WalletID: "w1", ConditionID: cond, OutcomeIndex: outcome,
		Side: side, Notional: notional, Price: price, Size: notional / price,
	}
}

func TestBuildProfileAggregates(t *testing.T) {
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		profileTrade("m1", 0, Buy, 100, 0.5, base),
		profileTrade("m1", 1, Buy, 50, 0.5, base.Add(time.Hour)),
		profileTrade("m2", 0, Buy, 200, 0.4, base.AddDate(0, 0, 5)),
		profileTrade("m2", 0, Sell, 150, 0.6, base.AddDate(0, 0, 9)),
	}

	p := BuildProfile("w1", trades, WalletProfile{}, time.Now().UTC())

	assert.Equal(t, 4, p.TotalTrades)
	assert.InDelta(t, 500, p.TotalVolume, 1e-9)
	assert.Equal(t, 2, p.UniqueMarkets)
	assert.Equal(t, base, p.FirstTradeAt)
	assert.Equal(t, base.AddDate(0, 0, 9), p.LastTradeAt)
	assert.Equal(t, 10, p.DaysActive)
	assert.Equal(t, 3, p.BuyCount)
	assert.Equal(t, 1, p.SellCount)
	assert.InDelta(t, 125, p.AvgTradeSize, 1e-9)
	assert.InDelta(t, 0.5, p.AvgPrice, 1e-9)

	// m1 traded both outcomes, m2 only one: 1 of 2 markets.
	assert.InDelta(t, 0.5, p.CompleteSetRatio, 1e-9)

	// BUY volume: 350 total, 300 on outcome 0.
	assert.InDelta(t, 300.0/350.0, p.DirectionBias, 1e-9)
}

func TestBuildProfilePreservesPnLFields(t *testing.T) {
	existing := WalletProfile{TotalPnL: 1234, DataQuality: DataQualityPnLCalculated}
	p := BuildProfile("w1", []Trade{
		profileTrade("m1", 0, Buy, 100, 0.5, time.Now()),
	}, existing, time.Now().UTC())

	assert.InDelta(t, 1234, p.TotalPnL, 1e-9)
	assert.Equal(t, DataQualityPnLCalculated, p.DataQuality)
}

func TestBuildProfileNoTrades(t *testing.T) {
	p := BuildProfile("w1", nil, WalletProfile{}, time.Now().UTC())
	require.Equal(t, "w1", p.WalletID)
	assert.Equal(t, 0, p.TotalTrades)
	assert.Equal(t, DataQualityPartial, p.DataQuality)
}

func TestBuildProfileNoBuysHasNeutralBias(t *testing.T) {
	p := BuildProfile("w1", []Trade{
		profileTrade("m1", 0, Sell, 100, 0.5, time.Now()),
	}, WalletProfile{}, time.Now().UTC())
	assert.InDelta(t, 0.5, p.DirectionBias, 1e-9)
}

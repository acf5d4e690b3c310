package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreProfitabilityLadder(t *testing.T) {
	tests := []struct {
		name string
		pnl  float64
		want float64
	}{
		{"six figures", 150000, 95},
		{"fifty k", 60000, 85},
		{"twenty k", 25000, 75},
		{"ten k", 12000, 65},
		{"five k", 7000, 55},
		{"one k", 2000, 45},
		{"sub one k interpolates", 500, 40},
		{"zero", 0, 20},
		{"small loss", -500, 15},
		{"deep loss floors at zero", -10000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreProfitability(tt.pnl, nil), 1e-9)
		})
	}
}

func TestScoreProfitabilityPercentileWithPeers(t *testing.T) {
	peers := &ScorePeers{PnLs: make([]float64, 0, 20)}
	for i := 0; i < 20; i++ {
		peers.PnLs = append(peers.PnLs, float64(i)*1000)
	}

	// 10500 beats 11 of 20 peers → 55th percentile.
	assert.InDelta(t, 55, ScoreProfitability(10500, peers), 1e-9)
	// Top of cohort caps at 95.
	assert.InDelta(t, 95, ScoreProfitability(1e9, peers), 1e-9)
}

func TestScoreRiskAdjustedLadders(t *testing.T) {
	// Small size and max diversity saturate at 100.
	assert.InDelta(t, 100, ScoreRiskAdjusted(50, 50), 1e-9)
	// 200 avg size (+15) and 5 markets (+15) on base 50.
	assert.InDelta(t, 80, ScoreRiskAdjusted(200, 5), 1e-9)
	// Zero markets must not divide by zero and lands on the floor bonus.
	assert.InDelta(t, 60, ScoreRiskAdjusted(0, 0), 1e-9)
}

func TestScoreConsistencyBelowMinTradesScalesLinearly(t *testing.T) {
	assert.InDelta(t, 6, ScoreConsistency(10, 10, 5, 5), 1e-9)
	assert.InDelta(t, 0, ScoreConsistency(0, 0, 0, 0), 1e-9)
}

func TestScoreConsistencyBalancedHighVolume(t *testing.T) {
	// 300 trades over 100 days = 3/day (+25); perfectly balanced (+35);
	// 100 days active (+25) = 85.
	assert.InDelta(t, 85, ScoreConsistency(300, 100, 150, 150), 1e-9)
}

func TestScoreTrackRecordLadders(t *testing.T) {
	// 10 days (10/30·15=5) + $2k volume (+10) + 5 markets (+10) = 25.
	assert.InDelta(t, 25, ScoreTrackRecord(10, 2000, 5), 1e-9)
	// Saturated veteran caps at 100.
	assert.InDelta(t, 100, ScoreTrackRecord(400, 200000, 60), 1e-9)
}

// The worked scoring example: 10 trades, $500 P&L, 5 markets, 10 days,
// $2000 volume, balanced buys/sells, no complete sets, neutral bias.
func TestCalculateScoreWorkedExample(t *testing.T) {
	m := ScoringMetrics{
		WalletID:         "w1",
		TotalPnL:         500,
		AvgTradeSize:     200,
		UniqueMarkets:    5,
		TotalTrades:      10,
		DaysActive:       10,
		BuyCount:         5,
		SellCount:        5,
		TotalVolumeUSD:   2000,
		CompleteSetRatio: 0.0,
		DirectionBias:    0.5,
	}

	score := CalculateScore(m, nil, DefaultScoringWeights, time.Now())

	assert.InDelta(t, 40.0, score.Profitability, 1e-9)
	assert.InDelta(t, 80.0, score.RiskAdjusted, 1e-9)
	assert.InDelta(t, 6.0, score.Consistency, 1e-9)
	assert.InDelta(t, 25.0, score.TrackRecord, 1e-9)

	// 0.40·40 + 0.30·80 + 0.20·6 + 0.10·25 = 43.7
	assert.InDelta(t, 43.7, score.TotalScore, 1e-9)
	assert.Equal(t, TierSilver, score.Tier)
}

func TestClassifyStrategyArbitrageur(t *testing.T) {
	m := ScoringMetrics{
		CompleteSetRatio: 0.9,
		TotalTrades:      600,
		BuyCount:         500,
		SellCount:        100,
		DirectionBias:    0.52,
		UniqueMarkets:    60,
	}
	strategy, confidence := ClassifyStrategy(m)
	assert.Equal(t, StrategyArbitrageur, strategy)
	assert.InDelta(t, 100, confidence, 1e-9)
}

func TestClassifyStrategyHybridWhenClose(t *testing.T) {
	// Arb 40, MM balance 0.8·50=40: spread 0 < 15 → HYBRID at best·0.7.
	m := ScoringMetrics{
		CompleteSetRatio: 0.4,
		TotalTrades:      100,
		BuyCount:         60,
		SellCount:        40,
		DirectionBias:    0.5,
		UniqueMarkets:    60,
	}
	strategy, confidence := ClassifyStrategy(m)
	assert.Equal(t, StrategyHybrid, strategy)
	assert.InDelta(t, 28, confidence, 1e-9)
}

func TestClassifyStrategyUnknownWhenWeak(t *testing.T) {
	// All candidate scores under 30 stay UNKNOWN even when close together.
	m := ScoringMetrics{
		CompleteSetRatio: 0.0,
		TotalTrades:      100,
		BuyCount:         100,
		SellCount:        0,
		DirectionBias:    0.5,
		UniqueMarkets:    60,
	}
	strategy, _ := ClassifyStrategy(m)
	assert.Equal(t, StrategyUnknown, strategy)
}

func TestClassifyStrategyIsPure(t *testing.T) {
	m := ScoringMetrics{
		CompleteSetRatio: 0.33,
		TotalTrades:      321,
		BuyCount:         200,
		SellCount:        121,
		DirectionBias:    0.71,
		UniqueMarkets:    12,
	}
	s1, c1 := ClassifyStrategy(m)
	s2, c2 := ClassifyStrategy(m)
	assert.Equal(t, s1, s2)
	assert.Equal(t, c1, c2)
}

func TestApplyStrategyAdjustments(t *testing.T) {
	// Arbitrageur with weak consistency gets dampened.
	_, _, consistency, _ := ApplyStrategyAdjustments(StrategyArbitrageur, 50, 50, 50, 50)
	assert.InDelta(t, 40, consistency, 1e-9)

	// Arbitrageur with strong consistency gets boosted, capped at 100.
	_, _, consistency, _ = ApplyStrategyAdjustments(StrategyArbitrageur, 50, 50, 95, 50)
	assert.InDelta(t, 100, consistency, 1e-9)

	// Directional momentum with high profitability gets boosted.
	profitability, _, _, _ := ApplyStrategyAdjustments(StrategyDirectionalMomentum, 70, 50, 50, 50)
	assert.InDelta(t, 77, profitability, 1e-9)

	// Below the 60 gate, nothing changes.
	profitability, _, _, _ = ApplyStrategyAdjustments(StrategyDirectionalMomentum, 60, 50, 50, 50)
	assert.InDelta(t, 60, profitability, 1e-9)
}

func TestTierForScoreBoundaries(t *testing.T) {
	assert.Equal(t, TierBronze, TierForScore(0))
	assert.Equal(t, TierBronze, TierForScore(39.99))
	assert.Equal(t, TierSilver, TierForScore(40))
	assert.Equal(t, TierSilver, TierForScore(59.99))
	assert.Equal(t, TierGold, TierForScore(60))
	assert.Equal(t, TierGold, TierForScore(79.99))
	assert.Equal(t, TierDiamond, TierForScore(80))
	assert.Equal(t, TierDiamond, TierForScore(100))
}

func TestTierMonotonicity(t *testing.T) {
	prev := -1
	for score := 0.0; score <= 100.0; score += 0.5 {
		rank := TierRank(TierForScore(score))
		require.GreaterOrEqual(t, rank, prev, "tier rank regressed at score %.1f", score)
		prev = rank
	}
}

func TestRankScoresDescending(t *testing.T) {
	scores := []WalletScore{
		{WalletID: "low", TotalScore: 10},
		{WalletID: "high", TotalScore: 90},
		{WalletID: "mid", TotalScore: 50},
	}
	ranked := RankScores(scores)
	require.Len(t, ranked, 3)
	assert.Equal(t, "high", ranked[0].WalletID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, "mid", ranked[1].WalletID)
	assert.Equal(t, 2, ranked[1].Rank)
	assert.Equal(t, "low", ranked[2].WalletID)
	assert.Equal(t, 3, ranked[2].Rank)
}

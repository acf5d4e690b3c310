package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dailySeries(pnls ...float64) []DailyPnL {
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]DailyPnL, len(pnls))
	for i, p := range pnls {
		out[i] = DailyPnL{Date: base.AddDate(0, 0, i), PnL: p}
	}
	return out
}

func TestCalculateSharpeInsufficientHistoryExcluded(t *testing.T) {
	_, ok := CalculateSharpe("w1", dailySeries(10, 20), 3)
	assert.False(t, ok)
}

func TestCalculateSharpeZeroStdYieldsZero(t *testing.T) {
	s, ok := CalculateSharpe("w1", dailySeries(10, 10, 10, 10), 3)
	require.True(t, ok)
	assert.InDelta(t, 0, s.SharpeRatio, 1e-9)
	assert.InDelta(t, 0, s.SharpeCapped, 1e-9)
}

func TestCalculateSharpeAnnualizedAndCapped(t *testing.T) {
	// High, steady returns drive the raw annualized Sharpe far above the cap.
	s, ok := CalculateSharpe("w1", dailySeries(100, 101, 99, 100, 102, 98, 100), 3)
	require.True(t, ok)
	assert.Greater(t, s.SharpeRatio, MaxSharpeRatio)
	assert.InDelta(t, MaxSharpeRatio, s.SharpeCapped, 1e-9)
}

func TestCalculateSharpeMatchesFormula(t *testing.T) {
	daily := dailySeries(10, -5, 20, 15, -10)
	s, ok := CalculateSharpe("w1", daily, 3)
	require.True(t, ok)

	var sum float64
	for _, d := range daily {
		sum += d.PnL
	}
	mean := sum / float64(len(daily))
	var varSum float64
	for _, d := range daily {
		varSum += (d.PnL - mean) * (d.PnL - mean)
	}
	std := math.Sqrt(varSum / float64(len(daily)))

	assert.InDelta(t, mean, s.MeanDailyPnL, 1e-9)
	assert.InDelta(t, std, s.StdDailyPnL, 1e-9)
	assert.InDelta(t, (mean/std)*math.Sqrt(365), s.SharpeRatio, 1e-9)
	assert.Equal(t, 5, s.DaysWithPnL)
}

func TestCalculateSharpeConfidenceScalesWithDays(t *testing.T) {
	s, ok := CalculateSharpe("w1", dailySeries(1, 2, 3), 3)
	require.True(t, ok)
	assert.InDelta(t, 0.1, s.Confidence, 1e-9)

	forty := make([]float64, 40)
	for i := range forty {
		forty[i] = float64(i%7) - 3
	}
	s, ok = CalculateSharpe("w1", dailySeries(forty...), 3)
	require.True(t, ok)
	assert.InDelta(t, 1.0, s.Confidence, 1e-9)

	assert.GreaterOrEqual(t, s.Confidence, 0.0)
	assert.LessOrEqual(t, s.Confidence, 1.0)
}

func TestRankBySharpeIsConfidenceScaled(t *testing.T) {
	// A lucky 4-day wallet with a capped Sharpe of 10 must not outrank a
	// 30-day wallet with a solid 6: 10·(4/30) ≈ 1.33 vs 6·1.0 = 6.
	lucky := WalletSharpe{WalletID: "lucky", SharpeCapped: 10, DaysWithPnL: 4, Confidence: 4.0 / 30.0}
	steady := WalletSharpe{WalletID: "steady", SharpeCapped: 6, DaysWithPnL: 30, Confidence: 1.0}

	ranked := RankBySharpe([]WalletSharpe{lucky, steady})
	require.Len(t, ranked, 2)
	assert.Equal(t, "steady", ranked[0].WalletID)
	assert.Equal(t, "lucky", ranked[1].WalletID)

	assert.InDelta(t, 6.0, steady.RankingScore(), 1e-9)
	assert.InDelta(t, 10.0*4.0/30.0, lucky.RankingScore(), 1e-9)
}

func TestRankBySharpeTieBreaksOnCappedRatio(t *testing.T) {
	a := WalletSharpe{WalletID: "a", SharpeCapped: 4, Confidence: 0.5}
	b := WalletSharpe{WalletID: "b", SharpeCapped: 2, Confidence: 1.0}

	ranked := RankBySharpe([]WalletSharpe{b, a})
	require.Len(t, ranked, 2)
	// Equal ranking scores (2.0): the higher capped ratio wins.
	assert.Equal(t, "a", ranked[0].WalletID)
}

func TestCalculateSharpeCapNeverExceeded(t *testing.T) {
	seqs := [][]float64{
		{1, 2, 3, 4},
		{1000, 1000, 1001, 999},
		{-5, 10, -3, 8, 2},
	}
	for _, seq := range seqs {
		s, ok := CalculateSharpe("w1", dailySeries(seq...), 3)
		require.True(t, ok)
		assert.LessOrEqual(t, s.SharpeCapped, MaxSharpeRatio)
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}
}

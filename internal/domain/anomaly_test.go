package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectWinRateAnomalyEscalation(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultAnomalyConfig

	// Under 30 trades: never flags, even at 100% win rate.
	_, ok := DetectWinRateAnomaly("w1", 20, 20, cfg, now)
	assert.False(t, ok)

	// Believable win rate: no flag.
	_, ok = DetectWinRateAnomaly("w1", 100, 80, cfg, now)
	assert.False(t, ok)

	a, ok := DetectWinRateAnomaly("w1", 100, 90, cfg, now)
	require.True(t, ok)
	assert.Equal(t, SeverityMedium, a.Severity)

	a, ok = DetectWinRateAnomaly("w1", 100, 96, cfg, now)
	require.True(t, ok)
	assert.Equal(t, SeverityHigh, a.Severity)

	a, ok = DetectWinRateAnomaly("w1", 100, 99, cfg, now)
	require.True(t, ok)
	assert.Equal(t, SeverityCritical, a.Severity)
	assert.Equal(t, AnomalyWinRate, a.Type)
}

func TestDetectTimingPatternBotLikeRegularity(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultAnomalyConfig

	// 20 nearly-identical 2-second gaps: CV ≈ 0, mean < 5s.
	regular := make([]float64, 20)
	for i := range regular {
		regular[i] = 2.0
	}
	a, ok := DetectTimingPattern("w1", regular, cfg, now)
	require.True(t, ok)
	assert.Equal(t, AnomalyTimingPattern, a.Type)

	// Same regularity but slow cadence: human-plausible.
	slow := make([]float64, 20)
	for i := range slow {
		slow[i] = 60.0
	}
	_, ok = DetectTimingPattern("w1", slow, cfg, now)
	assert.False(t, ok)

	// Irregular gaps: high CV.
	irregular := []float64{1, 30, 2, 400, 5, 90, 1, 200, 3, 60, 2, 45}
	_, ok = DetectTimingPattern("w1", irregular, cfg, now)
	assert.False(t, ok)

	// Too few intervals to judge.
	_, ok = DetectTimingPattern("w1", []float64{2, 2, 2}, cfg, now)
	assert.False(t, ok)
}

func TestDetectVolumeConcentration(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultAnomalyConfig

	a, ok := DetectVolumeConcentration("w1", 150, 1, cfg, now)
	require.True(t, ok)
	assert.Equal(t, AnomalyVolumeConcentration, a.Type)

	_, ok = DetectVolumeConcentration("w1", 150, 3, cfg, now)
	assert.False(t, ok)

	_, ok = DetectVolumeConcentration("w1", 50, 1, cfg, now)
	assert.False(t, ok)
}

func TestDetectImpossibleSharpe(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultAnomalyConfig

	a, ok := DetectImpossibleSharpe("w1", 6.5, cfg, now)
	require.True(t, ok)
	assert.Equal(t, SeverityHigh, a.Severity)

	_, ok = DetectImpossibleSharpe("w1", 4.9, cfg, now)
	assert.False(t, ok)
}

func TestLongestWinStreak(t *testing.T) {
	assert.Equal(t, 0, LongestWinStreak(nil))
	assert.Equal(t, 3, LongestWinStreak([]float64{1, 2, 3}))
	assert.Equal(t, 2, LongestWinStreak([]float64{1, -1, 5, 3, -2, 4}))
	assert.Equal(t, 0, LongestWinStreak([]float64{-1, -2, 0}))
}

func TestDetectWinStreak(t *testing.T) {
	now := time.Now().UTC()
	cfg := DefaultAnomalyConfig

	exactly20 := make([]float64, 20)
	for i := range exactly20 {
		exactly20[i] = 1
	}
	_, ok := DetectWinStreak("w1", exactly20, cfg, now)
	assert.False(t, ok, "streak of exactly 20 is within bounds")

	wins21 := append(exactly20, 1)
	a, ok := DetectWinStreak("w1", wins21, cfg, now)
	require.True(t, ok)
	assert.Equal(t, AnomalyWinStreak, a.Type)
}

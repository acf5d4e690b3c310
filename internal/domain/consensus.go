package domain

import (
	"math"
	"time"
)

// ConsensusStrength buckets agreement percentage (spec §4.7).
type ConsensusStrength string

const (
	ConsensusNone       ConsensusStrength = "NONE"
	ConsensusWeak       ConsensusStrength = "WEAK"
	ConsensusModerate   ConsensusStrength = "MODERATE"
	ConsensusStrong     ConsensusStrength = "STRONG"
	ConsensusVeryStrong ConsensusStrength = "VERY_STRONG"
)

// ConsensusDirection is which outcome smart money has converged on.
type ConsensusDirection string

const (
	DirectionYes   ConsensusDirection = "YES"
	DirectionNo    ConsensusDirection = "NO"
	DirectionSplit ConsensusDirection = "SPLIT"
)

// ConsensusThresholds are the agreement-percentage bucket boundaries,
// verbatim from consensus.py::ConsensusConfig defaults.
type ConsensusThresholds struct {
	Weak       float64
	Moderate   float64
	Strong     float64
	VeryStrong float64
}

var DefaultConsensusThresholds = ConsensusThresholds{
	Weak:       0.55,
	Moderate:   0.65,
	Strong:     0.75,
	VeryStrong: 0.85,
}

// DetermineStrength buckets agreementPct per spec §4.7.
func DetermineStrength(agreementPct float64, t ConsensusThresholds) ConsensusStrength {
	switch {
	case agreementPct >= t.VeryStrong:
		return ConsensusVeryStrong
	case agreementPct >= t.Strong:
		return ConsensusStrong
	case agreementPct >= t.Moderate:
		return ConsensusModerate
	case agreementPct >= t.Weak:
		return ConsensusWeak
	default:
		return ConsensusNone
	}
}

// TraderPosition is one wallet's aggregated net position within a market's
// lookback window, grounded on consensus.py::_aggregate_positions.
type TraderPosition struct {
	WalletID     string
	TotalScore   float64
	YesVolume    float64
	NoVolume     float64
	TotalVolume  float64
	FirstTradeAt time.Time
	LastTradeAt  time.Time
}

// NetDirection returns the trader's net directional lean, or ("", false) if
// exactly neutral (excluded from consensus per spec §4.7).
func (p TraderPosition) NetDirection() (ConsensusDirection, bool) {
	if p.YesVolume > p.NoVolume {
		return DirectionYes, true
	}
	if p.NoVolume > p.YesVolume {
		return DirectionNo, true
	}
	return "", false
}

// AggregatePosition folds a market's smart-money trades into one
// TraderPosition per wallet. BUY+YES or SELL+NO count toward yes_volume,
// everything else toward no_volume — verbatim from
// consensus.py::_aggregate_positions.
func AggregatePosition(walletID string, score float64, trades []Trade) TraderPosition {
	p := TraderPosition{WalletID: walletID, TotalScore: score}
	for _, t := range trades {
		isYesLeaning := (t.Side == Buy && isYesOutcome(t.OutcomeLabel)) ||
			(t.Side == Sell && isNoOutcome(t.OutcomeLabel))
		if isYesLeaning {
			p.YesVolume += t.Notional
		} else {
			p.NoVolume += t.Notional
		}
		p.TotalVolume += t.Notional
		if p.FirstTradeAt.IsZero() || t.Timestamp.Before(p.FirstTradeAt) {
			p.FirstTradeAt = t.Timestamp
		}
		if t.Timestamp.After(p.LastTradeAt) {
			p.LastTradeAt = t.Timestamp
		}
	}
	return p
}

func isYesOutcome(label string) bool {
	return containsFold(label, "YES")
}

func isNoOutcome(label string) bool {
	return containsFold(label, "NO")
}

func containsFold(s, substr string) bool {
	sUpper := toUpperASCII(s)
	return indexOf(sUpper, substr) >= 0
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}

// ConsensusSignal is the per-market consensus result (spec §4.7).
type ConsensusSignal struct {
	MarketSlug          string
	Strength            ConsensusStrength
	Direction            ConsensusDirection
	AgreementPct        float64
	NumTradersAnalyzed  int
	NumTradersFor       int
	NumTradersAgainst   int
	VolumeFor           float64
	VolumeAgainst       float64
	Confidence          float64
	FirstTradeAt        time.Time
	LastTradeAt         time.Time
	DetectedAt          time.Time
}

// AnalyzeConsensus runs the full per-market consensus computation over a
// set of already-aggregated trader positions. Returns ok=false when there
// are too few directional traders to form a signal.
func AnalyzeConsensus(marketSlug string, positions []TraderPosition, minTraders int, thresholds ConsensusThresholds, now time.Time) (ConsensusSignal, bool) {
	var yes, no []TraderPosition
	for _, p := range positions {
		dir, ok := p.NetDirection()
		if !ok {
			continue
		}
		if dir == DirectionYes {
			yes = append(yes, p)
		} else {
			no = append(no, p)
		}
	}

	total := len(yes) + len(no)
	if total < minTraders {
		return ConsensusSignal{}, false
	}

	var direction ConsensusDirection
	var tradersFor, tradersAgainst []TraderPosition
	switch {
	case len(yes) > len(no):
		direction, tradersFor, tradersAgainst = DirectionYes, yes, no
	case len(no) > len(yes):
		direction, tradersFor, tradersAgainst = DirectionNo, no, yes
	default:
		direction, tradersFor, tradersAgainst = DirectionSplit, yes, no
	}

	majority := len(yes)
	if len(no) > majority {
		majority = len(no)
	}
	agreementPct := float64(majority) / float64(total)

	var volumeFor, volumeAgainst float64
	for _, p := range tradersFor {
		volumeFor += p.TotalVolume
	}
	for _, p := range tradersAgainst {
		volumeAgainst += p.TotalVolume
	}

	strength := DetermineStrength(agreementPct, thresholds)

	confidence := calculateConsensusConfidence(total, tradersFor, volumeFor, volumeFor+volumeAgainst)

	var first, last time.Time
	for _, p := range positions {
		if !p.FirstTradeAt.IsZero() && (first.IsZero() || p.FirstTradeAt.Before(first)) {
			first = p.FirstTradeAt
		}
		if p.LastTradeAt.After(last) {
			last = p.LastTradeAt
		}
	}

	return ConsensusSignal{
		MarketSlug:         marketSlug,
		Strength:           strength,
		Direction:          direction,
		AgreementPct:       agreementPct,
		NumTradersAnalyzed: total,
		NumTradersFor:      len(tradersFor),
		NumTradersAgainst:  len(tradersAgainst),
		VolumeFor:          volumeFor,
		VolumeAgainst:      volumeAgainst,
		Confidence:         confidence,
		FirstTradeAt:       first,
		LastTradeAt:        last,
		DetectedAt:         now,
	}, true
}

// calculateConsensusConfidence is verbatim from
// consensus.py::_calculate_confidence, returned on a 0-1 scale (spec §4.7
// gives the formula without the *100 the original applies for display).
func calculateConsensusConfidence(numTraders int, majority []TraderPosition, volumeFor, totalVolume float64) float64 {
	traderFactor := math.Min(1.0, math.Log(float64(numTraders)+1)/math.Log(21))

	var volumeFactor float64
	if totalVolume > 0 {
		volumeFactor = volumeFor / totalVolume
	}

	var qualityFactor float64
	if len(majority) > 0 {
		var sum float64
		for _, p := range majority {
			sum += p.TotalScore
		}
		qualityFactor = (sum / float64(len(majority))) / 100
	}

	confidence := 0.30*traderFactor + 0.40*volumeFactor + 0.30*qualityFactor
	return math.Min(1.0, math.Max(0.0, confidence))
}

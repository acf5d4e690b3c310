package domain

import "time"

// ScoringWeights are the composite score's subscore weights (spec §4.5
// defaults: 0.40 / 0.30 / 0.20 / 0.10).
type ScoringWeights struct {
	Profitability float64
	RiskAdjusted  float64
	Consistency   float64
	TrackRecord   float64
}

// DefaultScoringWeights matches scoring_job.py's ScoringConfig defaults.
var DefaultScoringWeights = ScoringWeights{
	Profitability: 0.40,
	RiskAdjusted:  0.30,
	Consistency:   0.20,
	TrackRecord:   0.10,
}

// ScoringMetrics is the per-wallet input the composite scorer consumes,
// mirroring scoring_job.py's TraderMetrics plus the batch-fetched strategy
// indicators.
type ScoringMetrics struct {
	WalletID         string
	TotalPnL         float64
	AvgTradeSize     float64
	UniqueMarkets    int
	TotalTrades      int
	DaysActive       int
	BuyCount         int
	SellCount        int
	TotalVolumeUSD   float64
	CompleteSetRatio float64
	DirectionBias    float64
}

// ScorePeers gives percentile ranking access to the scored cohort's P&L,
// the scored wallet's own included. Pass nil or len<=10 to force the ladder
// fallback.
type ScorePeers struct {
	PnLs []float64
}

// ScoreProfitability scores 0-100 by percentile rank across the cohort when
// ≥ 10 peers are available, otherwise by the absolute-P&L ladder. Verbatim
// from scoring_job.py::_score_profitability.
func ScoreProfitability(pnl float64, peers *ScorePeers) float64 {
	if pnl <= 0 {
		return maxF(0, 20+(pnl/100))
	}

	if peers != nil && len(peers.PnLs) > 10 {
		var below int
		for _, p := range peers.PnLs {
			if p < pnl {
				below++
			}
		}
		percentile := (float64(below) / float64(len(peers.PnLs))) * 100
		return minF(percentile, 95)
	}

	switch {
	case pnl >= 100000:
		return 95
	case pnl >= 50000:
		return 85
	case pnl >= 20000:
		return 75
	case pnl >= 10000:
		return 65
	case pnl >= 5000:
		return 55
	case pnl >= 1000:
		return 45
	default:
		return 35 + (pnl/1000)*10
	}
}

// ScoreRiskAdjusted rewards small average position size and high market
// diversity. Verbatim from scoring_job.py::_score_risk_management.
func ScoreRiskAdjusted(avgTradeSize float64, uniqueMarkets int) float64 {
	score := 50.0

	if avgTradeSize > 0 {
		switch {
		case avgTradeSize <= 100:
			score += 20
		case avgTradeSize <= 500:
			score += 15
		case avgTradeSize <= 1000:
			score += 10
		default:
			score += 5
		}
	}

	switch {
	case uniqueMarkets >= 50:
		score += 30
	case uniqueMarkets >= 20:
		score += 25
	case uniqueMarkets >= 10:
		score += 20
	case uniqueMarkets >= 5:
		score += 15
	default:
		score += 10
	}

	return minF(100, score)
}

// ScoreConsistency scores trade frequency, buy/sell balance, and an
// active-days bonus. Verbatim from scoring_job.py::_score_consistency.
func ScoreConsistency(totalTrades, daysActive, buyCount, sellCount int) float64 {
	if totalTrades < 50 {
		return float64(totalTrades) / 50 * 30
	}

	var score float64

	if daysActive > 0 {
		tradesPerDay := float64(totalTrades) / float64(daysActive)
		switch {
		case tradesPerDay >= 5:
			score += 30
		case tradesPerDay >= 2:
			score += 25
		case tradesPerDay >= 1:
			score += 20
		case tradesPerDay >= 0.5:
			score += 15
		default:
			score += 10
		}
	}

	total := buyCount + sellCount
	if total > 0 {
		balance := minF(float64(buyCount), float64(sellCount)) / (float64(total) / 2)
		score += balance * 35
	}

	switch {
	case daysActive >= 365:
		score += 35
	case daysActive >= 180:
		score += 30
	case daysActive >= 90:
		score += 25
	case daysActive >= 30:
		score += 20
	default:
		score += float64(daysActive) / 30 * 20
	}

	return minF(100, score)
}

// ScoreTrackRecord scores days active, volume, and market diversity, each
// via its own ladder. Verbatim from scoring_job.py::_score_track_record.
func ScoreTrackRecord(daysActive int, totalVolumeUSD float64, uniqueMarkets int) float64 {
	var score float64

	switch {
	case daysActive >= 365:
		score += 35
	case daysActive >= 180:
		score += 30
	case daysActive >= 90:
		score += 25
	case daysActive >= 60:
		score += 20
	case daysActive >= 30:
		score += 15
	default:
		score += float64(daysActive) / 30 * 15
	}

	switch {
	case totalVolumeUSD >= 100000:
		score += 35
	case totalVolumeUSD >= 50000:
		score += 30
	case totalVolumeUSD >= 20000:
		score += 25
	case totalVolumeUSD >= 10000:
		score += 20
	case totalVolumeUSD >= 5000:
		score += 15
	case totalVolumeUSD >= 1000:
		score += 10
	default:
		score += 5
	}

	switch {
	case uniqueMarkets >= 50:
		score += 30
	case uniqueMarkets >= 30:
		score += 25
	case uniqueMarkets >= 20:
		score += 20
	case uniqueMarkets >= 10:
		score += 15
	case uniqueMarkets >= 5:
		score += 10
	default:
		score += 5
	}

	return minF(100, score)
}

// ClassifyStrategy computes the three candidate strategy scores and picks a
// winner, collapsing to HYBRID when the top two are close and to UNKNOWN
// when the winner is weak. Verbatim from scoring_job.py::_classify_strategy,
// with the UNKNOWN floor per SPEC_FULL §13 Open Question 3 (applied
// regardless of spread).
func ClassifyStrategy(m ScoringMetrics) (StrategyType, float64) {
	arbScore := m.CompleteSetRatio * 100
	if m.TotalTrades > 500 {
		arbScore += 20
	}
	arbScore = minF(100, arbScore)

	type candidate struct {
		typ   StrategyType
		score float64
	}
	candidates := []candidate{{StrategyArbitrageur, arbScore}}

	total := m.BuyCount + m.SellCount
	if total > 0 {
		balance := 1 - absF(0.5-(float64(m.BuyCount)/float64(total)))*2
		mmScore := balance * 50
		if m.TotalTrades > 500 {
			mmScore += 30
		}
		candidates = append(candidates, candidate{StrategyMarketMaker, minF(100, mmScore)})
	}

	dirScore := absF(m.DirectionBias-0.5) * 100
	if m.UniqueMarkets < 50 {
		dirScore += 30
	}
	candidates = append(candidates, candidate{StrategyDirectionalMomentum, minF(100, dirScore)})

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score {
			best = c
		}
	}

	sortedScores := make([]float64, len(candidates))
	for i, c := range candidates {
		sortedScores[i] = c.score
	}
	sortDesc(sortedScores)

	// UNKNOWN floor applies before the hybrid-spread check: a weak winner
	// stays UNKNOWN no matter how close the runners-up are.
	if best.score < 30 {
		return StrategyUnknown, best.score
	}

	if len(sortedScores) >= 2 && sortedScores[0]-sortedScores[1] < 15 {
		return StrategyHybrid, best.score * 0.7
	}

	return best.typ, best.score
}

func sortDesc(xs []float64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j] > xs[j-1]; j-- {
			xs[j], xs[j-1] = xs[j-1], xs[j]
		}
	}
}

// ApplyStrategyAdjustments nudges consistency or profitability based on
// strategy classification. Verbatim from
// scoring_job.py::_apply_strategy_adjustments.
func ApplyStrategyAdjustments(strategy StrategyType, profitability, riskAdjusted, consistency, trackRecord float64) (float64, float64, float64, float64) {
	switch strategy {
	case StrategyArbitrageur:
		if consistency < 70 {
			consistency *= 0.8
		} else {
			consistency = minF(100, consistency*1.1)
		}
	case StrategyDirectionalMomentum:
		if profitability > 60 {
			profitability = minF(100, profitability*1.1)
		}
	}
	return profitability, riskAdjusted, consistency, trackRecord
}

// TierForScore is a pure function of total score (spec §3, invariant 4:
// monotone in score).
func TierForScore(score float64) Tier {
	switch {
	case score >= 80:
		return TierDiamond
	case score >= 60:
		return TierGold
	case score >= 40:
		return TierSilver
	default:
		return TierBronze
	}
}

// CalculateScore runs the full composite-score pipeline for one wallet:
// subscores, strategy classification, strategy adjustments, weighted sum,
// and tiering. Grounded on scoring_job.py::SmartMoneyScorer.calculate_score.
func CalculateScore(m ScoringMetrics, peers *ScorePeers, weights ScoringWeights, now time.Time) WalletScore {
	profitability := ScoreProfitability(m.TotalPnL, peers)
	riskAdjusted := ScoreRiskAdjusted(m.AvgTradeSize, m.UniqueMarkets)
	consistency := ScoreConsistency(m.TotalTrades, m.DaysActive, m.BuyCount, m.SellCount)
	trackRecord := ScoreTrackRecord(m.DaysActive, m.TotalVolumeUSD, m.UniqueMarkets)

	strategy, confidence := ClassifyStrategy(m)

	profitability, riskAdjusted, consistency, trackRecord = ApplyStrategyAdjustments(
		strategy, profitability, riskAdjusted, consistency, trackRecord,
	)

	total := profitability*weights.Profitability +
		riskAdjusted*weights.RiskAdjusted +
		consistency*weights.Consistency +
		trackRecord*weights.TrackRecord

	totalScore := minF(100, maxF(0, total))

	return WalletScore{
		WalletID:           m.WalletID,
		TotalScore:         totalScore,
		Tier:               TierForScore(totalScore),
		Profitability:      profitability,
		RiskAdjusted:       riskAdjusted,
		Consistency:        consistency,
		TrackRecord:        trackRecord,
		StrategyType:       strategy,
		StrategyConfidence: confidence,
		CalculatedAt:       now,
		ModelVersion:       "smartmoney_v1",
	}
}

// RankScores assigns descending-score ranks within the batch (spec §4.5:
// "Ranks are assigned by descending score within the batch").
func RankScores(scores []WalletScore) []WalletScore {
	out := make([]WalletScore, len(scores))
	copy(out, scores)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].TotalScore > out[j-1].TotalScore; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

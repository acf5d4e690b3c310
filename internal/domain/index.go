package domain

import (
	"sort"
	"time"
)

// NonReplicableStrategies earn via latency and cannot be copied with a
// delay (spec §4.6 Step 1 "Critical"), verbatim from
// psi_index.py::NON_REPLICABLE_STRATEGIES.
var NonReplicableStrategies = map[StrategyType]bool{
	StrategyArbitrageur: true,
	StrategyMarketMaker: true,
	"SCALPER":           true,
}

// IndexConfig configures one named index's eligibility, selection,
// weighting, and concentration rules. Grounded on
// psi_index.py::IndexConfig/INDEX_CONFIGS.
type IndexConfig struct {
	IndexID                  string
	NumConstituents          int
	WeightingMethod          WeightingMethod
	MinTotalScore            float64
	MinTrades                int
	MinDaysActive            int
	MinVolumeUSD             float64
	MinSharpe                float64
	AllowedStrategies        []StrategyType // whitelist when non-empty
	ExcludedStrategies       []StrategyType // blacklist, always enforced
	RequiredCategories       []MarketCategory
	MinCategoryConcentration float64
	MaxWeightPerTrader       float64
	MaxStrategyConcentration float64
}

// EligibleWallet is the candidate input to index construction: a scored
// wallet plus the per-category volume fraction used by the sectoral filter.
type EligibleWallet struct {
	WalletID         string
	TotalScore       float64
	SharpeRatio      float64
	StrategyType     StrategyType
	TotalTrades      int
	DaysActive       int
	TotalVolumeUSD   float64
	CategoryVolume   map[MarketCategory]float64 // fraction of volume per category, sums to <=1
}

// FilterEligible applies Step 1 (score/trades/days/volume/Sharpe thresholds
// plus strategy allow/deny lists) and Step 2 (category concentration, for
// sectoral indices) from spec §4.6.
func FilterEligible(wallets []EligibleWallet, cfg IndexConfig) []EligibleWallet {
	allowed := make(map[StrategyType]bool, len(cfg.AllowedStrategies))
	for _, s := range cfg.AllowedStrategies {
		allowed[s] = true
	}
	excluded := make(map[StrategyType]bool, len(cfg.ExcludedStrategies))
	for _, s := range cfg.ExcludedStrategies {
		excluded[s] = true
	}

	var out []EligibleWallet
	for _, w := range wallets {
		if w.TotalScore < cfg.MinTotalScore {
			continue
		}
		if w.TotalTrades < cfg.MinTrades {
			continue
		}
		if w.DaysActive < cfg.MinDaysActive {
			continue
		}
		if w.TotalVolumeUSD < cfg.MinVolumeUSD {
			continue
		}
		if w.SharpeRatio < cfg.MinSharpe {
			continue
		}
		if len(allowed) > 0 && !allowed[w.StrategyType] {
			continue
		}
		if excluded[w.StrategyType] {
			continue
		}
		if len(cfg.RequiredCategories) > 0 {
			var sum float64
			for _, cat := range cfg.RequiredCategories {
				sum += w.CategoryVolume[cat]
			}
			if sum < cfg.MinCategoryConcentration {
				continue
			}
		}
		out = append(out, w)
	}
	return out
}

// SelectConstituents takes the top NumConstituents wallets by total score
// (spec §4.6 Step 3). Input must already be eligibility-filtered.
func SelectConstituents(wallets []EligibleWallet, cfg IndexConfig) []EligibleWallet {
	sorted := make([]EligibleWallet, len(wallets))
	copy(sorted, wallets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalScore > sorted[j].TotalScore
	})
	if len(sorted) > cfg.NumConstituents {
		sorted = sorted[:cfg.NumConstituents]
	}
	return sorted
}

// rawWeights computes the pre-cap weight of every wallet under method, from
// the cohort totals. Verbatim from psi_index.py::_calculate_weights, before
// the capping/renormalization step.
func rawWeights(wallets []EligibleWallet, method WeightingMethod) []float64 {
	n := len(wallets)
	weights := make([]float64, n)
	if n == 0 {
		return weights
	}

	switch method {
	case WeightEqual:
		w := 1.0 / float64(n)
		for i := range weights {
			weights[i] = w
		}
	case WeightScoreWeighted:
		var total float64
		for _, w := range wallets {
			total += w.TotalScore
		}
		if total > 0 {
			for i, w := range wallets {
				weights[i] = w.TotalScore / total
			}
		}
	case WeightSharpeWeighted:
		var total float64
		for _, w := range wallets {
			total += maxF(0, w.SharpeRatio)
		}
		if total > 0 {
			for i, w := range wallets {
				weights[i] = maxF(0, w.SharpeRatio) / total
			}
		}
	case WeightVolumeWeighted:
		var total float64
		for _, w := range wallets {
			total += w.TotalVolumeUSD
		}
		if total > 0 {
			for i, w := range wallets {
				weights[i] = w.TotalVolumeUSD / total
			}
		}
	}
	return weights
}

// CapAndRenormalize implements SPEC_FULL §13 Open Question 1: an analytical
// solve of "cap each weight at maxWeight, then renormalize to sum to 1.0"
// that actually holds for every weighting method (including EQUAL), unlike
// psi_index.py's single-pass cap-then-normalize which can re-exceed the cap
// after renormalizing (see test scenario S3). Caps the over-the-limit set,
// redistributes the freed residual uniformly among the remaining
// constituents, and repeats only if that redistribution pushes another
// constituent over the cap. Idempotent: running it again on an
// already-capped set is a no-op.
func CapAndRenormalize(weights []float64, maxWeight float64) []float64 {
	n := len(weights)
	if n == 0 {
		return weights
	}
	out := make([]float64, n)
	copy(out, weights)

	// Degenerate case: cap * n < 1.0 makes the invariant unsatisfiable (every
	// wallet capped still can't reach 1.0); fall back to equal weight, which
	// is the closest feasible point and itself respects the cap when
	// maxWeight >= 1/n.
	if maxWeight*float64(n) < 1.0-1e-9 {
		w := 1.0 / float64(n)
		for i := range out {
			out[i] = w
		}
		return out
	}

	capped := make([]bool, n)
	for {
		var sum float64
		for _, w := range out {
			sum += w
		}
		if sum > 0 {
			for i := range out {
				if !capped[i] {
					out[i] = out[i] / sum
				}
			}
		}

		overflowed := false
		var excess float64
		freeCount := 0
		for i, w := range out {
			if capped[i] {
				continue
			}
			if w > maxWeight+1e-12 {
				excess += w - maxWeight
				out[i] = maxWeight
				capped[i] = true
				overflowed = true
			} else {
				freeCount++
			}
		}
		if !overflowed {
			break
		}
		if freeCount == 0 {
			break
		}
		share := excess / float64(freeCount)
		for i := range out {
			if !capped[i] {
				out[i] += share
			}
		}
	}

	return out
}

// CalculateWeights runs Step 4 of spec §4.6 end to end: raw weights per
// method, then cap-and-renormalize.
func CalculateWeights(wallets []EligibleWallet, cfg IndexConfig, now time.Time) []IndexConstituent {
	raw := rawWeights(wallets, cfg.WeightingMethod)
	capped := CapAndRenormalize(raw, cfg.MaxWeightPerTrader)

	out := make([]IndexConstituent, len(wallets))
	for i, w := range wallets {
		out[i] = IndexConstituent{
			WalletID:          w.WalletID,
			Weight:            capped[i],
			ScoreAtInclusion:  w.TotalScore,
			SharpeAtInclusion: w.SharpeRatio,
			StrategyType:      w.StrategyType,
			AddedAt:           now,
		}
	}
	return out
}

// StrategyConcentrationWarnings reports, per spec §4.6 Step 5, any strategy
// exceeding maxConcentration*len(constituents). Warn-only: never rejects.
func StrategyConcentrationWarnings(constituents []IndexConstituent, maxConcentration float64) map[StrategyType]int {
	counts := map[StrategyType]int{}
	for _, c := range constituents {
		counts[c.StrategyType]++
	}
	limit := maxConcentration * float64(len(constituents))
	warnings := map[StrategyType]int{}
	for strategy, count := range counts {
		if float64(count) > limit {
			warnings[strategy] = count
		}
	}
	return warnings
}

// RebalanceDiff holds the wallet_ids added to and removed from an index by a
// rebalance, as computed by DiffConstituents; grounded on
// psi_index.py::rebalance_index.
type RebalanceDiff struct {
	Added   []string
	Removed []string
}

func DiffConstituents(old, new []IndexConstituent) RebalanceDiff {
	oldSet := make(map[string]bool, len(old))
	for _, c := range old {
		oldSet[c.WalletID] = true
	}
	newSet := make(map[string]bool, len(new))
	for _, c := range new {
		newSet[c.WalletID] = true
	}

	var diff RebalanceDiff
	for _, c := range new {
		if !oldSet[c.WalletID] {
			diff.Added = append(diff.Added, c.WalletID)
		}
	}
	for _, c := range old {
		if !newSet[c.WalletID] {
			diff.Removed = append(diff.Removed, c.WalletID)
		}
	}
	return diff
}

// Rebalance replaces oldIndex's constituents with freshly-built ones while
// preserving CreatedAt and CumulativeReturn.
func Rebalance(oldIndex Index, newConstituents []IndexConstituent, now time.Time) (Index, RebalanceDiff) {
	diff := DiffConstituents(oldIndex.Constituents, newConstituents)
	next := Index{
		IndexID:          oldIndex.IndexID,
		Constituents:     newConstituents,
		CreatedAt:        oldIndex.CreatedAt,
		LastRebalanced:   now,
		CumulativeReturn: oldIndex.CumulativeReturn,
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	return next, diff
}

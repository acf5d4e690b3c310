// Package index orchestrates the Index Builder (spec §4.6): fetch scored
// wallets, run them through the domain eligibility/selection/weighting
// pipeline for each configured index, and persist the rebalanced result.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
)

// Presets mirrors psi_index.py::INDEX_CONFIGS: a primary replicable-strategy
// index, a broader one, two sectoral indices, and an unfiltered leaderboard
// index, each with its own weighting method and concentration limits.
var Presets = []domain.IndexConfig{
	{
		IndexID: "psi-10", NumConstituents: 10, WeightingMethod: domain.WeightEqual,
		MinTotalScore: 50, MinTrades: 10, MinDaysActive: 1, MinVolumeUSD: 1000,
		ExcludedStrategies: nonReplicableList(), MaxWeightPerTrader: 0.20, MaxStrategyConcentration: 0.40,
	},
	{
		IndexID: "psi-25", NumConstituents: 25, WeightingMethod: domain.WeightEqual,
		MinTotalScore: 45, MinTrades: 5, MinDaysActive: 1, MinVolumeUSD: 500,
		ExcludedStrategies: nonReplicableList(), MaxWeightPerTrader: 0.20, MaxStrategyConcentration: 0.40,
	},
	{
		IndexID: "psi-all", NumConstituents: 50, WeightingMethod: domain.WeightScoreWeighted,
		MinTotalScore: 40, MinTrades: 5, MinDaysActive: 1, MinVolumeUSD: 500,
		MaxWeightPerTrader: 0.20, MaxStrategyConcentration: 0.40,
	},
	{
		IndexID: "psi-sports", NumConstituents: 10, WeightingMethod: domain.WeightScoreWeighted,
		MinTotalScore: 40, MinTrades: 10, MinDaysActive: 7, MinVolumeUSD: 1000,
		ExcludedStrategies:       nonReplicableList(),
		RequiredCategories:       []domain.MarketCategory{domain.CategorySports},
		MinCategoryConcentration: 0.5,
		MaxWeightPerTrader:       0.20, MaxStrategyConcentration: 0.40,
	},
	{
		IndexID: "psi-news", NumConstituents: 10, WeightingMethod: domain.WeightSharpeWeighted,
		MinTotalScore: 40, MinTrades: 10, MinDaysActive: 7, MinVolumeUSD: 1000,
		AllowedStrategies:        []domain.StrategyType{domain.StrategyDirectionalMomentum, domain.StrategyHybrid},
		RequiredCategories:       []domain.MarketCategory{domain.CategoryNews, domain.CategoryPolitics},
		MinCategoryConcentration: 0.5,
		MaxWeightPerTrader:       0.20, MaxStrategyConcentration: 0.40,
	},
}

func nonReplicableList() []domain.StrategyType {
	out := make([]domain.StrategyType, 0, len(domain.NonReplicableStrategies))
	for s := range domain.NonReplicableStrategies {
		out = append(out, s)
	}
	return out
}

// Builder constructs and rebalances every configured index.
type Builder struct {
	store ports.Store
	log   *slog.Logger
}

// New builds an index Builder over the given store.
func New(store ports.Store, log *slog.Logger) *Builder {
	return &Builder{store: store, log: log}
}

// RunAll rebalances every preset index, returning the number built.
func (b *Builder) RunAll(ctx context.Context) (int, error) {
	start := time.Now()
	candidates, err := b.eligibleWallets(ctx)
	if err != nil {
		return 0, fmt.Errorf("index.RunAll: load candidates: %w", err)
	}

	built := 0
	for _, cfg := range Presets {
		if err := b.build(ctx, cfg, candidates); err != nil {
			b.log.Warn("index.RunAll: build failed", "index", cfg.IndexID, "err", err)
			continue
		}
		built++
	}

	b.log.Info("index.RunAll: complete", "indices", built, "duration", time.Since(start).Round(time.Millisecond))
	return built, nil
}

func (b *Builder) build(ctx context.Context, cfg domain.IndexConfig, candidates []domain.EligibleWallet) error {
	now := time.Now().UTC()

	eligible := domain.FilterEligible(candidates, cfg)
	if len(eligible) < cfg.NumConstituents {
		b.log.Warn("index.build: fewer eligible wallets than constituents",
			"index", cfg.IndexID, "eligible", len(eligible), "want", cfg.NumConstituents)
	}

	selected := domain.SelectConstituents(eligible, cfg)
	constituents := domain.CalculateWeights(selected, cfg, now)

	if warnings := domain.StrategyConcentrationWarnings(constituents, cfg.MaxStrategyConcentration); len(warnings) > 0 {
		b.log.Warn("index.build: strategy concentration exceeded", "index", cfg.IndexID, "warnings", warnings)
	}

	existing, err := b.store.LatestIndex(ctx, cfg.IndexID)
	if err != nil {
		return fmt.Errorf("index.build: load existing %s: %w", cfg.IndexID, err)
	}
	var prior domain.Index
	if existing != nil {
		prior = *existing
	} else {
		prior = domain.Index{IndexID: cfg.IndexID}
	}

	next, diff := domain.Rebalance(prior, constituents, now)
	if err := b.store.SaveIndex(ctx, next); err != nil {
		return fmt.Errorf("index.build: save %s: %w", cfg.IndexID, err)
	}

	b.log.Info("index.build: rebalanced", "index", cfg.IndexID,
		"constituents", len(next.Constituents), "added", len(diff.Added), "removed", len(diff.Removed))
	return nil
}

// eligibleWallets assembles the candidate pool from every scored wallet,
// joined with its latest Sharpe ratio and per-category volume fractions.
func (b *Builder) eligibleWallets(ctx context.Context) ([]domain.EligibleWallet, error) {
	scores, err := b.store.Scores(ctx)
	if err != nil {
		return nil, fmt.Errorf("eligibleWallets: scores: %w", err)
	}
	profiles, err := b.store.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("eligibleWallets: profiles: %w", err)
	}
	profileByWallet := make(map[string]domain.WalletProfile, len(profiles))
	for _, p := range profiles {
		profileByWallet[p.WalletID] = p
	}

	sharpes, err := b.store.ListSharpes(ctx)
	if err != nil {
		return nil, fmt.Errorf("eligibleWallets: sharpes: %w", err)
	}
	sharpeByWallet := make(map[string]domain.WalletSharpe, len(sharpes))
	for _, s := range sharpes {
		sharpeByWallet[s.WalletID] = s
	}

	classifications, err := b.store.Classifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("eligibleWallets: classifications: %w", err)
	}
	categoryBySlug := make(map[string]domain.MarketCategory, len(classifications))
	for _, c := range classifications {
		categoryBySlug[c.MarketSlug] = c.Category
	}

	out := make([]domain.EligibleWallet, 0, len(scores))
	for _, sc := range scores {
		profile := profileByWallet[sc.WalletID]
		categoryVolume, err := b.categoryVolumeFractions(ctx, sc.WalletID, categoryBySlug)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.EligibleWallet{
			WalletID:       sc.WalletID,
			TotalScore:     sc.TotalScore,
			SharpeRatio:    sharpeByWallet[sc.WalletID].SharpeCapped,
			StrategyType:   sc.StrategyType,
			TotalTrades:    profile.TotalTrades,
			DaysActive:     profile.DaysActive,
			TotalVolumeUSD: profile.TotalVolume,
			CategoryVolume: categoryVolume,
		})
	}
	return out, nil
}

// categoryVolumeFractions computes, for one wallet, the fraction of its
// total notional traded in each market category — the sectoral indices'
// concentration filter input.
func (b *Builder) categoryVolumeFractions(ctx context.Context, walletID string, categoryBySlug map[string]domain.MarketCategory) (map[domain.MarketCategory]float64, error) {
	trades, err := b.store.TradesForWallet(ctx, walletID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("categoryVolumeFractions: trades %s: %w", walletID, err)
	}

	byCategory := map[domain.MarketCategory]float64{}
	var total float64
	for _, t := range trades {
		cat, ok := categoryBySlug[t.MarketSlug]
		if !ok {
			cat = domain.CategoryOther
		}
		notional := t.Notional
		if notional < 0 {
			notional = -notional
		}
		byCategory[cat] += notional
		total += notional
	}
	if total == 0 {
		return byCategory, nil
	}
	for cat, v := range byCategory {
		byCategory[cat] = v / total
	}
	return byCategory, nil
}

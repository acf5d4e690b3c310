// Package scoring orchestrates the composite Scorer (spec §4.5): fetch every
// wallet's trading-activity profile, compute percentile peers, run each
// through the domain scoring pipeline, rank the batch, and persist.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
)

// Scorer computes composite smart-money scores for every wallet profile.
type Scorer struct {
	store   ports.Store
	weights domain.ScoringWeights
	log     *slog.Logger
}

// New builds a Scorer over the given store with the given subscore weights
// (domain.DefaultScoringWeights if zero-valued).
func New(store ports.Store, weights domain.ScoringWeights, log *slog.Logger) *Scorer {
	if weights == (domain.ScoringWeights{}) {
		weights = domain.DefaultScoringWeights
	}
	return &Scorer{store: store, weights: weights, log: log}
}

// RunAll scores every wallet profile and persists the ranked batch.
// Returns the number of wallets scored.
func (s *Scorer) RunAll(ctx context.Context) (int, error) {
	start := time.Now()
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("scoring.RunAll: list profiles: %w", err)
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	peers := &domain.ScorePeers{PnLs: make([]float64, 0, len(profiles))}
	for _, p := range profiles {
		peers.PnLs = append(peers.PnLs, p.TotalPnL)
	}

	now := time.Now().UTC()
	scores := make([]domain.WalletScore, 0, len(profiles))
	for _, p := range profiles {
		metrics := domain.ScoringMetrics{
			WalletID:         p.WalletID,
			TotalPnL:         p.TotalPnL,
			AvgTradeSize:     p.AvgTradeSize,
			UniqueMarkets:    p.UniqueMarkets,
			TotalTrades:      p.TotalTrades,
			DaysActive:       p.DaysActive,
			BuyCount:         p.BuyCount,
			SellCount:        p.SellCount,
			TotalVolumeUSD:   p.TotalVolume,
			CompleteSetRatio: p.CompleteSetRatio,
			DirectionBias:    p.DirectionBias,
		}
		scores = append(scores, domain.CalculateScore(metrics, peers, s.weights, now))
	}

	ranked := domain.RankScores(scores)
	for _, sc := range ranked {
		if err := s.store.SaveScore(ctx, sc); err != nil {
			s.log.Warn("scoring.RunAll: save failed", "wallet", sc.WalletID, "err", err)
			continue
		}
	}

	s.log.Info("scoring.RunAll: complete", "wallets", len(ranked), "duration", time.Since(start).Round(time.Millisecond))
	return len(ranked), nil
}

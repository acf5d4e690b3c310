// Package sharpe orchestrates the Sharpe calculator (spec §4.4): fetch a
// wallet's daily realized P&L and fold it into an annualized, capped Sharpe
// ratio through the domain layer.
package sharpe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
)

// LookbackDays bounds how far back daily P&L is pulled for the Sharpe
// calculation — a year is enough history without scanning the full table.
const LookbackDays = 365

// Calculator computes Sharpe ratios for every wallet with sufficient P&L history.
type Calculator struct {
	store   ports.Store
	minDays int
	log     *slog.Logger
}

// New builds a Calculator over the given store, requiring minDays of P&L
// history before a wallet is scored (0 uses domain.DefaultMinDaysForSharpe).
func New(store ports.Store, minDays int, log *slog.Logger) *Calculator {
	return &Calculator{store: store, minDays: minDays, log: log}
}

// RunAll recomputes Sharpe ratios for every wallet with a profile, skipping
// wallets with too little history. Returns the number scored.
func (c *Calculator) RunAll(ctx context.Context) (int, error) {
	start := time.Now()
	profiles, err := c.store.ListProfiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("sharpe.RunAll: list profiles: %w", err)
	}

	since := time.Now().UTC().AddDate(0, 0, -LookbackDays)
	results := make([]domain.WalletSharpe, 0, len(profiles))
	for _, p := range profiles {
		daily, err := c.store.DailyPnLForWallet(ctx, p.WalletID, since)
		if err != nil {
			c.log.Warn("sharpe.RunAll: daily pnl failed", "wallet", p.WalletID, "err", err)
			continue
		}

		s, ok := domain.CalculateSharpe(p.WalletID, daily, c.minDays)
		if !ok {
			continue
		}
		if err := c.store.SaveSharpe(ctx, s); err != nil {
			c.log.Warn("sharpe.RunAll: save failed", "wallet", p.WalletID, "err", err)
			continue
		}
		results = append(results, s)
	}

	ranked := domain.RankBySharpe(results)
	if len(ranked) > 0 {
		top := ranked[0]
		c.log.Info("sharpe.RunAll: top ranked wallet", "wallet", top.WalletID,
			"ranking_score", top.RankingScore(), "sharpe_capped", top.SharpeCapped,
			"confidence", top.Confidence)
	}

	c.log.Info("sharpe.RunAll: complete", "scored", len(ranked), "duration", time.Since(start).Round(time.Millisecond))
	return len(ranked), nil
}

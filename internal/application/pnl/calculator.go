// Package pnl orchestrates the P&L calculator (spec §4.3): fetch a wallet's
// trades and relevant resolutions, fold them into position and wallet P&L
// through the domain layer, and persist the result.
package pnl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
)

// Calculator computes realized P&L for every wallet with trades.
type Calculator struct {
	store ports.Store
	log   *slog.Logger
}

// New builds a Calculator over the given store.
func New(store ports.Store, log *slog.Logger) *Calculator {
	return &Calculator{store: store, log: log}
}

// RunAll recomputes P&L for every wallet with at least one trade since the
// beginning of time, returning the number of wallets processed.
func (c *Calculator) RunAll(ctx context.Context) (int, error) {
	start := time.Now()
	wallets, err := c.store.DistinctWalletIDs(ctx, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("pnl.RunAll: list wallets: %w", err)
	}

	processed := 0
	for _, walletID := range wallets {
		if err := c.RunWallet(ctx, walletID); err != nil {
			c.log.Warn("pnl.RunAll: wallet failed", "wallet", walletID, "err", err)
			continue
		}
		processed++
	}

	c.log.Info("pnl.RunAll: complete", "wallets", processed, "duration", time.Since(start).Round(time.Millisecond))
	return processed, nil
}

// RunWallet recomputes and persists P&L for a single wallet: every
// (condition_id, outcome_index) it has traded is folded into a
// PositionPnL, then aggregated into a WalletPnL and folded back into the
// wallet's profile.
func (c *Calculator) RunWallet(ctx context.Context, walletID string) error {
	now := time.Now().UTC()
	trades, err := c.store.TradesForWallet(ctx, walletID, time.Time{})
	if err != nil {
		return fmt.Errorf("pnl.RunWallet: trades: %w", err)
	}
	if len(trades) == 0 {
		return nil
	}

	grouped := groupByPosition(trades)
	resolutionCache := map[string]*domain.MarketResolution{}

	var positions []domain.PositionPnL
	for key, posTrades := range grouped {
		res, ok := resolutionCache[key.ConditionID]
		if !ok {
			r, err := c.store.Resolution(ctx, key.ConditionID)
			if err != nil {
				return fmt.Errorf("pnl.RunWallet: resolution %s: %w", key.ConditionID, err)
			}
			resolutionCache[key.ConditionID] = r
			res = r
		}

		p, ok := domain.CalculatePositionPnL(domain.PositionPnLInput{
			WalletID:     walletID,
			ConditionID:  key.ConditionID,
			OutcomeIndex: key.OutcomeIndex,
			Trades:       posTrades,
			Resolution:   res,
		}, now)
		if !ok {
			continue
		}
		if err := c.store.SavePositionPnL(ctx, p); err != nil {
			return fmt.Errorf("pnl.RunWallet: save position %s: %w", key.ConditionID, err)
		}
		positions = append(positions, p)
	}

	walletPnL := domain.AggregateWalletPnL(walletID, positions)
	if err := c.store.SaveWalletPnL(ctx, walletPnL); err != nil {
		return fmt.Errorf("pnl.RunWallet: save wallet pnl: %w", err)
	}

	profile, err := c.store.Profile(ctx, walletID)
	if err != nil {
		return fmt.Errorf("pnl.RunWallet: load profile: %w", err)
	}
	existing := domain.WalletProfile{WalletID: walletID}
	if profile != nil {
		existing = *profile
	}
	updated := domain.ApplyPnLToProfile(existing, walletPnL, now)
	if err := c.store.SaveProfile(ctx, updated); err != nil {
		return fmt.Errorf("pnl.RunWallet: save profile: %w", err)
	}
	return nil
}

type positionKey struct {
	ConditionID  string
	OutcomeIndex int
}

func groupByPosition(trades []domain.Trade) map[positionKey][]domain.Trade {
	out := make(map[positionKey][]domain.Trade)
	for _, t := range trades {
		k := positionKey{ConditionID: t.ConditionID, OutcomeIndex: t.OutcomeIndex}
		out[k] = append(out[k], t)
	}
	return out
}

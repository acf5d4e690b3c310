// Package profile orchestrates the feature-extraction batch: fold every
// wallet's trade history into its trading-activity aggregate, preserving
// the P&L fields owned by the P&L calculator.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
)

// Builder recomputes WalletProfile aggregates for every wallet with trades.
type Builder struct {
	store ports.Store
	log   *slog.Logger
}

// New builds a profile Builder over the given store.
func New(store ports.Store, log *slog.Logger) *Builder {
	return &Builder{store: store, log: log}
}

// RunAll rebuilds every wallet's profile, returning the number processed.
// Per-wallet failures are logged and skipped.
func (b *Builder) RunAll(ctx context.Context) (int, error) {
	start := time.Now()
	wallets, err := b.store.DistinctWalletIDs(ctx, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("profile.RunAll: list wallets: %w", err)
	}

	now := time.Now().UTC()
	processed := 0
	for _, walletID := range wallets {
		if err := b.runWallet(ctx, walletID, now); err != nil {
			b.log.Warn("profile.RunAll: wallet failed", "wallet", walletID, "err", err)
			continue
		}
		processed++
	}

	b.log.Info("profile.RunAll: complete", "wallets", processed, "duration", time.Since(start).Round(time.Millisecond))
	return processed, nil
}

func (b *Builder) runWallet(ctx context.Context, walletID string, now time.Time) error {
	trades, err := b.store.TradesForWallet(ctx, walletID, time.Time{})
	if err != nil {
		return fmt.Errorf("profile.runWallet: trades: %w", err)
	}

	existing := domain.WalletProfile{}
	if p, err := b.store.Profile(ctx, walletID); err != nil {
		return fmt.Errorf("profile.runWallet: load existing: %w", err)
	} else if p != nil {
		existing = *p
	}

	updated := domain.BuildProfile(walletID, trades, existing, now)
	if err := b.store.SaveProfile(ctx, updated); err != nil {
		return fmt.Errorf("profile.runWallet: save: %w", err)
	}
	return nil
}

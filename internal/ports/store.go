// Package ports declares the interfaces the application layer depends on,
// one per concern, the way the teacher's internal/ports package does.
package ports

import (
	"context"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
)

// Store persists every table the engine reads and writes (spec §6's closed
// table set) behind a query/insert/command contract.
type Store interface {
	// SaveTrades upserts a batch of trades, deduplicated upstream by
	// (tx_hash, wallet_id, outcome_index).
	SaveTrades(ctx context.Context, trades []domain.Trade) error
	// TradesForWallet returns a wallet's trades at or after since, oldest first.
	TradesForWallet(ctx context.Context, walletID string, since time.Time) ([]domain.Trade, error)
	// TradesForMarket returns every trade recorded against a condition ID.
	TradesForMarket(ctx context.Context, conditionID string) ([]domain.Trade, error)
	// DistinctWalletIDs returns every wallet with at least one trade at or
	// after since.
	DistinctWalletIDs(ctx context.Context, since time.Time) ([]string, error)
	// ActiveMarkets returns condition IDs with at least minTraders distinct
	// wallets trading at or after since, ordered by trade count descending
	// and capped at limit.
	ActiveMarkets(ctx context.Context, since time.Time, minTraders, limit int) ([]string, error)

	// SaveResolution upserts a market resolution record.
	SaveResolution(ctx context.Context, res domain.MarketResolution) error
	// UnresolvedConditionIDs returns condition IDs with trades but no stored
	// resolution — the resolution tracker's dedup-before-fetch set.
	UnresolvedConditionIDs(ctx context.Context) ([]string, error)
	// Resolution returns the stored resolution for a condition ID, if any.
	Resolution(ctx context.Context, conditionID string) (*domain.MarketResolution, error)

	// SavePositionPnL upserts one wallet/market/outcome P&L row.
	SavePositionPnL(ctx context.Context, pnl domain.PositionPnL) error
	// PositionPnLForWallet returns a wallet's position-level P&L rows.
	PositionPnLForWallet(ctx context.Context, walletID string) ([]domain.PositionPnL, error)
	// SaveWalletPnL upserts a wallet's aggregate realized P&L.
	SaveWalletPnL(ctx context.Context, pnl domain.WalletPnL) error
	// ListWalletPnLs returns every wallet's aggregate realized P&L.
	ListWalletPnLs(ctx context.Context) ([]domain.WalletPnL, error)
	// DailyPnLForWallet buckets a wallet's resolved position P&L by
	// settlement day, the Sharpe calculator's input grain.
	DailyPnLForWallet(ctx context.Context, walletID string, since time.Time) ([]domain.DailyPnL, error)

	// SaveProfile upserts a wallet's trading-activity aggregate.
	SaveProfile(ctx context.Context, p domain.WalletProfile) error
	// Profile returns a wallet's stored profile, if any.
	Profile(ctx context.Context, walletID string) (*domain.WalletProfile, error)
	// ListProfiles returns every stored wallet profile.
	ListProfiles(ctx context.Context) ([]domain.WalletProfile, error)

	// SaveSharpe upserts a wallet's Sharpe calculator output.
	SaveSharpe(ctx context.Context, s domain.WalletSharpe) error
	// Sharpe returns a wallet's stored Sharpe output, if any.
	Sharpe(ctx context.Context, walletID string) (*domain.WalletSharpe, error)
	// ListSharpes returns every stored Sharpe output.
	ListSharpes(ctx context.Context) ([]domain.WalletSharpe, error)

	// SaveScore upserts a wallet's current score and appends a history row.
	SaveScore(ctx context.Context, s domain.WalletScore) error
	// Scores returns every wallet's current score.
	Scores(ctx context.Context) ([]domain.WalletScore, error)

	// SaveClassification upserts a market's category classification.
	SaveClassification(ctx context.Context, c domain.MarketClassification) error
	// Classification returns a market's stored classification, if any.
	Classification(ctx context.Context, marketSlug string) (*domain.MarketClassification, error)
	// Classifications returns every stored market classification.
	Classifications(ctx context.Context) ([]domain.MarketClassification, error)
	// UnclassifiedMarketSlugs returns market slugs with trades but no stored
	// classification — the classifier job's work queue.
	UnclassifiedMarketSlugs(ctx context.Context) ([]string, error)

	// SaveIndex upserts an index and its constituents.
	SaveIndex(ctx context.Context, idx domain.Index) error
	// LatestIndex returns the most recently rebalanced index with the given
	// ID, if any.
	LatestIndex(ctx context.Context, indexID string) (*domain.Index, error)

	// SaveAlert persists a dispatched alert.
	SaveAlert(ctx context.Context, a domain.Alert) error
	// RecentAlertIDs returns alert IDs dispatched at or after since, used to
	// warm the dispatcher's dedup cache on restart.
	RecentAlertIDs(ctx context.Context, since time.Time) ([]string, error)

	// Close releases the underlying connection.
	Close() error
}

package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:", 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveTradesAndTradesForWallet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	trade := domain.Trade{
		TxHash: "0xabc", WalletID: "w1", OutcomeIndex: 0,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		MarketID: "m1", ConditionID: "c1", Side: domain.Buy,
		Price: 0.6, Size: 100, Notional: 60,
	}
	require.NoError(t, s.SaveTrades(ctx, []domain.Trade{trade}))

	got, err := s.TradesForWallet(ctx, "w1", time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, trade.TxHash, got[0].TxHash)
	require.Equal(t, trade.Notional, got[0].Notional)

	// Re-saving the same (tx_hash, wallet_id, outcome_index) upserts, not duplicates.
	trade.Notional = 61
	require.NoError(t, s.SaveTrades(ctx, []domain.Trade{trade}))
	got, err = s.TradesForWallet(ctx, "w1", time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 61.0, got[0].Notional)
}

func TestSaveResolutionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res := domain.MarketResolution{
		ConditionID: "c1", MarketSlug: "will-x-happen",
		IsResolved: true, WinningOutcome: "Yes", WinningOutcomeIdx: 0,
		OutcomePrices: []float64{1, 0}, Outcomes: []string{"Yes", "No"},
		EndTime: time.Now().UTC(), ResolutionTime: time.Now().UTC(),
	}
	require.NoError(t, s.SaveResolution(ctx, res))

	got, err := s.Resolution(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.IsResolved)
	require.Equal(t, []float64{1, 0}, got.OutcomePrices)
	require.Equal(t, []string{"Yes", "No"}, got.Outcomes)

	missing, err := s.Resolution(ctx, "does-not-exist")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUnresolvedConditionIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTrades(ctx, []domain.Trade{
		{TxHash: "0x1", WalletID: "w1", ConditionID: "c1", Timestamp: time.Now(), Side: domain.Buy},
		{TxHash: "0x2", WalletID: "w1", ConditionID: "c2", Timestamp: time.Now(), Side: domain.Buy},
	}))
	require.NoError(t, s.SaveResolution(ctx, domain.MarketResolution{ConditionID: "c1", IsResolved: true}))

	ids, err := s.UnresolvedConditionIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"c2"}, ids)
}

func TestSaveScoreAppendsHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sc := domain.WalletScore{WalletID: "w1", TotalScore: 70, Tier: domain.TierGold, CalculatedAt: time.Now()}
	require.NoError(t, s.SaveScore(ctx, sc))
	sc.TotalScore = 75
	require.NoError(t, s.SaveScore(ctx, sc))

	scores, err := s.Scores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	require.Equal(t, 75.0, scores[0].TotalScore)

	var histCount int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM smart_money_scores_history WHERE wallet_id = ?`, "w1").Scan(&histCount))
	require.Equal(t, 2, histCount)
}

func TestListWalletPnLs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveWalletPnL(ctx, domain.WalletPnL{
		WalletID: "w1", TotalRealized: 100, PositionsClosed: 4, Wins: 3, Losses: 1, WinRate: 0.75,
	}))
	require.NoError(t, s.SaveWalletPnL(ctx, domain.WalletPnL{WalletID: "w2", TotalRealized: -50}))

	pnls, err := s.ListWalletPnLs(ctx)
	require.NoError(t, err)
	require.Len(t, pnls, 2)
}

func TestUnclassifiedMarketSlugs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTrades(ctx, []domain.Trade{
		{TxHash: "0x1", WalletID: "w1", ConditionID: "c1", MarketSlug: "slug-a", Timestamp: time.Now(), Side: domain.Buy},
		{TxHash: "0x2", WalletID: "w1", ConditionID: "c2", MarketSlug: "slug-b", Timestamp: time.Now(), Side: domain.Buy},
	}))
	require.NoError(t, s.SaveClassification(ctx, domain.MarketClassification{
		MarketSlug: "slug-a", Category: domain.CategorySports,
	}))

	slugs, err := s.UnclassifiedMarketSlugs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"slug-b"}, slugs)
}

func TestSaveTradesSanitizesIdentifiers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTrades(ctx, []domain.Trade{{
		TxHash: "0x1", WalletID: "w1\x00evil", ConditionID: "c1",
		MarketSlug: "slug<script>", DisplayName: "name\r\nwith-controls",
		Timestamp: time.Now(), Side: domain.Buy,
	}}))

	got, err := s.TradesForWallet(ctx, "w1evil", time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "slugscript", got[0].MarketSlug)
	require.Equal(t, "namewith-controls", got[0].DisplayName)
}

func TestSaveIndexReplacesConstituents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	idx := domain.Index{
		IndexID: "psi-1", CreatedAt: time.Now(), LastRebalanced: time.Now(),
		Constituents: []domain.IndexConstituent{
			{WalletID: "w1", Weight: 0.5, StrategyType: domain.StrategyArbitrageur},
			{WalletID: "w2", Weight: 0.5, StrategyType: domain.StrategyMarketMaker},
		},
	}
	require.NoError(t, s.SaveIndex(ctx, idx))

	idx.Constituents = []domain.IndexConstituent{{WalletID: "w3", Weight: 1.0}}
	require.NoError(t, s.SaveIndex(ctx, idx))

	got, err := s.LatestIndex(ctx, "psi-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Constituents, 1)
	require.Equal(t, "w3", got.Constituents[0].WalletID)
}

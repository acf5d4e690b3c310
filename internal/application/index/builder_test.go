package index

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/awarefund/smartmoney/internal/adapters/store"
	"github.com/awarefund/smartmoney/internal/domain"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(":memory:", 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedScoredWallet(t *testing.T, s *store.SQLiteStore, walletID string, score float64, strategy domain.StrategyType, trades int, volume float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SaveProfile(ctx, domain.WalletProfile{
		WalletID: walletID, TotalTrades: trades, TotalVolume: volume, DaysActive: 30,
	}))
	require.NoError(t, s.SaveScore(ctx, domain.WalletScore{
		WalletID: walletID, TotalScore: score, StrategyType: strategy, CalculatedAt: time.Now(),
	}))
	require.NoError(t, s.SaveSharpe(ctx, domain.WalletSharpe{WalletID: walletID, SharpeCapped: 1.0}))
}

func TestBuilderRunAllBuildsEveryPreset(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 60; i++ {
		seedScoredWallet(t, s, string(rune('a'+i%26))+string(rune('0'+i/26)), 60+float64(i), domain.StrategyDirectionalMomentum, 20, 5000)
	}

	b := New(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	built, err := b.RunAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(Presets), built)

	idx, err := s.LatestIndex(context.Background(), "psi-10")
	require.NoError(t, err)
	require.NotNil(t, idx)
	require.Len(t, idx.Constituents, 10)
}

func TestBuilderRebalancePreservesCreatedAt(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 15; i++ {
		seedScoredWallet(t, s, string(rune('a'+i)), 60+float64(i), domain.StrategyDirectionalMomentum, 20, 5000)
	}

	b := New(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := b.RunAll(context.Background())
	require.NoError(t, err)

	first, err := s.LatestIndex(context.Background(), "psi-10")
	require.NoError(t, err)
	require.NotNil(t, first)
	createdAt := first.CreatedAt

	_, err = b.RunAll(context.Background())
	require.NoError(t, err)

	second, err := s.LatestIndex(context.Background(), "psi-10")
	require.NoError(t, err)
	require.NotNil(t, second)
	require.True(t, createdAt.Equal(second.CreatedAt))
}

func TestBuilderExcludesNonReplicableStrategies(t *testing.T) {
	s := newTestStore(t)
	seedScoredWallet(t, s, "arb1", 90, domain.StrategyArbitrageur, 20, 5000)
	for i := 0; i < 12; i++ {
		seedScoredWallet(t, s, string(rune('b'+i)), 60+float64(i), domain.StrategyDirectionalMomentum, 20, 5000)
	}

	b := New(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := b.RunAll(context.Background())
	require.NoError(t, err)

	idx, err := s.LatestIndex(context.Background(), "psi-10")
	require.NoError(t, err)
	require.NotNil(t, idx)
	for _, c := range idx.Constituents {
		require.NotEqual(t, "arb1", c.WalletID)
	}
}

package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
)

// EdgeDecayConfig bounds the historical-vs-recent comparison windows, per
// spec §4.8.
type EdgeDecayConfig struct {
	HistoricalDays int
	RecentDays     int
	MinTradesEach  int
}

// DefaultEdgeDecayConfig compares a 90-day historical baseline against the
// most recent 14 days, requiring at least 10 trades in each window.
var DefaultEdgeDecayConfig = EdgeDecayConfig{
	HistoricalDays: 90,
	RecentDays:     14,
	MinTradesEach:  10,
}

// EdgeDecayScanner flags wallets whose previously-scored edge is degrading,
// grounded on edge_persistence.py's degradation checklist. It runs all four
// domain checks (win rate, Sharpe, P&L-per-trade, strategy drift), but only
// the win-rate and P&L-per-trade checks can flag here: windowFor leaves each
// window's Sharpe at zero, and both windows carry the wallet's current
// strategy type, so Sharpe degradation and strategy drift are never reported.
type EdgeDecayScanner struct {
	store ports.Store
	cfg   EdgeDecayConfig
	log   *slog.Logger
}

// NewEdgeDecay builds an EdgeDecayScanner (DefaultEdgeDecayConfig when cfg
// is zero-valued).
func NewEdgeDecay(store ports.Store, cfg EdgeDecayConfig, log *slog.Logger) *EdgeDecayScanner {
	if cfg.HistoricalDays == 0 {
		cfg = DefaultEdgeDecayConfig
	}
	return &EdgeDecayScanner{store: store, cfg: cfg, log: log}
}

// Scan compares every scored wallet's historical and recent performance
// windows and returns one alert per wallet with at least one flagged
// dimension.
func (s *EdgeDecayScanner) Scan(ctx context.Context) ([]domain.Alert, error) {
	start := time.Now()
	now := time.Now().UTC()

	scores, err := s.store.Scores(ctx)
	if err != nil {
		return nil, fmt.Errorf("edgedecay.Scan: scores: %w", err)
	}

	historicalStart := now.AddDate(0, 0, -s.cfg.HistoricalDays)
	recentStart := now.AddDate(0, 0, -s.cfg.RecentDays)

	var alerts []domain.Alert
	for _, sc := range scores {
		trades, err := s.store.TradesForWallet(ctx, sc.WalletID, historicalStart)
		if err != nil {
			s.log.Warn("edgedecay.Scan: trades failed", "wallet", sc.WalletID, "err", err)
			continue
		}

		var historical, recent []domain.Trade
		for _, t := range trades {
			if !t.Timestamp.Before(recentStart) {
				recent = append(recent, t)
			} else {
				historical = append(historical, t)
			}
		}
		if len(historical) < s.cfg.MinTradesEach || len(recent) < s.cfg.MinTradesEach {
			continue
		}

		pnls, err := s.store.PositionPnLForWallet(ctx, sc.WalletID)
		if err != nil {
			s.log.Warn("edgedecay.Scan: position pnl failed", "wallet", sc.WalletID, "err", err)
			continue
		}

		histWindow := windowFor(historical, pnls, recentStart, true)
		recentWindow := windowFor(recent, pnls, recentStart, false)
		histWindow.StrategyType = sc.StrategyType
		recentWindow.StrategyType = sc.StrategyType

		flagged := domain.AnalyzeEdgeDecay(sc.WalletID, histWindow, recentWindow)
		if len(flagged) == 0 {
			continue
		}

		alerts = append(alerts, edgeDecayToAlert(sc.WalletID, sc.StrategyType, flagged, now))
	}

	s.log.Info("edgedecay.Scan: complete", "wallets_scanned", len(scores), "alerts", len(alerts),
		"duration", time.Since(start).Round(time.Millisecond))
	return alerts, nil
}

// windowFor derives a PerformanceWindow's win-rate and P&L-per-trade from a
// trade slice and the wallet's closed positions, splitting positions by
// whether they resolved before or after cutoff.
func windowFor(trades []domain.Trade, pnls []domain.PositionPnL, cutoff time.Time, before bool) domain.PerformanceWindow {
	var wins, losses int
	var totalPnL float64
	for _, p := range pnls {
		if p.ResolvedAt.IsZero() {
			continue
		}
		inWindow := p.ResolvedAt.Before(cutoff)
		if inWindow != before {
			continue
		}
		totalPnL += p.RealizedPnL
		if p.RealizedPnL > 0 {
			wins++
		} else if p.RealizedPnL < 0 {
			losses++
		}
	}

	win := domain.PerformanceWindow{TradeCount: len(trades)}
	if wins+losses > 0 {
		win.WinRate = float64(wins) / float64(wins+losses)
	}
	if len(trades) > 0 {
		win.PnLPerTrade = totalPnL / float64(len(trades))
	}
	return win
}

func edgeDecayToAlert(walletID string, strategy domain.StrategyType, flagged []domain.EdgeDecaySignal, now time.Time) domain.Alert {
	dims := make([]string, 0, len(flagged))
	data := map[string]any{}
	for _, f := range flagged {
		dims = append(dims, f.Dimension)
		data[f.Dimension] = map[string]any{"historical": f.Historical, "recent": f.Recent, "ratio": f.Delta}
	}

	hint := domain.CalculatePersistenceHint(walletID, strategy)
	data["persistence_durability"] = string(hint.Durability)
	data["recommended_action"] = recommendedAction(len(flagged))

	return domain.Alert{
		Type:       domain.AlertEdgeDecay,
		Severity:   domain.EdgeDecaySeverity(flagged),
		Title:      fmt.Sprintf("Edge decay: %s", walletID),
		Message:    fmt.Sprintf("%d dimension(s) degrading: %v", len(flagged), dims),
		WalletID:   walletID,
		NumWallets: 1,
		Data:       data,
		CreatedAt:  now,
	}
}

// recommendedAction maps flagged-dimension count to an informational
// suggestion; this never drives index exclusion on its own.
func recommendedAction(flaggedCount int) string {
	switch {
	case flaggedCount >= 3:
		return "consider removing from replicated indices at next rebalance"
	case flaggedCount == 2:
		return "reduce weight and re-check next cycle"
	default:
		return "monitor"
	}
}

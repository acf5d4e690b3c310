package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
)

// AnomalyScanner runs the five generic gaming/manipulation detectors
// (win-rate anomaly, timing pattern, volume concentration, impossible
// Sharpe, win streak) against every wallet with a profile, grounded on
// anomaly_detection.py::AnomalyDetector.scan_trader.
type AnomalyScanner struct {
	store ports.Store
	cfg   domain.AnomalyConfig
	log   *slog.Logger
}

// NewAnomaly builds an AnomalyScanner (domain.DefaultAnomalyConfig when cfg
// is zero-valued).
func NewAnomaly(store ports.Store, cfg domain.AnomalyConfig, log *slog.Logger) *AnomalyScanner {
	if cfg.MinTradesForWinRateCheck == 0 {
		cfg = domain.DefaultAnomalyConfig
	}
	return &AnomalyScanner{store: store, cfg: cfg, log: log}
}

// Scan runs every wallet through all five detectors and returns the combined
// alert list. Per-wallet failures are logged and skipped.
func (s *AnomalyScanner) Scan(ctx context.Context) ([]domain.Alert, error) {
	start := time.Now()
	now := time.Now().UTC()

	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("anomaly.Scan: list profiles: %w", err)
	}

	pnls, err := s.store.ListWalletPnLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("anomaly.Scan: list wallet pnls: %w", err)
	}
	pnlByWallet := make(map[string]domain.WalletPnL, len(pnls))
	for _, p := range pnls {
		pnlByWallet[p.WalletID] = p
	}

	var alerts []domain.Alert
	for _, profile := range profiles {
		walletAlerts, err := s.scanWallet(ctx, profile, pnlByWallet[profile.WalletID], now)
		if err != nil {
			s.log.Warn("anomaly.Scan: wallet failed", "wallet", profile.WalletID, "err", err)
			continue
		}
		alerts = append(alerts, walletAlerts...)
	}

	s.log.Info("anomaly.Scan: complete", "wallets", len(profiles), "alerts", len(alerts),
		"duration", time.Since(start).Round(time.Millisecond))
	return alerts, nil
}

func (s *AnomalyScanner) scanWallet(ctx context.Context, profile domain.WalletProfile, pnl domain.WalletPnL, now time.Time) ([]domain.Alert, error) {
	var alerts []domain.Alert

	if a, ok := domain.DetectWinRateAnomaly(profile.WalletID, pnl.PositionsClosed, pnl.Wins, s.cfg, now); ok {
		alerts = append(alerts, anomalyToAlert(a))
	}

	if a, ok := domain.DetectVolumeConcentration(profile.WalletID, profile.TotalTrades, profile.UniqueMarkets, s.cfg, now); ok {
		alerts = append(alerts, anomalyToAlert(a))
	}

	trades, err := s.store.TradesForWallet(ctx, profile.WalletID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("scanWallet: trades: %w", err)
	}
	if a, ok := domain.DetectTimingPattern(profile.WalletID, tradeIntervals(trades), s.cfg, now); ok {
		alerts = append(alerts, anomalyToAlert(a))
	}

	positions, err := s.store.PositionPnLForWallet(ctx, profile.WalletID)
	if err != nil {
		return nil, fmt.Errorf("scanWallet: positions: %w", err)
	}
	pnlSequence := resolvedPnLSequence(positions)

	if a, ok := domain.DetectWinStreak(profile.WalletID, pnlSequence, s.cfg, now); ok {
		alerts = append(alerts, anomalyToAlert(a))
	}
	if a, ok := domain.DetectImpossibleSharpe(profile.WalletID, tradeLevelSharpe(pnlSequence), s.cfg, now); ok {
		alerts = append(alerts, anomalyToAlert(a))
	}

	return alerts, nil
}

// tradeIntervals returns the inter-trade gaps in seconds, oldest first.
func tradeIntervals(trades []domain.Trade) []float64 {
	if len(trades) < 2 {
		return nil
	}
	sorted := make([]domain.Trade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	out := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		out = append(out, sorted[i].Timestamp.Sub(sorted[i-1].Timestamp).Seconds())
	}
	return out
}

// resolvedPnLSequence orders a wallet's resolved positions by resolution
// time and returns the realized P&L series.
func resolvedPnLSequence(positions []domain.PositionPnL) []float64 {
	resolved := make([]domain.PositionPnL, 0, len(positions))
	for _, p := range positions {
		if !p.ResolvedAt.IsZero() {
			resolved = append(resolved, p)
		}
	}
	sort.Slice(resolved, func(i, j int) bool { return resolved[i].ResolvedAt.Before(resolved[j].ResolvedAt) })

	out := make([]float64, 0, len(resolved))
	for _, p := range resolved {
		out = append(out, p.RealizedPnL)
	}
	return out
}

// tradeLevelSharpe is the per-position mean/std ratio the impossible-Sharpe
// check compares against its threshold — deliberately unannualized, per
// anomaly_detection.py::_check_impossible_sharpe.
func tradeLevelSharpe(pnlSequence []float64) float64 {
	if len(pnlSequence) < 2 {
		return 0
	}
	var sum float64
	for _, p := range pnlSequence {
		sum += p
	}
	mean := sum / float64(len(pnlSequence))

	var varSum float64
	for _, p := range pnlSequence {
		varSum += (p - mean) * (p - mean)
	}
	std := math.Sqrt(varSum / float64(len(pnlSequence)))
	if std == 0 {
		return 0
	}
	return mean / std
}

// anomalyToAlert wraps a domain.AnomalyAlert in the shared Alert envelope.
func anomalyToAlert(a domain.AnomalyAlert) domain.Alert {
	return domain.Alert{
		Type:       domain.AlertType(a.Type),
		Severity:   a.Severity,
		Title:      fmt.Sprintf("%s: %s", a.Type, a.WalletID),
		Message:    a.Description,
		WalletID:   a.WalletID,
		NumWallets: 1,
		Confidence: a.Confidence,
		Data:       map[string]any{"anomaly_type": string(a.Type)},
		CreatedAt:  a.DetectedAt,
	}
}

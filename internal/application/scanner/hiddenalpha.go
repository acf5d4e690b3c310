package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
)

// HiddenAlphaScanner discovers undervalued wallets the public leaderboard
// misses: hidden gems, rising stars, niche specialists, and contrarians,
// grounded on hidden_alpha.py::HiddenAlphaDiscovery.
type HiddenAlphaScanner struct {
	store ports.Store
	cfg   domain.HiddenAlphaConfig
	log   *slog.Logger
}

// NewHiddenAlpha builds a HiddenAlphaScanner
// (domain.DefaultHiddenAlphaConfig when cfg is zero-valued).
func NewHiddenAlpha(store ports.Store, cfg domain.HiddenAlphaConfig, log *slog.Logger) *HiddenAlphaScanner {
	if cfg.MinSharpeForGem == 0 {
		cfg = domain.DefaultHiddenAlphaConfig
	}
	return &HiddenAlphaScanner{store: store, cfg: cfg, log: log}
}

// Scan joins every scored wallet with its profile, Sharpe, and win rate,
// runs the candidate pool through all four discovery methods, and returns
// one alert per discovery.
func (s *HiddenAlphaScanner) Scan(ctx context.Context) ([]domain.Alert, error) {
	start := time.Now()
	now := time.Now().UTC()

	scores, err := s.store.Scores(ctx)
	if err != nil {
		return nil, fmt.Errorf("hiddenalpha.Scan: scores: %w", err)
	}
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("hiddenalpha.Scan: profiles: %w", err)
	}
	profileByWallet := make(map[string]domain.WalletProfile, len(profiles))
	for _, p := range profiles {
		profileByWallet[p.WalletID] = p
	}
	sharpes, err := s.store.ListSharpes(ctx)
	if err != nil {
		return nil, fmt.Errorf("hiddenalpha.Scan: sharpes: %w", err)
	}
	sharpeByWallet := make(map[string]domain.WalletSharpe, len(sharpes))
	for _, sh := range sharpes {
		sharpeByWallet[sh.WalletID] = sh
	}
	pnls, err := s.store.ListWalletPnLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("hiddenalpha.Scan: wallet pnls: %w", err)
	}
	pnlByWallet := make(map[string]domain.WalletPnL, len(pnls))
	for _, p := range pnls {
		pnlByWallet[p.WalletID] = p
	}

	candidates := make([]domain.HiddenAlphaCandidate, 0, len(scores))
	for _, sc := range scores {
		profile := profileByWallet[sc.WalletID]
		candidates = append(candidates, domain.HiddenAlphaCandidate{
			WalletID:       sc.WalletID,
			TotalScore:     sc.TotalScore,
			SharpeRatio:    sharpeByWallet[sc.WalletID].SharpeCapped,
			WinRate:        pnlByWallet[sc.WalletID].WinRate,
			TotalVolumeUSD: profile.TotalVolume,
			TotalTrades:    profile.TotalTrades,
			DaysActive:     profile.DaysActive,
			UniqueMarkets:  profile.UniqueMarkets,
			TotalPnL:       profile.TotalPnL,
			StrategyType:   sc.StrategyType,
		})
	}

	discoveries := domain.DiscoverHiddenAlpha(candidates, s.cfg, now)
	alerts := make([]domain.Alert, 0, len(discoveries))
	for _, d := range discoveries {
		alerts = append(alerts, hiddenAlphaToAlert(d))
	}

	s.log.Info("hiddenalpha.Scan: complete", "candidates", len(candidates), "discoveries", len(alerts),
		"duration", time.Since(start).Round(time.Millisecond))
	return alerts, nil
}

func hiddenAlphaToAlert(d domain.HiddenTrader) domain.Alert {
	data := map[string]any{
		"discovery_type":  string(d.DiscoveryType),
		"discovery_score": d.DiscoveryScore,
		"visibility":      d.VisibilityScore,
	}
	for k, v := range d.StandoutMetrics {
		data[k] = v
	}

	severity := domain.SeverityLow
	if d.DiscoveryScore >= 80 {
		severity = domain.SeverityMedium
	}

	return domain.Alert{
		Type:       domain.AlertHiddenAlpha,
		Severity:   severity,
		Title:      fmt.Sprintf("%s: %s", d.DiscoveryType, d.WalletID),
		Message:    d.Reason,
		WalletID:   d.WalletID,
		NumWallets: 1,
		Confidence: d.DiscoveryScore / 100,
		Data:       data,
		CreatedAt:  d.DiscoveredAt,
	}
}

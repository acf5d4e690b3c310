// Package scanner orchestrates the alert-producing scans (consensus, insider
// detection, edge decay, anomalies, hidden alpha) and the market
// classification pass, which stores categories and emits no alerts. Each scan reads
// trades/profiles/scores from the store, runs the domain computation, and
// returns domain.Alert envelopes for the dispatcher — it never sends
// notifications itself.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
)

// ConsensusConfig bounds the consensus scan's market universe and minimums,
// grounded on consensus.py::ConsensusConfig.
type ConsensusConfig struct {
	LookbackHours int
	MinTraders    int
	MinVolume     float64
	MinTotalScore float64
	Thresholds    domain.ConsensusThresholds
}

// DefaultConsensusConfig mirrors consensus.py's ConsensusConfig defaults.
var DefaultConsensusConfig = ConsensusConfig{
	LookbackHours: 48,
	MinTraders:    3,
	MinVolume:     5000,
	MinTotalScore: 60.0,
	Thresholds:    domain.DefaultConsensusThresholds,
}

// ConsensusScanner finds markets where scored wallets have converged on the
// same directional bet.
type ConsensusScanner struct {
	store ports.Store
	cfg   ConsensusConfig
	log   *slog.Logger
}

// NewConsensus builds a ConsensusScanner (domain.DefaultConsensusThresholds
// via zero-valued cfg.Thresholds).
func NewConsensus(store ports.Store, cfg ConsensusConfig, log *slog.Logger) *ConsensusScanner {
	if cfg.Thresholds == (domain.ConsensusThresholds{}) {
		cfg.Thresholds = domain.DefaultConsensusThresholds
	}
	return &ConsensusScanner{store: store, cfg: cfg, log: log}
}

// Scan runs the full market universe through consensus analysis and returns
// one Alert per market with STRONG or VERY_STRONG consensus — matching
// consensus.py::scan_all_markets filtering out WEAK/MODERATE/NONE.
func (s *ConsensusScanner) Scan(ctx context.Context) ([]domain.Alert, error) {
	start := time.Now()
	since := time.Now().UTC().Add(-time.Duration(s.cfg.LookbackHours) * time.Hour)

	scores, err := s.store.Scores(ctx)
	if err != nil {
		return nil, fmt.Errorf("consensus.Scan: scores: %w", err)
	}
	scoreByWallet := make(map[string]float64, len(scores))
	for _, sc := range scores {
		if sc.TotalScore >= s.cfg.MinTotalScore {
			scoreByWallet[sc.WalletID] = sc.TotalScore
		}
	}
	if len(scoreByWallet) == 0 {
		return nil, nil
	}

	const marketCap = 100
	markets, err := s.store.ActiveMarkets(ctx, since, s.cfg.MinTraders, marketCap)
	if err != nil {
		return nil, fmt.Errorf("consensus.Scan: active markets: %w", err)
	}
	if len(markets) == marketCap {
		s.log.Warn("consensus.Scan: market universe truncated at cap", "cap", marketCap)
	}

	var signals []domain.ConsensusSignal
	for _, conditionID := range markets {
		trades, err := s.store.TradesForMarket(ctx, conditionID)
		if err != nil {
			s.log.Warn("consensus.Scan: trades failed", "market", conditionID, "err", err)
			continue
		}
		signal, ok := s.analyzeMarket(trades, scoreByWallet, time.Now().UTC())
		if !ok || signal.Strength == domain.ConsensusNone || signal.Strength == domain.ConsensusWeak || signal.Strength == domain.ConsensusModerate {
			continue
		}
		signals = append(signals, signal)
	}

	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].AgreementPct != signals[j].AgreementPct {
			return signals[i].AgreementPct > signals[j].AgreementPct
		}
		return signals[i].Confidence > signals[j].Confidence
	})

	alerts := make([]domain.Alert, 0, len(signals))
	for _, sig := range signals {
		alerts = append(alerts, consensusToAlert(sig))
	}

	s.log.Info("consensus.Scan: complete", "markets", len(markets), "signals", len(alerts),
		"duration", time.Since(start).Round(time.Millisecond))
	return alerts, nil
}

func (s *ConsensusScanner) analyzeMarket(trades []domain.Trade, scoreByWallet map[string]float64, now time.Time) (domain.ConsensusSignal, bool) {
	byWallet := map[string][]domain.Trade{}
	for _, t := range trades {
		if _, ok := scoreByWallet[t.WalletID]; !ok {
			continue
		}
		if t.Timestamp.Before(now.Add(-time.Duration(s.cfg.LookbackHours) * time.Hour)) {
			continue
		}
		byWallet[t.WalletID] = append(byWallet[t.WalletID], t)
	}
	if len(byWallet) < s.cfg.MinTraders {
		return domain.ConsensusSignal{}, false
	}

	positions := make([]domain.TraderPosition, 0, len(byWallet))
	var marketSlug string
	for walletID, wtrades := range byWallet {
		if marketSlug == "" && len(wtrades) > 0 {
			marketSlug = wtrades[0].MarketSlug
		}
		positions = append(positions, domain.AggregatePosition(walletID, scoreByWallet[walletID], wtrades))
	}

	signal, ok := domain.AnalyzeConsensus(marketSlug, positions, s.cfg.MinTraders, s.cfg.Thresholds, now)
	if !ok {
		return domain.ConsensusSignal{}, false
	}
	if signal.VolumeFor+signal.VolumeAgainst < s.cfg.MinVolume {
		return domain.ConsensusSignal{}, false
	}
	return signal, true
}

func consensusToAlert(sig domain.ConsensusSignal) domain.Alert {
	return domain.Alert{
		Type:       domain.AlertConsensus,
		Severity:   consensusSeverity(sig.Strength),
		Title:      fmt.Sprintf("Smart money consensus: %s", sig.MarketSlug),
		Message: fmt.Sprintf("%d of %d scored traders agree %s (%.0f%% agreement, %.0f%% confidence)",
			sig.NumTradersFor, sig.NumTradersAnalyzed, sig.Direction, sig.AgreementPct*100, sig.Confidence*100),
		MarketID:   sig.MarketSlug,
		Direction:  string(sig.Direction),
		VolumeUSD:  sig.VolumeFor + sig.VolumeAgainst,
		NumWallets: sig.NumTradersAnalyzed,
		Confidence: sig.Confidence,
		Data: map[string]any{
			"strength":            string(sig.Strength),
			"agreement_pct":       sig.AgreementPct,
			"num_traders_for":     sig.NumTradersFor,
			"num_traders_against": sig.NumTradersAgainst,
		},
		CreatedAt: sig.DetectedAt,
	}
}

func consensusSeverity(strength domain.ConsensusStrength) domain.AlertSeverity {
	if strength == domain.ConsensusVeryStrong {
		return domain.SeverityHigh
	}
	return domain.SeverityMedium
}

package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/ports"
)

// InsiderScanner runs the six insider-activity detectors (new-account whale,
// volume spike, smart-money divergence, whale anomaly, coordinated entry,
// late-entry conviction) against every active market, grounded on
// insider_detector.py::InsiderDetector.scan_for_insider_activity.
type InsiderScanner struct {
	store   ports.Store
	cfg     domain.InsiderConfig
	workers int
	log     *slog.Logger
}

// NewInsider builds an InsiderScanner (domain.DefaultInsiderConfig when cfg
// is zero-valued; workers <= 0 uses a fixed pool size of 8).
func NewInsider(store ports.Store, cfg domain.InsiderConfig, workers int, log *slog.Logger) *InsiderScanner {
	if cfg.LookbackHours == 0 {
		cfg = domain.DefaultInsiderConfig
	}
	return &InsiderScanner{store: store, cfg: cfg, workers: workers, log: log}
}

// Scan analyzes every active market concurrently and returns all six
// detectors' alerts, sorted CRITICAL-first by descending confidence.
func (s *InsiderScanner) Scan(ctx context.Context) ([]domain.Alert, error) {
	start := time.Now()
	now := time.Now().UTC()
	since := now.Add(-time.Duration(s.cfg.LookbackHours) * time.Hour)

	markets, err := s.store.ActiveMarkets(ctx, since, 1, 200)
	if err != nil {
		return nil, fmt.Errorf("insider.Scan: active markets: %w", err)
	}

	scores, err := s.store.Scores(ctx)
	if err != nil {
		return nil, fmt.Errorf("insider.Scan: scores: %w", err)
	}
	scoreByWallet := make(map[string]float64, len(scores))
	for _, sc := range scores {
		scoreByWallet[sc.WalletID] = sc.TotalScore
	}

	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("insider.Scan: profiles: %w", err)
	}
	profileByWallet := make(map[string]domain.WalletProfile, len(profiles))
	for _, p := range profiles {
		profileByWallet[p.WalletID] = p
	}

	analyze := func(ctx context.Context, marketID string) []domain.Alert {
		alerts, err := s.analyzeMarket(ctx, marketID, now, scoreByWallet, profileByWallet)
		if err != nil {
			s.log.Warn("insider.Scan: market failed", "market", marketID, "err", err)
			return nil
		}
		return alerts
	}

	out := analyzeMarketsConcurrent(ctx, markets, s.workers, analyze)
	sortAlertsBySeverity(out)

	s.log.Info("insider.Scan: complete", "markets", len(markets), "alerts", len(out),
		"duration", time.Since(start).Round(time.Millisecond))
	return out, nil
}

// sortAlertsBySeverity orders alerts CRITICAL-first, then by descending
// confidence within a severity — the same ordering as
// domain.SortInsiderAlerts, applied directly to the wrapped Alert envelope
// so no field is lost in a round trip through domain.InsiderAlert.
func sortAlertsBySeverity(alerts []domain.Alert) {
	for i := 1; i < len(alerts); i++ {
		for j := i; j > 0; j-- {
			a, b := alerts[j], alerts[j-1]
			ra, rb := domain.SeverityRank(a.Severity), domain.SeverityRank(b.Severity)
			less := ra > rb || (ra == rb && a.Confidence > b.Confidence)
			if !less {
				break
			}
			alerts[j], alerts[j-1] = alerts[j-1], alerts[j]
		}
	}
}

func (s *InsiderScanner) analyzeMarket(ctx context.Context, marketID string, now time.Time, scoreByWallet map[string]float64, profileByWallet map[string]domain.WalletProfile) ([]domain.Alert, error) {
	allTrades, err := s.store.TradesForMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("analyzeMarket: trades: %w", err)
	}
	if len(allTrades) == 0 {
		return nil, nil
	}
	marketSlug := allTrades[0].MarketSlug
	if domain.IsExcludedMarket(marketSlug, s.cfg.ExcludedMarketPatterns) {
		return nil, nil
	}

	lookbackStart := now.Add(-time.Duration(s.cfg.LookbackHours) * time.Hour)
	baselineStart := now.AddDate(0, 0, -30)
	sevenDayStart := now.AddDate(0, 0, -7)

	var recentTrades []domain.Trade
	var baselineVolume float64
	var consensusYes, consensusNo float64
	for _, t := range allTrades {
		notional := absF(t.Notional)
		if !t.Timestamp.Before(lookbackStart) {
			recentTrades = append(recentTrades, t)
		} else if !t.Timestamp.Before(baselineStart) && t.Timestamp.Before(lookbackStart) {
			baselineVolume += notional
		}
		if !t.Timestamp.Before(sevenDayStart) {
			if isYesLeaning(t) {
				consensusYes += notional
			} else {
				consensusNo += notional
			}
		}
	}
	historicalDaily := baselineVolume / 30.0

	byWallet := map[string][]domain.Trade{}
	for _, t := range recentTrades {
		byWallet[t.WalletID] = append(byWallet[t.WalletID], t)
	}

	var alerts []domain.Alert
	var recentVolume, yesVolume, noVolume float64
	var smartVol float64
	var smartYes, smartNo float64
	smartWallets := 0

	for walletID, wtrades := range byWallet {
		pos := domain.AggregatePosition(walletID, scoreByWallet[walletID], wtrades)
		recentVolume += pos.TotalVolume
		yesVolume += pos.YesVolume
		noVolume += pos.NoVolume

		direction := "NO"
		if pos.YesVolume > pos.NoVolume {
			direction = "YES"
		}

		var maxBet float64
		var betTrade domain.Trade
		for _, t := range wtrades {
			n := absF(t.Notional)
			if n > maxBet {
				maxBet = n
				betTrade = t
			}
		}

		if _, scored := scoreByWallet[walletID]; scored {
			smartWallets++
			smartVol += pos.TotalVolume
			smartYes += pos.YesVolume
			smartNo += pos.NoVolume
		}

		profile, hasProfile := profileByWallet[walletID]

		if hasProfile {
			accountAgeDays := int(now.Sub(profile.FirstTradeAt).Hours() / 24)
			in := domain.NewAccountWhaleInput{
				WalletID: walletID, MarketSlug: marketSlug, Direction: direction,
				MaxMarketBet: maxBet, TotalVolume: profile.TotalVolume, AccountAgeDays: accountAgeDays,
			}
			if a, ok := domain.DetectNewAccountWhale(in, s.cfg, now); ok {
				alerts = append(alerts, insiderToAlert(a))
			}
		}

		var historicalVolume float64
		for _, t := range allTrades {
			if t.WalletID == walletID && t.Timestamp.Before(betTrade.Timestamp) {
				historicalVolume += absF(t.Notional)
			}
		}
		inLate := domain.LateEntryConvictionInput{
			WalletID: walletID, MarketSlug: marketSlug, Direction: direction,
			BetSize: maxBet, HistoricalVolume: historicalVolume,
		}
		if a, ok := domain.DetectLateEntryConviction(inLate, s.cfg, now); ok {
			alerts = append(alerts, insiderToAlert(a))
		}

		if hasProfile && profile.TotalVolume >= s.cfg.WhaleMinVolumeUSD {
			var priorToWindow float64
			for _, t := range allTrades {
				if t.WalletID == walletID && t.Timestamp.Before(lookbackStart) {
					priorToWindow += absF(t.Notional)
				}
			}
			if priorToWindow == 0 {
				inWhale := domain.WhaleAnomalyInput{
					WalletID: walletID, MarketSlug: marketSlug, Direction: direction, RecentBet: pos.TotalVolume,
				}
				if a, ok := domain.DetectWhaleAnomaly(inWhale, s.cfg, now); ok {
					alerts = append(alerts, insiderToAlert(a))
				}
			}
		}
	}

	uniqueTraders := len(byWallet)
	inVS := domain.VolumeSpikeInput{
		MarketSlug: marketSlug, RecentVolume: recentVolume, HistoricalDaily: historicalDaily,
		LookbackHours: s.cfg.LookbackHours, YesVolume: yesVolume, NoVolume: noVolume, UniqueTraders: uniqueTraders,
	}
	if a, ok := domain.DetectVolumeSpike(inVS, s.cfg, now); ok {
		alerts = append(alerts, insiderToAlert(a))
	}

	if smartWallets >= s.cfg.SmartMoneyMinTraders {
		smartDirection := "NO"
		if smartYes > smartNo {
			smartDirection = "YES"
		}
		consensusTotal := consensusYes + consensusNo
		var consensusPct float64
		consensusDirection := "NO"
		if consensusYes > consensusNo {
			consensusDirection = "YES"
		}
		if consensusTotal > 0 {
			majority := consensusYes
			if consensusNo > majority {
				majority = consensusNo
			}
			consensusPct = majority / consensusTotal
		}
		if smartDirection != consensusDirection {
			inSMD := domain.SmartMoneyDivergenceInput{
				MarketSlug: marketSlug, Direction: smartDirection, SmartMoneyVol: smartVol,
				NumTraders: smartWallets, ConsensusPct: consensusPct,
			}
			if a, ok := domain.DetectSmartMoneyDivergence(inSMD, s.cfg, now); ok {
				alerts = append(alerts, insiderToAlert(a))
			}
		}
	}

	for _, dir := range []string{"YES", "NO"} {
		var traders []string
		var volume float64
		var first, last time.Time
		for walletID, wtrades := range byWallet {
			pos := domain.AggregatePosition(walletID, 0, wtrades)
			walletDir := "NO"
			if pos.YesVolume > pos.NoVolume {
				walletDir = "YES"
			}
			if walletDir != dir {
				continue
			}
			traders = append(traders, walletID)
			volume += pos.TotalVolume
			for _, t := range wtrades {
				if first.IsZero() || t.Timestamp.Before(first) {
					first = t.Timestamp
				}
				if t.Timestamp.After(last) {
					last = t.Timestamp
				}
			}
		}
		if len(traders) < 3 {
			continue
		}
		windowMinutes := int(last.Sub(first).Minutes())
		inCE := domain.CoordinatedEntryInput{
			MarketSlug: marketSlug, Direction: dir, NumTraders: len(traders),
			TotalVolume: volume, WindowMinutes: windowMinutes, TradersInvolved: traders,
		}
		if a, ok := domain.DetectCoordinatedEntry(inCE, s.cfg, now); ok {
			alerts = append(alerts, insiderToAlert(a))
		}
	}

	return alerts, nil
}

func isYesLeaning(t domain.Trade) bool {
	upper := toUpperCopy(t.OutcomeLabel)
	isYes := containsSub(upper, "YES")
	isNo := containsSub(upper, "NO")
	switch {
	case t.Side == domain.Buy && isYes:
		return true
	case t.Side == domain.Sell && isNo:
		return true
	case t.Side == domain.Buy && isNo:
		return false
	case t.Side == domain.Sell && isYes:
		return false
	default:
		return t.OutcomeIndex == 0
	}
}

func toUpperCopy(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

func containsSub(s, substr string) bool {
	n, m := len(s), len(substr)
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return true
		}
	}
	return false
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// insiderToAlert wraps a domain.InsiderAlert in the shared Alert envelope.
func insiderToAlert(ia domain.InsiderAlert) domain.Alert {
	return domain.Alert{
		Type:     domain.AlertType(ia.SignalType),
		Severity: ia.Severity,
		Title:    fmt.Sprintf("%s: %s", ia.SignalType, ia.MarketSlug),
		Message: fmt.Sprintf("%s on %s: %d trader(s), $%.0f volume, %.0f%% confidence",
			ia.SignalType, ia.MarketSlug, ia.NumTraders, ia.TotalVolumeUSD, ia.Confidence*100),
		MarketID:   ia.MarketSlug,
		Direction:  ia.Direction,
		VolumeUSD:  ia.TotalVolumeUSD,
		NumWallets: ia.NumTraders,
		Confidence: ia.Confidence,
		Data: map[string]any{
			"signal_type":      string(ia.SignalType),
			"traders_involved": ia.TradersInvolved,
		},
		CreatedAt: ia.DetectedAt,
	}
}

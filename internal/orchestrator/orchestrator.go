// Package orchestrator wires the full analytics cycle: resolutions → profiles →
// P&L → Sharpe → scoring → classification → indices → hidden-alpha → consensus →
// edge-decay → anomalies → insider scan → dispatch. Pipeline steps are
// strictly ordered; scanner failures downstream never abort the scoring
// pipeline's completed work.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/awarefund/smartmoney/internal/application/index"
	"github.com/awarefund/smartmoney/internal/application/pnl"
	"github.com/awarefund/smartmoney/internal/application/profile"
	"github.com/awarefund/smartmoney/internal/application/scanner"
	"github.com/awarefund/smartmoney/internal/application/scoring"
	"github.com/awarefund/smartmoney/internal/application/sharpe"
	"github.com/awarefund/smartmoney/internal/dispatch"
	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/adapters/resolution"
)

// Orchestrator owns one full analytics cycle over explicitly-injected
// components; no process-wide state.
type Orchestrator struct {
	tracker     *resolution.Tracker
	profiles    *profile.Builder
	pnl         *pnl.Calculator
	sharpe      *sharpe.Calculator
	scorer      *scoring.Scorer
	classifier  *scanner.Classifier
	indices     *index.Builder
	hiddenAlpha *scanner.HiddenAlphaScanner
	consensus   *scanner.ConsensusScanner
	edgeDecay   *scanner.EdgeDecayScanner
	anomalies   *scanner.AnomalyScanner
	insider     *scanner.InsiderScanner
	dispatcher  *dispatch.Dispatcher
	log         *slog.Logger
}

// Deps collects the orchestrator's injected components.
type Deps struct {
	Tracker     *resolution.Tracker
	Profiles    *profile.Builder
	PnL         *pnl.Calculator
	Sharpe      *sharpe.Calculator
	Scorer      *scoring.Scorer
	Classifier  *scanner.Classifier
	Indices     *index.Builder
	HiddenAlpha *scanner.HiddenAlphaScanner
	Consensus   *scanner.ConsensusScanner
	EdgeDecay   *scanner.EdgeDecayScanner
	Anomalies   *scanner.AnomalyScanner
	Insider     *scanner.InsiderScanner
	Dispatcher  *dispatch.Dispatcher
}

// New builds an Orchestrator from its dependencies.
func New(deps Deps, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		tracker:     deps.Tracker,
		profiles:    deps.Profiles,
		pnl:         deps.PnL,
		sharpe:      deps.Sharpe,
		scorer:      deps.Scorer,
		classifier:  deps.Classifier,
		indices:     deps.Indices,
		hiddenAlpha: deps.HiddenAlpha,
		consensus:   deps.Consensus,
		edgeDecay:   deps.EdgeDecay,
		anomalies:   deps.Anomalies,
		insider:     deps.Insider,
		dispatcher:  deps.Dispatcher,
		log:         log,
	}
}

// RunCycle executes one full pipeline pass. The scoring pipeline
// (resolutions through indices) is sequential: a store failure in one step
// aborts the steps that depend on it. The scanners after it are independent
// of each other: each failure is logged and the rest still run, and all
// surviving alerts are merged into a single dispatch batch.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()[:8]
	log := o.log.With("cycle", cycleID)
	start := time.Now()
	log.Info("orchestrator.RunCycle: starting")

	// Scoring pipeline — ordered, later steps read what earlier steps wrote.
	if err := o.step(ctx, log, "resolutions", func(ctx context.Context) error {
		_, err := o.tracker.Run(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("orchestrator.RunCycle: resolutions: %w", err)
	}
	if err := o.step(ctx, log, "profiles", func(ctx context.Context) error {
		_, err := o.profiles.RunAll(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("orchestrator.RunCycle: profiles: %w", err)
	}
	if err := o.step(ctx, log, "pnl", func(ctx context.Context) error {
		_, err := o.pnl.RunAll(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("orchestrator.RunCycle: pnl: %w", err)
	}
	if err := o.step(ctx, log, "sharpe", func(ctx context.Context) error {
		_, err := o.sharpe.RunAll(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("orchestrator.RunCycle: sharpe: %w", err)
	}
	if err := o.step(ctx, log, "scoring", func(ctx context.Context) error {
		_, err := o.scorer.RunAll(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("orchestrator.RunCycle: scoring: %w", err)
	}
	if err := o.step(ctx, log, "classification", func(ctx context.Context) error {
		_, err := o.classifier.Run(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("orchestrator.RunCycle: classification: %w", err)
	}
	if err := o.step(ctx, log, "indices", func(ctx context.Context) error {
		_, err := o.indices.RunAll(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("orchestrator.RunCycle: indices: %w", err)
	}

	// Scanners — independent of each other; failures don't abort the cycle.
	var alerts []domain.Alert
	alerts = append(alerts, o.scan(ctx, log, "hidden-alpha", o.hiddenAlpha.Scan)...)
	alerts = append(alerts, o.scan(ctx, log, "consensus", o.consensus.Scan)...)
	alerts = append(alerts, o.scan(ctx, log, "edge-decay", o.edgeDecay.Scan)...)
	alerts = append(alerts, o.scan(ctx, log, "anomalies", o.anomalies.Scan)...)
	alerts = append(alerts, o.scan(ctx, log, "insider", o.insider.Scan)...)

	dispatched := o.dispatcher.DispatchBatch(ctx, alerts)
	stats := o.dispatcher.GetStats()

	log.Info("orchestrator.RunCycle: complete",
		"alerts", len(alerts),
		"dispatched", dispatched,
		"filtered_total", stats.Filtered,
		"deduplicated_total", stats.Deduplicated,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (o *Orchestrator) step(ctx context.Context, log *slog.Logger, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	if err := fn(ctx); err != nil {
		return err
	}
	log.Info("orchestrator: step complete", "step", name, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (o *Orchestrator) scan(ctx context.Context, log *slog.Logger, name string, fn func(ctx context.Context) ([]domain.Alert, error)) []domain.Alert {
	start := time.Now()
	alerts, err := fn(ctx)
	if err != nil {
		log.Warn("orchestrator: scanner failed", "scanner", name, "err", err)
		return nil
	}
	log.Info("orchestrator: scanner complete", "scanner", name, "alerts", len(alerts),
		"duration", time.Since(start).Round(time.Millisecond))
	return alerts
}

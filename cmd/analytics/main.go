package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/awarefund/smartmoney/config"
	"github.com/awarefund/smartmoney/internal/adapters/notify"
	"github.com/awarefund/smartmoney/internal/adapters/resolution"
	"github.com/awarefund/smartmoney/internal/adapters/store"
	"github.com/awarefund/smartmoney/internal/application/index"
	"github.com/awarefund/smartmoney/internal/application/pnl"
	"github.com/awarefund/smartmoney/internal/application/profile"
	"github.com/awarefund/smartmoney/internal/application/scanner"
	"github.com/awarefund/smartmoney/internal/application/scoring"
	"github.com/awarefund/smartmoney/internal/application/sharpe"
	"github.com/awarefund/smartmoney/internal/dispatch"
	"github.com/awarefund/smartmoney/internal/domain"
	"github.com/awarefund/smartmoney/internal/orchestrator"
	"github.com/awarefund/smartmoney/internal/ports"
	"github.com/awarefund/smartmoney/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one analytics cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(2)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)
	logger := slog.Default()

	slog.Info("smartmoney analytics starting",
		"config", *configPath,
		"interval", cfg.ScanInterval(),
		"once", *once,
		"min_severity", cfg.Alert.MinSeverity,
	)

	db, err := store.Open(cfg.Store.Path(), cfg.Store.Timeout(), logger)
	if err != nil {
		slog.Error("failed to open store", "err", err, "path", cfg.Store.Path())
		os.Exit(1)
	}
	defer db.Close()

	gamma := resolution.NewGammaClient("", logger)
	tracker := resolution.New(db, gamma, logger)

	var sinks []ports.NotifySink
	chatSink := notify.NewChatWebhook(cfg.Sinks.ChatWebhookURL, logger)
	if chatSink.IsConfigured() {
		sinks = append(sinks, chatSink)
	}
	botSink := notify.NewBotAPI("", cfg.Sinks.BotToken, cfg.Sinks.BotChatID, cfg.Sinks.BotThreadID, logger)
	if botSink.IsConfigured() {
		sinks = append(sinks, botSink)
	}
	webhookURLs := cfg.Sinks.WebhookURLs
	if len(webhookURLs) == 0 && cfg.Sinks.WebhookURL != "" {
		webhookURLs = []string{cfg.Sinks.WebhookURL}
	}
	webhookSink := notify.NewWebhook(webhookURLs, cfg.Sinks.WebhookSecret, cfg.Sinks.WebhookAuthHdr, logger)
	if webhookSink.IsConfigured() {
		sinks = append(sinks, webhookSink)
	}
	if len(sinks) == 0 {
		slog.Warn("no notification sinks configured - alerts will not be delivered")
	}

	dispatcher := dispatch.New(sinks, db, dispatch.Config{
		MinSeverity: domain.AlertSeverity(cfg.Alert.MinSeverity),
		DedupTTL:    cfg.Alert.DedupTTL(),
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := dispatcher.WarmCache(ctx); err != nil {
		slog.Warn("dedup cache warm failed", "err", err)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Tracker:     tracker,
		Profiles:    profile.New(db, logger),
		PnL:         pnl.New(db, logger),
		Sharpe:      sharpe.New(db, 0, logger),
		Scorer:      scoring.New(db, domain.DefaultScoringWeights, logger),
		Classifier:  scanner.NewClassifier(db, logger),
		Indices:     index.New(db, logger),
		HiddenAlpha: scanner.NewHiddenAlpha(db, domain.DefaultHiddenAlphaConfig, logger),
		Consensus:   scanner.NewConsensus(db, scanner.DefaultConsensusConfig, logger),
		EdgeDecay:   scanner.NewEdgeDecay(db, scanner.DefaultEdgeDecayConfig, logger),
		Anomalies:   scanner.NewAnomaly(db, domain.DefaultAnomalyConfig, logger),
		Insider:     scanner.NewInsider(db, domain.DefaultInsiderConfig, 0, logger),
		Dispatcher:  dispatcher,
	}, logger)

	if *once {
		if err := orch.RunCycle(ctx); err != nil {
			slog.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		slog.Info("smartmoney analytics stopped cleanly")
		return
	}

	sched := scheduler.New(logger)
	sched.Add("full-cycle", orch.RunCycle, cfg.ScanInterval(), true)

	// SIGHUP dumps the per-job health snapshot to stdout.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			sched.WriteStatus(os.Stdout)
		}
	}()

	err = sched.Run(ctx)
	sched.WriteStatus(os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("scheduler exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("smartmoney analytics stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

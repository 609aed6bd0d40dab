package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"TargetSentinel/internal/backtest"
	"TargetSentinel/internal/config"
	"TargetSentinel/internal/engine"
	"TargetSentinel/internal/history"
	"TargetSentinel/internal/notifier"
	"TargetSentinel/internal/repository"
	"TargetSentinel/internal/scheduler"
)

// app bundles the wired components behind each subcommand.
type app struct {
	cfg     *config.Config
	scoring *config.Scoring
	engine  *engine.Engine
	log     zerolog.Logger

	closers []func() error
}

func buildApp() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	log := newLogger(cfg.Log.Level)

	scoring, err := config.LoadScoring(cfg.Scoring.TablesPath)
	if err != nil {
		return nil, fmt.Errorf("load scoring tables: %w", err)
	}
	log.Info().Str("version", scoring.Version).Msg("scoring tables loaded")

	repo, err := repository.NewSQLiteStore(cfg.Database.SQLitePath, log.With().Str("component", "signals").Logger())
	if err != nil {
		return nil, fmt.Errorf("init signal store: %w", err)
	}
	histStore, err := history.NewSQLiteStore(cfg.Database.SQLitePath, log.With().Str("component", "history").Logger())
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("init history store: %w", err)
	}

	catalog, err := engine.LoadFileCatalog(cfg.Catalog.AcquirersPath, cfg.Catalog.TargetsPath)
	if err != nil {
		repo.Close()
		histStore.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	eng := engine.New(repo, histStore, catalog, nil, scoring, log)
	return &app{
		cfg:     cfg,
		scoring: scoring,
		engine:  eng,
		log:     log,
		closers: []func() error{repo.Close, histStore.Close},
	}, nil
}

func (a *app) close() {
	a.engine.Close()
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			a.log.Error().Err(err).Msg("close")
		}
	}
}

func runEvaluate(_ *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	asOf := time.Now().UTC()
	if asOfArg != "" {
		asOf, err = time.Parse(time.RFC3339, asOfArg)
		if err != nil {
			return fmt.Errorf("parse --as-of: %w", err)
		}
	}

	snap, alerts, tierChange, err := a.engine.Evaluate(context.Background(), args[0], asOf)
	if err != nil {
		return err
	}
	fmt.Print(notifier.FormatSnapshot(&snap))
	for _, alert := range alerts {
		fmt.Print(notifier.FormatAlert(&alert))
	}
	if tierChange != nil {
		fmt.Printf("Tier change: %s -> %s (%s)\n", tierChange.From, tierChange.To, tierChange.Reason)
	}
	return nil
}

func runMatch(_ *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	matches, err := a.engine.Match(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Print(notifier.FormatMatches(matches))
	return nil
}

func runBacktest(_ *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ds, err := backtest.LoadDataset(args[0])
	if err != nil {
		return err
	}
	metrics, err := backtest.New(a.scoring, a.cfg.Backtest.PrecisionK, a.log).Run(context.Background(), ds)
	if err != nil {
		return err
	}

	fmt.Printf("Evaluations:  %d\n", metrics.Evaluations)
	fmt.Printf("Precision@%d:  %.3f\n", metrics.K, metrics.PrecisionAtK)
	fmt.Printf("Brier score:  %.4f\n", metrics.Brier)
	fmt.Println("Calibration:")
	for _, bucket := range metrics.Calibration {
		fmt.Printf("  [%.2f, %.2f)  n=%-5d predicted %.3f  observed %.3f\n",
			bucket.Low, bucket.High, bucket.Count, bucket.PredictedMean, bucket.ObservedRate)
	}
	return nil
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := notifier.NewLogSink(a.log.With().Str("component", "alerts").Logger())
	sched := scheduler.New(ctx, a.engine, sink, a.log.With().Str("component", "scheduler").Logger())
	if err := sched.RegisterAll(a.cfg.Schedule.UniverseCron, a.cfg.Schedule.MaintenanceCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		a.log.Info().Msg("RUN_ON_START enabled, running universe evaluation now")
		go sched.RunUniverseNow()
	}

	a.log.Info().Msg("TargetSentinel is running. Press Ctrl+C to stop.")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	a.log.Info().Msg("shutdown signal received, stopping")
	cancel()
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	asOfArg string
)

func main() {
	root := &cobra.Command{
		Use:   "target-sentinel",
		Short: "Signal-weighted acquisition scoring and acquirer matching",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "path to config.yaml")

	evaluate := &cobra.Command{
		Use:   "evaluate <company-id>",
		Short: "Score a company and print the snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvaluate,
	}
	evaluate.Flags().StringVar(&asOfArg, "as-of", "", "evaluation instant (RFC3339, default now)")

	match := &cobra.Command{
		Use:   "match <company-id>",
		Short: "Rank the acquirer catalog against a scored company",
		Args:  cobra.ExactArgs(1),
		RunE:  runMatch,
	}

	backtestCmd := &cobra.Command{
		Use:   "backtest <dataset.yaml>",
		Short: "Replay a historical dataset and print validation metrics",
		Args:  cobra.ExactArgs(1),
		RunE:  runBacktest,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and evaluation mailboxes until interrupted",
		RunE:  runServe,
	}

	root.AddCommand(evaluate, match, backtestCmd, serve)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

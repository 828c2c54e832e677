// Package main is the entry point for the linefit CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixml/linefit"
	"github.com/helixml/linefit/internal/config"
	"github.com/helixml/linefit/internal/log"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "linefit",
		Short: "Absorption-line fitting for astronomical spectra",
		Long: `linefit fits Voigt absorption-line models to astronomical spectra.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  DATA_DIR                     Data directory (default: ~/.linefit)
  DB_URL                       Fit database URL, sqlite:///path or postgres://... (default: disabled)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  LOG_FILE                     Rotating log file (default: stderr)
  ATOM_FILE                    Atomic line list (default: {data_dir}/atom.dat)
  WORKER_COUNT                 Sweep workers, 0 for one per CPU (default: 0)
  METRICS_ADDR                 Serve /metrics and /healthz on this address

  INSTRUMENT_VDISP             Pixel velocity width in km/s (default: 1.3)
  INSTRUMENT_VSIG              Line-spread sigma in km/s (default: 3.0)
  INSTRUMENT_SHIFT             Post-smoothing sample shift (default: 3)

  ANNEAL_*                     Annealing knobs: MAX_ITERATIONS, MAX_TOTAL_ITERATIONS,
                               MIN_TEMPERATURE, STEP_FLOOR, STEP_DECAY, COOLING_RATE,
                               CHI2_PADDING, SEED

  EXTERNAL_COMMAND             External optimizer executable
  EXTERNAL_ARGS                Comma-separated arguments; {fit} is the fit file path
  EXTERNAL_TIMEOUT             Timeout in seconds (default: 600)`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	cmd.AddCommand(fitCmd(&envFile))
	cmd.AddCommand(sweepCmd(&envFile))
	cmd.AddCommand(mergeCmd())
	cmd.AddCommand(synthCmd(&envFile))
	cmd.AddCommand(importCmd(&envFile))
	cmd.AddCommand(listCmd(&envFile))
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openClient builds a linefit client from the loaded configuration. The
// client owns the logger and closes it.
func openClient(cfg config.AppConfig) (*linefit.Client, *slog.Logger, error) {
	if cfg.HasDatabase() {
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	logger := log.NewLogger(cfg)
	slogger := logger.Slog()

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	slogger.LogAttrs(context.Background(), slog.LevelDebug, "starting linefit", attrs...)

	client, err := linefit.New(
		linefit.WithConfig(cfg),
		linefit.WithLogger(slogger),
		linefit.WithCloser(logger),
	)
	if err != nil {
		_ = logger.Close()
		return nil, nil, fmt.Errorf("create linefit client: %w", err)
	}
	return client, slogger, nil
}

func closeClient(client *linefit.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Error("failed to close linefit client", slog.Any("error", err))
	}
}

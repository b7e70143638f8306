package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"backsim/config"
)

var rootCmd = &cobra.Command{
	Use:   "backsim",
	Short: "A signal-replay backtester for rules-based trading strategies",
	Long: `Backsim replays historical OHLCV bars against previously generated
trade signals, enforcing risk-aware position sizing and portfolio limits,
and produces an auditable closed-trade ledger with summary statistics.

Typical workflow:
  backsim fetch    - download OHLCV history into the store
  backsim signals  - generate Donchian-breakout signals from stored bars
  backsim run      - replay bars against signals and report per symbol
  backsim report   - summarize the full persisted ledger`,
}

var (
	cfgFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(cfgFile)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

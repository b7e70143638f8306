package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"backsim/fetch"
	"backsim/store/sqlite"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download OHLCV history from Binance into the store",
	Long: `Fetch downloads klines for every configured symbol on both the
execution and daily timeframes. Ingestion is idempotent, so re-running a
range only adds missing rows. With --poll the command keeps running and
refreshes the latest bars on a fixed interval.`,
	RunE: runFetch,
}

var (
	fetchPoll     bool
	fetchInterval time.Duration
)

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().BoolVar(&fetchPoll, "poll", false, "keep polling for new bars instead of exiting")
	fetchCmd.Flags().DurationVar(&fetchInterval, "interval", time.Minute, "polling interval when --poll is set")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()

	start, err := cfg.StartTime()
	if err != nil {
		return err
	}
	end, err := cfg.EndTime()
	if err != nil {
		return err
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}

	st, err := sqlite.Open(cfg.Data.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	f := fetch.NewFetcher(fetch.Config{
		Symbols:    cfg.SymbolList(),
		Timeframes: []string{cfg.Data.Timeframe, cfg.Data.DailyTimeframe},
		Start:      start,
		End:        end,
	}, fetch.NewBinanceExchange(""), st, log)

	if fetchPoll {
		return f.Poll(cmd.Context(), fetchInterval)
	}
	return f.FetchAll(cmd.Context())
}

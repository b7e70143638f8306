package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"backsim/store/sqlite"
	"backsim/strategy"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Generate trade signals from stored bars",
	Long: `Signals runs the Donchian-breakout generator over stored history
for every configured symbol and persists the resulting entries, stops and
targets. Run it after fetch and before run.`,
	RunE: runSignals,
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}

func runSignals(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()

	st, err := sqlite.Open(cfg.Data.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	gen := strategy.NewGenerator(strategy.GeneratorConfig{
		ATRPeriod:     cfg.Data.ATRPeriod,
		StopLossATR:   cfg.Risk.StopLossATR,
		TakeProfitATR: cfg.Risk.TakeProfitATR,
	}, st, log)

	total := 0
	for _, symbol := range cfg.SymbolList() {
		n, err := gen.Generate(cmd.Context(), symbol, cfg.Data.Timeframe, cfg.Data.DailyTimeframe)
		if err != nil {
			log.Error("signal generation failed", "symbol", symbol, "err", err)
			continue
		}
		total += n
	}
	fmt.Printf("Generated %d signals\n", total)
	return nil
}

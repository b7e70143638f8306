package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"backsim/config"
	"backsim/position"
	"backsim/replay"
	"backsim/report"
	"backsim/store"
	"backsim/store/sqlite"
	"backsim/strategy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay stored bars against stored signals",
	Long: `Run the simulation for every configured symbol, sequentially.
For each symbol the engine evaluates exits before admitting new entries on
every bar, force-closes whatever is still open when the bar stream ends, and
logs a performance summary over the persisted trade ledger.`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runStore composes the ATR-enriched bar view with the raw store.
type runStore struct {
	store.BarStore
	store.SignalStore
	store.PositionStore
	store.TradeStore
}

func runReplay(cmd *cobra.Command, args []string) error {
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

	pm := position.NewManager(managerConfig(cfg), st, log)
	rep := report.NewReporter(cfg.Report.OutDir, log)

	eng := replay.NewEngine(
		replay.Config{Symbols: cfg.SymbolList(), Timeframe: cfg.Data.Timeframe},
		runStore{
			BarStore:      strategy.NewATRSource(st, cfg.Data.ATRPeriod),
			SignalStore:   st,
			PositionStore: st,
			TradeStore:    st,
		},
		pm, rep, log,
	)
	return eng.Run(cmd.Context())
}

func managerConfig(cfg *config.Config) position.Config {
	return position.Config{
		Capital:         cfg.Account.Capital,
		RiskPerTrade:    cfg.Risk.RiskPerTrade,
		StopLossATR:     cfg.Risk.StopLossATR,
		TakeProfitATR:   cfg.Risk.TakeProfitATR,
		Leverage:        cfg.Account.Leverage,
		FeeRate:         cfg.Costs.FeeRate,
		Slippage:        cfg.Costs.Slippage,
		MaxPositions:    cfg.Risk.MaxPositions,
		MaxRiskFraction: cfg.Risk.MaxRiskFraction,
		QtyPrecision:    cfg.Risk.QtyPrecision,
	}
}

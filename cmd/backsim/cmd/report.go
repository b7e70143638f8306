package cmd

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"backsim/report"
	"backsim/store/sqlite"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the persisted trade ledger across all symbols",
	Long: `Report computes the overall portfolio summary over every trade in
the store. Per-symbol summaries are produced by run; this command is the
explicit cross-symbol aggregation.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := sqlite.Open(cfg.Data.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	trades, err := st.Trades(cmd.Context())
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}
	if len(trades) == 0 {
		fmt.Println("No trades recorded.")
		return nil
	}

	s := report.Summarize(trades)
	fmt.Println("Overall Portfolio")
	fmt.Printf("  Total Trades:  %d\n", s.TotalTrades)
	fmt.Printf("  Total PnL:     %.2f\n", s.TotalPnL)
	fmt.Printf("  Max Drawdown:  %.2f\n", s.MaxDrawdown)
	fmt.Printf("  Win Rate:      %s\n", pct(s.WinRate))
	fmt.Printf("  Sharpe:        %s\n", ratio(s.Sharpe))
	fmt.Printf("  Profit Factor: %s\n", ratio(s.ProfitFactor))
	fmt.Printf("  Avg Win:       %.2f\n", s.AvgWin)
	fmt.Printf("  Avg Loss:      %.2f\n", s.AvgLoss)

	if cfg.Report.OutDir == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.Report.OutDir, 0o755); err != nil {
		return err
	}
	chart := filepath.Join(cfg.Report.OutDir, "equity_overall.html")
	if err := report.WriteEquityChart(chart, "Overall Portfolio", trades); err != nil {
		return err
	}
	ledger := filepath.Join(cfg.Report.OutDir, "trades_overall.csv")
	if err := report.WriteCSV(ledger, trades); err != nil {
		return err
	}
	fmt.Printf("\nWrote %s and %s\n", chart, ledger)
	return nil
}

func pct(x float64) string {
	if math.IsNaN(x) {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", x*100)
}

func ratio(x float64) string {
	if math.IsNaN(x) {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", x)
}

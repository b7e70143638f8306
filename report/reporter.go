package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"backsim/market"
)

// Reporter logs a per-symbol summary and, when OutDir is set, writes the
// equity chart and CSV ledger next to it. Implements replay.Reporter.
type Reporter struct {
	OutDir string
	Log    *slog.Logger
}

func NewReporter(outDir string, log *slog.Logger) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{OutDir: outDir, Log: log}
}

func (r *Reporter) Report(_ context.Context, symbol string, trades []market.Trade) error {
	if len(trades) == 0 {
		r.Log.Info("no trades recorded", "symbol", symbol)
		return nil
	}

	s := Summarize(trades)
	r.Log.Info("performance summary",
		"symbol", symbol,
		"trades", s.TotalTrades,
		"total_pnl", fmt.Sprintf("%.2f", s.TotalPnL),
		"max_drawdown", fmt.Sprintf("%.2f", s.MaxDrawdown),
		"win_rate", fmt.Sprintf("%.2f%%", s.WinRate*100),
		"sharpe", fmt.Sprintf("%.2f", s.Sharpe),
		"profit_factor", fmt.Sprintf("%.2f", s.ProfitFactor),
		"avg_win", fmt.Sprintf("%.2f", s.AvgWin),
		"avg_loss", fmt.Sprintf("%.2f", s.AvgLoss),
	)

	if r.OutDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		return err
	}
	chart := filepath.Join(r.OutDir, fmt.Sprintf("equity_%s.html", sanitize(symbol)))
	if err := WriteEquityChart(chart, symbol, trades); err != nil {
		return fmt.Errorf("equity chart: %w", err)
	}
	ledger := filepath.Join(r.OutDir, fmt.Sprintf("trades_%s.csv", sanitize(symbol)))
	if err := WriteCSV(ledger, trades); err != nil {
		return fmt.Errorf("trade ledger: %w", err)
	}
	return nil
}

func sanitize(symbol string) string {
	out := make([]rune, 0, len(symbol))
	for _, r := range symbol {
		switch r {
		case '/', '\\', ':':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

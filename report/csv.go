package report

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"backsim/market"
)

// WriteCSV exports the trade ledger to path.
func WriteCSV(path string, trades []market.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"position_id", "symbol", "direction", "qty", "entry_price", "exit_price",
		"open_time", "close_time", "gross_pnl", "fee", "net_pnl", "reason",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, t := range trades {
		row := []string{
			t.PositionID,
			t.Symbol,
			string(t.Direction),
			fs(t.Qty),
			fs(t.EntryPrice),
			fs(t.ExitPrice),
			t.OpenTime.Format(time.RFC3339),
			t.CloseTime.Format(time.RFC3339),
			fs(t.GrossPnL),
			fs(t.Fee),
			fs(t.NetPnL),
			string(t.Reason),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fs(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

package report

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"backsim/market"
)

// WriteEquityChart renders the cumulative net P&L per trade as a standalone
// HTML line chart.
func WriteEquityChart(path, title string, trades []market.Trade) error {
	sorted := make([]market.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CloseTime.Before(sorted[j].CloseTime)
	})
	curve := EquityCurve(sorted)

	xAxis := make([]string, len(curve))
	points := make([]opts.LineData, len(curve))
	for i, v := range curve {
		xAxis[i] = fmt.Sprintf("%d", i+1)
		points[i] = opts.LineData{Value: v}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Equity Curve (%s)", title),
			Subtitle: fmt.Sprintf("%d trades", len(curve)),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Trade #"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Equity"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("Equity", points,
		charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return line.Render(f)
}

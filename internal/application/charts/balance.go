// Package charts renders ledger views as standalone HTML charts.
package charts

import (
	"io"

	"paper-ledger/internal/domain"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderBalanceHistory writes a line chart of the running balance, one point
// per ledger entry, oldest first.
func RenderBalanceHistory(w io.Writer, username string, points []domain.BalancePoint) error {
	line := charts.NewLine()
	line.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title:    "Balance over time",
		Subtitle: username,
	}))

	labels := make([]string, 0, len(points))
	items := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		labels = append(labels, p.Date)
		items = append(items, opts.LineData{Value: p.Balance.InexactFloat64()})
	}
	line.SetXAxis(labels).AddSeries("Balance", items)

	return line.Render(w)
}

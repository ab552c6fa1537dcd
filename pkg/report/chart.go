package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	chartTimeLayout = "2006-01-02 15:04"
	// missing values are rendered as gaps
	gapValue = "-"
)

// ChartTitle formats the chart title from the dataset averages.
func ChartTitle(s Summary) string {
	return fmt.Sprintf("Closing Prices and RSI (Avg Close: %.2f, Avg RSI: %.2f)", s.AvgClose, s.AvgRSI)
}

// RenderChart writes a self-contained HTML page with close on the left axis
// and RSI on a fixed 0..100 right axis.
func RenderChart(w io.Writer, ds *Dataset, title string) error {
	if ds == nil || len(ds.Points) == 0 {
		return ErrNoData
	}
	labels := make([]string, len(ds.Points))
	closes := make([]opts.LineData, len(ds.Points))
	rsi := make([]opts.LineData, len(ds.Points))
	for i, p := range ds.Points {
		labels[i] = p.Time.Format(chartTimeLayout)
		closes[i] = opts.LineData{Value: gapValue}
		if p.Close.Valid {
			closes[i] = opts.LineData{Value: p.Close.Decimal.InexactFloat64()}
		}
		rsi[i] = opts.LineData{Value: gapValue}
		if p.RSI.Valid {
			rsi[i] = opts.LineData{Value: p.RSI.Decimal.InexactFloat64()}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: ds.Name}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Timestamp"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Close Price"}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "RSI", Min: 0, Max: 100})
	line.SetXAxis(labels).
		AddSeries("Close Price", closes).
		AddSeries("RSI", rsi, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))
	return line.Render(w)
}

// WriteChart renders ds into dir/<name>.html and returns the path.
func WriteChart(dir string, ds *Dataset) (string, error) {
	if ds == nil {
		return "", errors.New("report: nil dataset")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, ds.Name+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("report: create %s: %w", path, err)
	}
	if err := RenderChart(f, ds, ChartTitle(ds.Summary())); err != nil {
		f.Close()
		return "", fmt.Errorf("report: render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("report: close %s: %w", path, err)
	}
	return path, nil
}

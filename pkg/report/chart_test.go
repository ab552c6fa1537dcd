package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartTitle(t *testing.T) {
	title := ChartTitle(Summary{AvgClose: 101.456, AvgRSI: 55})
	assert.Equal(t, "Closing Prices and RSI (Avg Close: 101.46, Avg RSI: 55.00)", title)
}

func TestRenderChart(t *testing.T) {
	points, _, err := ReadCSV(strings.NewReader(sampleCSV), "sample.csv")
	require.NoError(t, err)
	ds := &Dataset{Name: "sample", Points: points}

	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, ds, "Closing Prices and RSI"))
	html := buf.String()
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "Closing Prices and RSI")
	assert.Contains(t, html, "2024-01-01 01:00")
}

func TestRenderChartEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.ErrorIs(t, RenderChart(&buf, &Dataset{}, "x"), ErrNoData)
	assert.Zero(t, buf.Len())
}

func TestWriteChart(t *testing.T) {
	points, _, err := ReadCSV(strings.NewReader(sampleCSV), "sample.csv")
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "plots")

	path, err := WriteChart(dir, &Dataset{Name: "btcusdt_data", Points: points})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "btcusdt_data.html"), path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

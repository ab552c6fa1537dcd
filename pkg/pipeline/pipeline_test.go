package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketpipe/pkg/journal"
	"marketpipe/pkg/market"
	"marketpipe/pkg/market/markettest"
	"marketpipe/pkg/series"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func fixtureSource(candles []market.Candle, rates []market.FundingRate) *markettest.MockSource {
	src := &markettest.MockSource{}
	src.On("FetchCandles", mock.Anything, "SOLUSDT", "1h", 16).Return(candles, nil)
	src.On("FetchFundingRate", mock.Anything, "SOLUSDT").Return(rates, nil)
	return src
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestRunWritesCombinedCSV(t *testing.T) {
	dir := t.TempDir()
	candles := markettest.Candles(start, time.Hour, 16, markettest.Flat(100))
	rates := []market.FundingRate{
		markettest.Funding(start.Add(8*time.Hour), "0.0001"),
		markettest.Funding(start.Add(-8*time.Hour), "0.0003"),
	}
	src := fixtureSource(candles, rates)

	p := New(src, NewCSVSink(dir, time.UTC, 6))
	res, err := p.Run(context.Background(), Request{Symbol: "solusdt", Interval: "1h", Limit: 16, Window: 14})
	require.NoError(t, err)
	src.AssertExpectations(t)

	assert.Equal(t, filepath.Join(dir, "solusdt_data.csv"), res.Path)
	assert.Equal(t, 16, res.Rows)
	assert.Equal(t, 2, res.FundingRows)

	lines := readLines(t, res.Path)
	require.Len(t, lines, 17)
	assert.Equal(t, "timestamp,open,high,low,close,volume,RSI,fundingRate", lines[0])
	assert.Equal(t, "2024-01-01 00:00:00,100.000000,101.000000,99.000000,100.000000,10.000000,,", lines[1])
	assert.Equal(t, "2024-01-01 08:00:00,100.000000,101.000000,99.000000,100.000000,10.000000,,0.000100", lines[9])
	assert.Equal(t, "2024-01-01 14:00:00,100.000000,101.000000,99.000000,100.000000,10.000000,100.000000,", lines[15])
}

func TestRunDefaultPrecisionRoundsToTwoPlaces(t *testing.T) {
	dir := t.TempDir()
	closes := []float64{10.123, 10.456, 10.789}
	candles := markettest.Candles(start, time.Minute, 3, func(i int) float64 { return closes[i] })
	src := &markettest.MockSource{}
	src.On("FetchCandles", mock.Anything, "BTCUSDT", "1m", 3).Return(candles, nil)
	src.On("FetchFundingRate", mock.Anything, "BTCUSDT").Return([]market.FundingRate(nil), nil)

	res, err := New(src, NewCSVSink(dir, nil, DefaultPrecision)).Run(context.Background(),
		Request{Symbol: "BTCUSDT", Interval: "1m", Limit: 3, Window: 1})
	require.NoError(t, err)

	lines := readLines(t, res.Path)
	require.Len(t, lines, 4)
	assert.Equal(t, "2024-01-01 00:00:00,10.12,11.12,9.12,10.12,10.00,,", lines[1])
	assert.Equal(t, "2024-01-01 00:01:00,10.46,11.46,9.46,10.46,10.00,100.00,", lines[2])

	// The frame keeps unrounded values for downstream use.
	rsi, ok := res.Frame.Column(ColumnRSI)
	require.True(t, ok)
	assert.True(t, rsi[2].Valid)
}

func TestRunCandleFailureAbortsBeforeFunding(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	upstream := &market.UpstreamFetchError{Symbol: "SOLUSDT", Endpoint: "/api/v3/klines", StatusCode: 500, Err: errors.New("boom")}
	src := &markettest.MockSource{}
	src.On("FetchCandles", mock.Anything, "SOLUSDT", "1h", 240).Return(nil, upstream)

	res, err := New(src, NewCSVSink(dir, time.UTC, 2)).Run(context.Background(), Request{Symbol: "SOLUSDT", Interval: "1h"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, "unable to fetch data for SOLUSDT", err.Error())

	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageCandles, pe.Stage)
	assert.True(t, market.IsUpstream(err))

	src.AssertNotCalled(t, "FetchFundingRate", mock.Anything, mock.Anything)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "no output may be written")
}

func TestRunFundingFailureWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	src := &markettest.MockSource{}
	src.On("FetchCandles", mock.Anything, "SOLUSDT", "1h", 16).
		Return(markettest.Candles(start, time.Hour, 16, markettest.Flat(1)), nil)
	src.On("FetchFundingRate", mock.Anything, "SOLUSDT").Return(nil, errors.New("timeout"))

	_, err := New(src, NewCSVSink(dir, time.UTC, 2)).Run(context.Background(),
		Request{Symbol: "SOLUSDT", Interval: "1h", Limit: 16})
	require.Error(t, err)
	assert.Equal(t, "unable to fetch funding rate for SOLUSDT", err.Error())
	stage, ok := StageOf(err)
	require.True(t, ok)
	assert.Equal(t, StageFunding, stage)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	closes := []float64{44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00}
	candles := markettest.Candles(start, time.Hour, 16, func(i int) float64 { return closes[i] })
	rates := []market.FundingRate{markettest.Funding(start.Add(8*time.Hour), "-0.0002")}
	src := fixtureSource(candles, rates)
	p := New(src, NewCSVSink(dir, time.UTC, 2))
	req := Request{Symbol: "SOLUSDT", Interval: "1h", Limit: 16, Window: 14}

	first, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	firstBytes, err := os.ReadFile(first.Path)
	require.NoError(t, err)

	second, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(second.Path)
	require.NoError(t, err)

	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, firstBytes, secondBytes)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

type failingSink struct{ err error }

func (s failingSink) Persist(context.Context, string, *series.Frame) (string, error) {
	return "", s.err
}

func TestRunSinkFailure(t *testing.T) {
	src := fixtureSource(markettest.Candles(start, time.Hour, 16, markettest.Flat(1)), nil)
	diskFull := errors.New("disk full")

	_, err := New(src, failingSink{err: diskFull}).Run(context.Background(),
		Request{Symbol: "SOLUSDT", Interval: "1h", Limit: 16})
	require.ErrorIs(t, err, diskFull)
	stage, _ := StageOf(err)
	assert.Equal(t, StagePersist, stage)
}

func TestRunCancelledContextWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	src := fixtureSource(markettest.Candles(start, time.Hour, 16, markettest.Flat(1)), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(src, NewCSVSink(dir, time.UTC, 2)).Run(ctx, Request{Symbol: "SOLUSDT", Interval: "1h", Limit: 16})
	require.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

type recordingPersistence struct {
	calls []string
	err   error
}

func (r *recordingPersistence) RecordSeries(_ context.Context, symbol, interval string, frame *series.Frame) error {
	r.calls = append(r.calls, symbol+"/"+interval)
	return r.err
}

type recordingJournal struct {
	records []journal.RunRecord
}

func (j *recordingJournal) WriteRun(rec *journal.RunRecord) (string, error) {
	j.records = append(j.records, *rec)
	return "", nil
}

func TestRunHooksAreNonFatal(t *testing.T) {
	dir := t.TempDir()
	src := fixtureSource(markettest.Candles(start, time.Hour, 16, markettest.Flat(1)), nil)
	mirror := &recordingPersistence{err: errors.New("db down")}
	j := &recordingJournal{}

	res, err := New(src, NewCSVSink(dir, time.UTC, 2), WithPersistence(mirror), WithJournal(j)).
		Run(context.Background(), Request{Symbol: "SOLUSDT", Interval: "1h", Limit: 16})
	require.NoError(t, err)
	assert.Equal(t, []string{"SOLUSDT/1h"}, mirror.calls)

	require.Len(t, j.records, 1)
	rec := j.records[0]
	assert.True(t, rec.Success)
	assert.Equal(t, 16, rec.Rows)
	assert.Equal(t, res.Path, rec.OutputPath)
	assert.Equal(t, 14, rec.Window)
}

func TestRunJournalsFailures(t *testing.T) {
	src := &markettest.MockSource{}
	src.On("FetchCandles", mock.Anything, "SOLUSDT", "1h", 240).Return(nil, errors.New("refused"))
	mirror := &recordingPersistence{}
	j := &recordingJournal{}

	_, err := New(src, NewCSVSink(t.TempDir(), time.UTC, 2), WithPersistence(mirror), WithJournal(j)).
		Run(context.Background(), Request{Symbol: "SOLUSDT", Interval: "1h"})
	require.Error(t, err)
	assert.Empty(t, mirror.calls)
	require.Len(t, j.records, 1)
	assert.False(t, j.records[0].Success)
	assert.Equal(t, "candles", j.records[0].FailedStage)
	assert.Equal(t, "unable to fetch data for SOLUSDT", j.records[0].ErrorMessage)
}

func TestRequestDefaults(t *testing.T) {
	r := Request{Symbol: " ethusdt ", Interval: "4h"}.withDefaults()
	assert.Equal(t, "ETHUSDT", r.Symbol)
	assert.Equal(t, DefaultLimit, r.Limit)
	assert.Equal(t, DefaultWindow, r.Window)
}

func TestPipelineErrorMessages(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageCandles, "unable to fetch data for SOLUSDT"},
		{StageIndicator, "unable to compute RSI for SOLUSDT"},
		{StageFunding, "unable to fetch funding rate for SOLUSDT"},
		{StageMerge, "unable to merge series for SOLUSDT"},
		{StagePersist, "unable to persist data for SOLUSDT"},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			err := error(&PipelineError{Stage: tt.stage, Symbol: "SOLUSDT", Err: cause})
			assert.Equal(t, tt.want, err.Error())
			assert.ErrorIs(t, err, cause)
			stage, ok := StageOf(fmt.Errorf("wrapped: %w", err))
			require.True(t, ok)
			assert.Equal(t, tt.stage, stage)
		})
	}
}

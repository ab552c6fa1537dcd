// Package markettest provides doubles for market.Source.
package markettest

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"marketpipe/pkg/market"
)

// MockSource is a testify mock implementing market.Source.
type MockSource struct {
	mock.Mock
}

var _ market.Source = (*MockSource)(nil)

func (m *MockSource) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	args := m.Called(ctx, symbol, interval, limit)
	candles, _ := args.Get(0).([]market.Candle)
	return candles, args.Error(1)
}

func (m *MockSource) FetchFundingRate(ctx context.Context, symbol string) ([]market.FundingRate, error) {
	args := m.Called(ctx, symbol)
	rates, _ := args.Get(0).([]market.FundingRate)
	return rates, args.Error(1)
}

// Candles builds n candles spaced by step starting at start. closeAt supplies
// the close for index i; open/high/low/volume are derived from it.
func Candles(start time.Time, step time.Duration, n int, closeAt func(i int) float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		c := decimal.NewFromFloat(closeAt(i))
		out[i] = market.Candle{
			Time:   start.Add(time.Duration(i) * step),
			Open:   c,
			High:   c.Add(decimal.NewFromInt(1)),
			Low:    c.Sub(decimal.NewFromInt(1)),
			Close:  c,
			Volume: decimal.NewFromInt(10),
		}
	}
	return out
}

// Flat returns a close function that always yields v.
func Flat(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

// Funding builds a funding event at ts.
func Funding(ts time.Time, rate string) market.FundingRate {
	return market.FundingRate{Time: ts, Rate: decimal.RequireFromString(rate)}
}

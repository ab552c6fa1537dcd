package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Source describes an exchange market data source.
type Source interface {
	// FetchCandles returns up to limit candles for symbol, oldest first.
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	// FetchFundingRate returns the exchange's default window of funding events, oldest first.
	FetchFundingRate(ctx context.Context, symbol string) ([]FundingRate, error)
}

// Candle is a single OHLCV interval as reported by the exchange.
type Candle struct {
	Time   time.Time // Interval open time, UTC, minute resolution
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// FundingRate is one perpetual funding event.
type FundingRate struct {
	Time time.Time       // Funding time, UTC, minute resolution
	Rate decimal.Decimal // Signed rate as a fraction (0.0001 == 0.01%)
}

// TimeFromMillis converts an exchange epoch-millisecond timestamp into the
// instant used as a join key. Candles and funding events must both go through
// this routine so that equal minutes compare equal.
func TimeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC().Truncate(time.Minute)
}

// Closes extracts the close series as float64 for indicator calculations.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close.InexactFloat64()
	}
	return out
}

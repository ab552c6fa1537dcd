package pipeline

import (
	"time"

	"github.com/shopspring/decimal"

	"marketpipe/pkg/market"
	"marketpipe/pkg/series"
)

// Output columns, in file order after the timestamp.
const (
	ColumnOpen        = "open"
	ColumnHigh        = "high"
	ColumnLow         = "low"
	ColumnClose       = "close"
	ColumnVolume      = "volume"
	ColumnRSI         = "RSI"
	ColumnFundingRate = "fundingRate"
)

// CandleFrame converts candles into a frame keyed by open time.
func CandleFrame(candles []market.Candle) *series.Frame {
	f := series.NewFrame(ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnVolume)
	f.Index = make([]time.Time, 0, len(candles))
	f.Rows = make([][]decimal.NullDecimal, 0, len(candles))
	for _, c := range candles {
		f.Index = append(f.Index, c.Time)
		f.Rows = append(f.Rows, []decimal.NullDecimal{
			decimal.NewNullDecimal(c.Open),
			decimal.NewNullDecimal(c.High),
			decimal.NewNullDecimal(c.Low),
			decimal.NewNullDecimal(c.Close),
			decimal.NewNullDecimal(c.Volume),
		})
	}
	return f
}

// FundingFrame converts funding events into a single-column frame.
func FundingFrame(rates []market.FundingRate) *series.Frame {
	f := series.NewFrame(ColumnFundingRate)
	for _, r := range rates {
		f.Index = append(f.Index, r.Time)
		f.Rows = append(f.Rows, []decimal.NullDecimal{decimal.NewNullDecimal(r.Rate)})
	}
	return f
}

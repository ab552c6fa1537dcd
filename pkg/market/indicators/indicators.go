package indicators

import (
	"math"

	"github.com/shopspring/decimal"
)

// EMA produces the exponential moving average for the supplied prices.
// Indices before the first full window are NaN.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) == 0 {
		return []float64{}
	}
	result := nanSeries(len(prices))
	if len(prices) < period {
		return result
	}

	sum := 0.0
	for _, p := range prices[:period] {
		sum += p
	}
	result[period-1] = sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		prev := result[i-1]
		result[i] = (prices[i]-prev)*multiplier + prev
	}
	return result
}

// RSI computes Wilder's Relative Strength Index across the supplied prices.
// The first period entries are NaN. When the smoothed loss is zero the value
// is 100, which includes a flat series.
func RSI(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) == 0 {
		return []float64{}
	}
	rsi := nanSeries(len(prices))
	if len(prices) <= period {
		return rsi
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gainSum += change
		} else {
			lossSum -= change
		}
	}

	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	rsi[period] = computeRSI(avgGain, avgLoss)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain := math.Max(change, 0)
		loss := math.Max(-change, 0)

		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)

		rsi[i] = computeRSI(avgGain, avgLoss)
	}
	return rsi
}

// NullRSI runs RSI and maps warm-up entries to invalid decimals.
func NullRSI(prices []float64, period int) []decimal.NullDecimal {
	return ToNullDecimals(RSI(prices, period))
}

// ToNullDecimals converts NaN entries to invalid NullDecimals. Values are not rounded.
func ToNullDecimals(values []float64) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true}
	}
	return out
}

func computeRSI(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

package forecast

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"marketpipe/pkg/market/indicators"
)

// Predictor estimates the close horizon bars after the last observation in
// history. ok is false when history is insufficient.
type Predictor interface {
	Name() string
	Predict(history []Observation, horizon int) (value float64, ok bool)
}

// Naive predicts the last close.
type Naive struct{}

func (Naive) Name() string { return "naive" }

func (Naive) Predict(history []Observation, _ int) (float64, bool) {
	if len(history) == 0 {
		return 0, false
	}
	return history[len(history)-1].Close, true
}

// RSIRegression fits close[t+horizon] = a + b*RSI[t] by ordinary least
// squares over the pairs fully contained in history.
type RSIRegression struct{}

func (RSIRegression) Name() string { return "rsi_regression" }

func (RSIRegression) Predict(history []Observation, horizon int) (float64, bool) {
	if len(history) == 0 || !history[len(history)-1].HasRSI {
		return 0, false
	}
	var xs, ys []float64
	for i := 0; i+horizon < len(history); i++ {
		if !history[i].HasRSI {
			continue
		}
		xs = append(xs, history[i].RSI)
		ys = append(ys, history[i+horizon].Close)
	}
	a, b, ok := ols(xs, ys)
	if !ok {
		return 0, false
	}
	return a + b*history[len(history)-1].RSI, true
}

func ols(xs, ys []float64) (intercept, slope float64, ok bool) {
	n := float64(len(xs))
	if len(xs) < 2 {
		return 0, 0, false
	}
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= n
	my /= n
	var sxy, sxx float64
	for i := range xs {
		dx := xs[i] - mx
		sxy += dx * (ys[i] - my)
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0, 0, false
	}
	slope = sxy / sxx
	return my - slope*mx, slope, true
}

// TSF projects the linear regression of the last Period closes.
type TSF struct {
	Period int
}

func (p TSF) Name() string { return fmt.Sprintf("tsf_%d", p.Period) }

func (p TSF) Predict(history []Observation, horizon int) (float64, bool) {
	if p.Period < 2 || len(history) < p.Period {
		return 0, false
	}
	closes := closesOf(history[len(history)-p.Period:])
	var v float64
	if horizon == 1 {
		v = last(talib.Tsf(closes, p.Period))
	} else {
		intercept := last(talib.LinearRegIntercept(closes, p.Period))
		slope := last(talib.LinearRegSlope(closes, p.Period))
		v = intercept + slope*float64(p.Period-1+horizon)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// EMA predicts the latest exponential moving average of closes.
type EMA struct {
	Period int
}

func (p EMA) Name() string { return fmt.Sprintf("ema_%d", p.Period) }

func (p EMA) Predict(history []Observation, _ int) (float64, bool) {
	if p.Period <= 0 || len(history) < p.Period {
		return 0, false
	}
	v := last(indicators.EMA(closesOf(history), p.Period))
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func closesOf(obs []Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Close
	}
	return out
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

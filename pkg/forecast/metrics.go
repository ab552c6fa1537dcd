package forecast

import "math"

// Metric summarises one predictor's errors.
type Metric struct {
	Predictor string  `json:"predictor"`
	Count     int     `json:"count"`
	MAE       float64 `json:"mae"`
	RMSE      float64 `json:"rmse"`
}

// errorAccumulator tracks absolute and squared errors.
type errorAccumulator struct {
	count int
	abs   float64
	sq    float64
}

func (a *errorAccumulator) add(predicted, actual float64) {
	d := predicted - actual
	a.count++
	a.abs += math.Abs(d)
	a.sq += d * d
}

func (a *errorAccumulator) metric(name string) Metric {
	m := Metric{Predictor: name, Count: a.count}
	if a.count > 0 {
		m.MAE = a.abs / float64(a.count)
		m.RMSE = math.Sqrt(a.sq / float64(a.count))
	}
	return m
}

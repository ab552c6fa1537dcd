// Package forecast evaluates close-price predictors with a walk-forward
// harness over pipeline output.
package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	DefaultMinTrain = 30
	DefaultHorizon  = 1
)

// Engine feeds observations one at a time. Once MinTrain observations have
// been seen each predictor forecasts the close Horizon bars ahead, using only
// the observations seen so far; the forecast is scored when its target arrives.
type Engine struct {
	Feeder     Feeder
	Predictors []Predictor
	MinTrain   int
	Horizon    int

	// Optional: write JSON report to this path
	OutputPath string
}

// Forecast is an out-of-sample prediction whose target lies past the data.
type Forecast struct {
	Predictor string    `json:"predictor"`
	From      time.Time `json:"from"`
	Value     float64   `json:"value"`
}

// Result summarizes a run.
type Result struct {
	Steps     int        `json:"steps"`
	Evaluated int        `json:"evaluated"`
	MinTrain  int        `json:"minTrain"`
	Horizon   int        `json:"horizon"`
	Metrics   []Metric   `json:"metrics"`
	Forecasts []Forecast `json:"forecasts"`
}

// Best returns the metric with the lowest RMSE among predictors that scored.
func (r *Result) Best() (Metric, bool) {
	var best Metric
	found := false
	for _, m := range r.Metrics {
		if m.Count == 0 {
			continue
		}
		if !found || m.RMSE < best.RMSE {
			best, found = m, true
		}
	}
	return best, found
}

type pending struct {
	predictor int
	target    int
	from      time.Time
	value     float64
}

func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.Feeder == nil || len(e.Predictors) == 0 {
		return nil, errors.New("forecast: engine not fully configured")
	}
	minTrain, horizon := e.MinTrain, e.Horizon
	if minTrain <= 0 {
		minTrain = DefaultMinTrain
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}

	res := &Result{MinTrain: minTrain, Horizon: horizon}
	acc := make([]errorAccumulator, len(e.Predictors))
	var (
		history []Observation
		queue   []pending
	)
	for {
		obs, ok, err := e.Feeder.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		history = append(history, *obs)
		step := len(history) - 1
		res.Steps++

		// score forecasts whose target just arrived
		kept := queue[:0]
		for _, p := range queue {
			if p.target == step {
				acc[p.predictor].add(p.value, obs.Close)
				continue
			}
			kept = append(kept, p)
		}
		queue = kept

		if len(history) < minTrain {
			continue
		}
		for i, pred := range e.Predictors {
			v, ok := pred.Predict(history, horizon)
			if !ok {
				continue
			}
			queue = append(queue, pending{predictor: i, target: step + horizon, from: obs.Time, value: v})
		}
	}

	for i, pred := range e.Predictors {
		res.Metrics = append(res.Metrics, acc[i].metric(pred.Name()))
		if acc[i].count > res.Evaluated {
			res.Evaluated = acc[i].count
		}
	}
	for _, p := range queue {
		res.Forecasts = append(res.Forecasts, Forecast{
			Predictor: e.Predictors[p.predictor].Name(),
			From:      p.from,
			Value:     p.value,
		})
	}
	logx.WithContext(ctx).Infof("forecast: %d steps, %d evaluated (minTrain=%d horizon=%d)",
		res.Steps, res.Evaluated, minTrain, horizon)

	if e.OutputPath != "" {
		if err := writeReport(e.OutputPath, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func writeReport(path string, r *Result) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("forecast: write report: %w", err)
	}
	return nil
}

// DefaultPredictors returns the predictor set used by the forecast command.
func DefaultPredictors(tsfPeriod, emaPeriod int) []Predictor {
	return []Predictor{
		Naive{},
		RSIRegression{},
		TSF{Period: tsfPeriod},
		EMA{Period: emaPeriod},
	}
}

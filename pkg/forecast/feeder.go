package forecast

import (
	"context"
	"io"
	"os"
	"time"

	"marketpipe/pkg/report"
)

// Observation is one bar used by the forecast harness.
type Observation struct {
	Time   time.Time
	Close  float64
	RSI    float64
	HasRSI bool
}

// Feeder yields observations oldest first.
type Feeder interface {
	Next(ctx context.Context) (*Observation, bool, error)
}

// SliceFeeder emits observations from memory.
type SliceFeeder struct {
	obs []Observation
	idx int
}

func NewSliceFeeder(obs []Observation) *SliceFeeder {
	return &SliceFeeder{obs: obs}
}

func (f *SliceFeeder) Next(ctx context.Context) (*Observation, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if f.idx >= len(f.obs) {
		return nil, false, nil
	}
	o := f.obs[f.idx]
	f.idx++
	return &o, true, nil
}

// NewCSVFeederFromFile reads a pipeline CSV from path.
func NewCSVFeederFromFile(path string) (*SliceFeeder, []report.DataQualityWarning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return NewCSVFeeder(f, path)
}

// NewCSVFeeder parses a pipeline CSV (timestamp, close and RSI columns are
// required). Rows without a close are skipped.
func NewCSVFeeder(r io.Reader, name string) (*SliceFeeder, []report.DataQualityWarning, error) {
	points, warnings, err := report.ReadCSV(r, name)
	if err != nil {
		return nil, warnings, err
	}
	return NewSliceFeeder(FromPoints(points)), warnings, nil
}

// FromPoints converts report points into observations.
func FromPoints(points []report.Point) []Observation {
	out := make([]Observation, 0, len(points))
	for _, p := range points {
		if !p.Close.Valid {
			continue
		}
		o := Observation{Time: p.Time, Close: p.Close.Decimal.InexactFloat64()}
		if p.RSI.Valid {
			o.RSI = p.RSI.Decimal.InexactFloat64()
			o.HasRSI = true
		}
		out = append(out, o)
	}
	return out
}

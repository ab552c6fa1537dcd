package pipeline

import (
	"errors"
	"fmt"
)

// Stage names the step of a run that failed.
type Stage string

const (
	StageCandles   Stage = "candles"
	StageIndicator Stage = "indicator"
	StageFunding   Stage = "funding"
	StageMerge     Stage = "merge"
	StagePersist   Stage = "persist"
)

// PipelineError wraps a stage failure. Error() is the message shown to users;
// the underlying cause stays reachable through Unwrap.
type PipelineError struct {
	Stage  Stage
	Symbol string
	Err    error
}

func (e *PipelineError) Error() string {
	switch e.Stage {
	case StageCandles:
		return fmt.Sprintf("unable to fetch data for %s", e.Symbol)
	case StageIndicator:
		return fmt.Sprintf("unable to compute RSI for %s", e.Symbol)
	case StageFunding:
		return fmt.Sprintf("unable to fetch funding rate for %s", e.Symbol)
	case StageMerge:
		return fmt.Sprintf("unable to merge series for %s", e.Symbol)
	default:
		return fmt.Sprintf("unable to persist data for %s", e.Symbol)
	}
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage when err carries a PipelineError.
func StageOf(err error) (Stage, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage, true
	}
	return "", false
}

// Package pipeline runs one ingestion pass: fetch candles, compute RSI, fetch
// funding, left-join by timestamp and persist. Stages run in order and the
// first failure aborts the run before anything is written.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"marketpipe/pkg/journal"
	"marketpipe/pkg/market"
	"marketpipe/pkg/market/indicators"
	"marketpipe/pkg/series"
)

const (
	DefaultLimit  = 240
	DefaultWindow = 14
)

// Sink stores a finished frame and returns where it went.
type Sink interface {
	Persist(ctx context.Context, symbol string, frame *series.Frame) (string, error)
}

// Persistence mirrors a finished frame into secondary storage. Failures are
// logged by the pipeline and never fail the run.
type Persistence interface {
	RecordSeries(ctx context.Context, symbol, interval string, frame *series.Frame) error
}

// Journal records the outcome of every run.
type Journal interface {
	WriteRun(rec *journal.RunRecord) (string, error)
}

// Request selects what a run fetches.
type Request struct {
	Symbol   string
	Interval string
	Limit    int
	Window   int
}

// Result describes a completed run.
type Result struct {
	Path        string
	Rows        int
	FundingRows int
	Frame       *series.Frame
}

// Pipeline wires a market source to a sink.
type Pipeline struct {
	source      market.Source
	sink        Sink
	persistence Persistence
	journal     Journal
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPersistence installs a post-persist mirror hook.
func WithPersistence(p Persistence) Option {
	return func(pl *Pipeline) { pl.persistence = p }
}

// WithJournal records each run through j.
func WithJournal(j Journal) Option {
	return func(pl *Pipeline) { pl.journal = j }
}

// WithClock overrides the clock used for run timing.
func WithClock(now func() time.Time) Option {
	return func(pl *Pipeline) {
		if now != nil {
			pl.now = now
		}
	}
}

// New constructs a pipeline.
func New(source market.Source, sink Sink, opts ...Option) *Pipeline {
	p := &Pipeline{source: source, sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one ingestion pass.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	req = req.withDefaults()
	started := p.now()
	logger := logx.WithContext(ctx)

	res, fundingRows, err := p.run(ctx, req)
	rec := &journal.RunRecord{
		Symbol:      req.Symbol,
		Interval:    req.Interval,
		Limit:       req.Limit,
		Window:      req.Window,
		FundingRows: fundingRows,
		Duration:    p.now().Sub(started),
		Success:     err == nil,
	}
	if err != nil {
		if stage, ok := StageOf(err); ok {
			rec.FailedStage = string(stage)
		}
		rec.ErrorMessage = err.Error()
		logger.Errorf("pipeline: symbol=%s interval=%s failed: %v: %v", req.Symbol, req.Interval, err, errors.Unwrap(err))
		p.writeJournal(ctx, rec)
		return nil, err
	}

	rec.Rows = res.Rows
	rec.OutputPath = res.Path
	if p.persistence != nil {
		if perr := p.persistence.RecordSeries(ctx, req.Symbol, req.Interval, res.Frame); perr != nil {
			logger.Errorf("pipeline: mirror series symbol=%s err=%v", req.Symbol, perr)
		}
	}
	p.writeJournal(ctx, rec)
	logger.Infof("pipeline: symbol=%s interval=%s rows=%d funding=%d path=%s", req.Symbol, req.Interval, res.Rows, fundingRows, res.Path)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req Request) (*Result, int, error) {
	fail := func(stage Stage, err error) error {
		return &PipelineError{Stage: stage, Symbol: req.Symbol, Err: err}
	}

	candles, err := p.source.FetchCandles(ctx, req.Symbol, req.Interval, req.Limit)
	if err != nil {
		return nil, 0, fail(StageCandles, err)
	}

	annotated := CandleFrame(candles)
	rsi := indicators.NullRSI(market.Closes(candles), req.Window)
	if err := annotated.AddColumn(ColumnRSI, rsi); err != nil {
		return nil, 0, fail(StageIndicator, err)
	}

	rates, err := p.source.FetchFundingRate(ctx, req.Symbol)
	if err != nil {
		return nil, 0, fail(StageFunding, err)
	}

	combined, err := series.LeftJoin(annotated, FundingFrame(rates))
	if err != nil {
		return nil, len(rates), fail(StageMerge, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, len(rates), fail(StagePersist, err)
	}
	path, err := p.sink.Persist(ctx, req.Symbol, combined)
	if err != nil {
		return nil, len(rates), fail(StagePersist, err)
	}
	return &Result{Path: path, Rows: combined.Len(), FundingRows: len(rates), Frame: combined}, len(rates), nil
}

func (p *Pipeline) writeJournal(ctx context.Context, rec *journal.RunRecord) {
	if p.journal == nil {
		return
	}
	if _, err := p.journal.WriteRun(rec); err != nil {
		logx.WithContext(ctx).Errorf("pipeline: journal write failed: %v", err)
	}
}

func (r Request) withDefaults() Request {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	r.Interval = strings.TrimSpace(r.Interval)
	if r.Limit == 0 {
		r.Limit = DefaultLimit
	}
	if r.Window <= 0 {
		r.Window = DefaultWindow
	}
	return r
}

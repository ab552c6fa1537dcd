// Package seriespersist mirrors merged market series into Postgres and keeps
// the newest row in Redis for cheap lookups.
package seriespersist

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "marketpipe/internal/cache"
	"marketpipe/pkg/pipeline"
	"marketpipe/pkg/series"
)

var _ pipeline.Persistence = (*Service)(nil)

// persistedColumns lists the frame columns stored per row, in statement order.
var persistedColumns = []string{
	pipeline.ColumnOpen,
	pipeline.ColumnHigh,
	pipeline.ColumnLow,
	pipeline.ColumnClose,
	pipeline.ColumnVolume,
	pipeline.ColumnRSI,
	pipeline.ColumnFundingRate,
}

const upsertSeriesStmt = `
INSERT INTO public.market_series (
    provider, symbol, bar_interval, ts, open, high, low, close, volume, rsi, funding_rate, created_at, updated_at
)
SELECT $1, $2, $3, u.ts, u.open, u.high, u.low, u.close, u.volume, u.rsi, u.funding_rate, NOW(), NOW()
FROM unnest(
    $4::timestamptz[], $5::numeric[], $6::numeric[], $7::numeric[], $8::numeric[], $9::numeric[], $10::numeric[], $11::numeric[]
) AS u(ts, open, high, low, close, volume, rsi, funding_rate)
ON CONFLICT (provider, symbol, bar_interval, ts) DO UPDATE SET
    open = EXCLUDED.open,
    high = EXCLUDED.high,
    low = EXCLUDED.low,
    close = EXCLUDED.close,
    volume = EXCLUDED.volume,
    rsi = EXCLUDED.rsi,
    funding_rate = EXCLUDED.funding_rate,
    updated_at = NOW();`

const insertRunStmt = `
INSERT INTO public.market_series_runs (provider, symbol, bar_interval, row_count, first_ts, last_ts, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

// Service implements pipeline.Persistence.
type Service struct {
	sqlConn  sqlx.SqlConn
	cache    gocache.Cache
	ttl      cachekeys.TTLSet
	provider string
	now      func() time.Time
}

// Config enumerates the collaborators of the mirror. Either store may be nil.
type Config struct {
	SQLConn  sqlx.SqlConn
	Cache    gocache.Cache
	TTL      cachekeys.TTLSet
	Provider string
}

// NewService wires a series mirror. Returns nil when no store is configured.
func NewService(cfg Config) pipeline.Persistence {
	if cfg.SQLConn == nil && cfg.Cache == nil {
		return nil
	}
	provider := strings.TrimSpace(cfg.Provider)
	if provider == "" {
		provider = "binance"
	}
	return &Service{
		sqlConn:  cfg.SQLConn,
		cache:    cfg.Cache,
		ttl:      cfg.TTL,
		provider: provider,
		now:      time.Now,
	}
}

// RecordSeries upserts every row of frame and caches the newest one. The
// SQL error, if any, is returned after the cache has been refreshed.
func (s *Service) RecordSeries(ctx context.Context, symbol, interval string, frame *series.Frame) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if s == nil || symbol == "" || frame.Len() == 0 {
		return nil
	}
	var err error
	if s.sqlConn != nil {
		err = s.upsertRows(ctx, symbol, interval, frame)
	}
	s.cacheLatest(ctx, symbol, interval, frame)
	return err
}

func (s *Service) upsertRows(ctx context.Context, symbol, interval string, frame *series.Frame) error {
	ts, columns := seriesArrays(frame)
	args := make([]any, 0, 3+1+len(columns))
	args = append(args, s.provider, symbol, interval, pq.Array(ts))
	for _, col := range columns {
		args = append(args, pq.Array(col))
	}
	first, last := frame.Index[0].UTC(), frame.Index[frame.Len()-1].UTC()

	return s.sqlConn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		if _, err := session.ExecCtx(ctx, upsertSeriesStmt, args...); err != nil {
			return fmt.Errorf("seriespersist: upsert market_series: %w", err)
		}
		if _, err := session.ExecCtx(ctx, insertRunStmt, s.provider, symbol, interval, frame.Len(), first, last, s.now().UTC()); err != nil {
			return fmt.Errorf("seriespersist: insert market_series_runs: %w", err)
		}
		return nil
	})
}

// seriesArrays transposes frame into one text array per persisted column.
// Missing columns and null cells become SQL NULLs.
func seriesArrays(frame *series.Frame) ([]string, [][]sql.NullString) {
	ts := make([]string, frame.Len())
	for i, t := range frame.Index {
		ts[i] = t.UTC().Format(time.RFC3339Nano)
	}
	columns := make([][]sql.NullString, len(persistedColumns))
	for c, name := range persistedColumns {
		values := make([]sql.NullString, frame.Len())
		if idx := frame.ColumnIndex(name); idx >= 0 {
			for i, row := range frame.Rows {
				if v := row[idx]; v.Valid {
					values[i] = sql.NullString{String: v.Decimal.String(), Valid: true}
				}
			}
		}
		columns[c] = values
	}
	return ts, columns
}

func (s *Service) cacheLatest(ctx context.Context, symbol, interval string, frame *series.Frame) {
	if s.cache == nil {
		return
	}
	ttl := cachekeys.SeriesLatestTTL(s.ttl)
	if ttl <= 0 {
		return
	}
	ts, row, ok := frame.Last()
	if !ok {
		return
	}
	payload := map[string]any{
		"provider":    s.provider,
		"symbol":      symbol,
		"interval":    interval,
		"timestamp":   ts.UTC().Format(time.RFC3339),
		"rows":        frame.Len(),
		"recorded_at": s.now().UTC().UnixMilli(),
	}
	for i, name := range frame.Columns {
		if row[i].Valid {
			payload[name] = row[i].Decimal.String()
		} else {
			payload[name] = nil
		}
	}
	key := cachekeys.SeriesLatestKey(s.provider, symbol, interval)
	if err := s.cache.SetWithExpireCtx(ctx, key, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("seriespersist: cache latest key=%s err=%v", key, err)
	}
}

package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"marketpipe/pkg/market"
)

// MaxKlineLimit is the largest page the klines endpoint serves.
const MaxKlineLimit = 1000

// intervalDurations lists the accepted granularities. Join keys are minute
// resolution, so the exchange's sub-minute "1s" bars are not accepted.
var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  3 * 24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
	"1M":  30 * 24 * time.Hour,
}

// ValidInterval reports whether interval is one of the exchange granularities.
func ValidInterval(interval string) bool {
	_, ok := intervalDurations[interval]
	return ok
}

// IntervalDuration returns the nominal length of interval ("1M" counts 30 days).
func IntervalDuration(interval string) (time.Duration, bool) {
	d, ok := intervalDurations[interval]
	return d, ok
}

// FetchCandles implements market.Source.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if !ValidInterval(interval) {
		return nil, fmt.Errorf("%w: unsupported interval %q", market.ErrInvalidRequest, interval)
	}
	if limit <= 0 || limit > MaxKlineLimit {
		return nil, fmt.Errorf("%w: limit must be in 1..%d, got %d", market.ErrInvalidRequest, MaxKlineLimit, limit)
	}

	query := url.Values{}
	query.Set("symbol", sym)
	query.Set("interval", interval)
	query.Set("limit", strconv.Itoa(limit))

	var response KlineResponse
	if err := c.doGet(ctx, sym, c.baseURL, klinesPath, query, &response); err != nil {
		return nil, err
	}

	candles := make([]market.Candle, 0, len(response))
	for i, row := range response {
		candle, err := parseKlineRow(row)
		if err != nil {
			return nil, &market.UpstreamFetchError{Symbol: sym, Endpoint: klinesPath, Err: fmt.Errorf("row %d: %w", i, err)}
		}
		candles = append(candles, candle)
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	logx.WithContext(ctx).Debugf("binance: fetched %d klines symbol=%s interval=%s", len(candles), sym, interval)
	return candles, nil
}

func parseKlineRow(row KlineRow) (market.Candle, error) {
	if len(row) < klineFieldCount {
		return market.Candle{}, fmt.Errorf("expected %d fields, got %d", klineFieldCount, len(row))
	}
	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return market.Candle{}, fmt.Errorf("parse open time: %w", err)
	}
	values := make([]decimal.Decimal, 5)
	names := [...]string{"open", "high", "low", "close", "volume"}
	for i := range values {
		d, err := parseDecimalField(row[i+1])
		if err != nil {
			return market.Candle{}, fmt.Errorf("parse %s: %w", names[i], err)
		}
		values[i] = d
	}
	return market.Candle{
		Time:   market.TimeFromMillis(openTime),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}

// parseDecimalField accepts Binance's quoted decimals and tolerates bare numbers.
func parseDecimalField(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err2 := json.Unmarshal(raw, &n); err2 != nil {
			return decimal.Decimal{}, err
		}
		s = n.String()
	}
	return decimal.NewFromString(s)
}

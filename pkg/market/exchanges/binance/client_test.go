package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpipe/pkg/market"
)

const baseOpenTime = int64(1_700_000_000_000) // 2023-11-14T22:13:20Z

// klineRowPayload builds a 12-field kline row the way the exchange serialises it.
func klineRowPayload(openTime int64, close float64) []interface{} {
	px := strconv.FormatFloat(close, 'f', 8, 64)
	return []interface{}{
		openTime,
		px,
		strconv.FormatFloat(close+1, 'f', 8, 64),
		strconv.FormatFloat(close-1, 'f', 8, 64),
		px,
		"1234.50000000",
		openTime + 59_999,
		"0",
		42,
		"0",
		"0",
		"0",
	}
}

type mockExchange struct {
	server      *httptest.Server
	klineHits   atomic.Int32
	fundingHits atomic.Int32
	lastQuery   atomic.Value
}

func newMockExchange(t *testing.T, klines [][]interface{}, funding []map[string]interface{}) *mockExchange {
	t.Helper()
	m := &mockExchange{}
	mux := http.NewServeMux()
	mux.HandleFunc(klinesPath, func(w http.ResponseWriter, r *http.Request) {
		m.klineHits.Add(1)
		m.lastQuery.Store(r.URL.Query().Encode())
		if r.URL.Query().Get("symbol") == "BADUSDT" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]interface{}{"code": -1121, "msg": "Invalid symbol."})
			return
		}
		writeJSON(w, klines)
	})
	mux.HandleFunc(fundingRatePath, func(w http.ResponseWriter, r *http.Request) {
		m.fundingHits.Add(1)
		writeJSON(w, funding)
	})
	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockExchange) client(opts ...Option) *Client {
	base := []Option{WithBaseURL(m.server.URL), WithFuturesBaseURL(m.server.URL)}
	return NewClient(append(base, opts...)...)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func TestClientFetchCandles(t *testing.T) {
	rows := [][]interface{}{
		klineRowPayload(baseOpenTime+2*60_000, 102),
		klineRowPayload(baseOpenTime, 100),
		klineRowPayload(baseOpenTime+60_000, 101),
	}
	mock := newMockExchange(t, rows, nil)

	candles, err := mock.client().FetchCandles(context.Background(), "solusdt", "1m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.True(t, candles[0].Time.Before(candles[1].Time))
	assert.Equal(t, "101", candles[0].Close.String())
	assert.Equal(t, "102", candles[1].Close.String())
	assert.Equal(t, "103", candles[1].High.String())
	assert.Equal(t, "1234.5", candles[1].Volume.String())
	assert.Equal(t, time.UTC, candles[0].Time.Location())
	assert.Zero(t, candles[0].Time.Second())

	query, _ := mock.lastQuery.Load().(string)
	assert.Equal(t, "interval=1m&limit=2&symbol=SOLUSDT", query)
}

func TestClientFetchCandlesSortedWithinLimit(t *testing.T) {
	rows := make([][]interface{}, 0, 30)
	for i := 29; i >= 0; i-- {
		rows = append(rows, klineRowPayload(baseOpenTime+int64(i)*3_600_000, float64(100+i)))
	}
	mock := newMockExchange(t, rows, nil)

	candles, err := mock.client().FetchCandles(context.Background(), "BTCUSDT", "1h", 30)
	require.NoError(t, err)
	require.Len(t, candles, 30)
	for i := 1; i < len(candles); i++ {
		require.False(t, candles[i].Time.Before(candles[i-1].Time), "row %d out of order", i)
	}
}

func TestClientFetchCandlesHTTPError(t *testing.T) {
	mock := newMockExchange(t, nil, nil)

	_, err := mock.client().FetchCandles(context.Background(), "BADUSDT", "1h", 10)
	require.Error(t, err)

	var upstream *market.UpstreamFetchError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusBadRequest, upstream.StatusCode)
	assert.Equal(t, "BADUSDT", upstream.Symbol)
	assert.Equal(t, klinesPath, upstream.Endpoint)
	assert.Contains(t, err.Error(), "Invalid symbol.")
}

func TestClientFetchCandlesRejectsInvalidInputs(t *testing.T) {
	mock := newMockExchange(t, nil, nil)
	client := mock.client()
	ctx := context.Background()

	tests := []struct {
		name     string
		symbol   string
		interval string
		limit    int
	}{
		{name: "empty symbol", symbol: " ", interval: "1h", limit: 10},
		{name: "unknown interval", symbol: "BTCUSDT", interval: "7m", limit: 10},
		{name: "sub-minute interval", symbol: "BTCUSDT", interval: "1s", limit: 3},
		{name: "zero limit", symbol: "BTCUSDT", interval: "1h", limit: 0},
		{name: "limit above page size", symbol: "BTCUSDT", interval: "1h", limit: MaxKlineLimit + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.FetchCandles(ctx, tt.symbol, tt.interval, tt.limit)
			require.ErrorIs(t, err, market.ErrInvalidRequest)
		})
	}
	assert.EqualValues(t, 0, mock.klineHits.Load(), "invalid requests must not reach the network")
}

func TestClientFetchCandlesMalformedRow(t *testing.T) {
	rows := [][]interface{}{{baseOpenTime, "1", "2"}}
	mock := newMockExchange(t, rows, nil)

	_, err := mock.client().FetchCandles(context.Background(), "BTCUSDT", "1h", 10)
	require.Error(t, err)
	assert.True(t, market.IsUpstream(err))
	assert.Contains(t, err.Error(), "expected 12 fields")
}

func TestClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(WithBaseURL(url), WithFuturesBaseURL(url))
	_, err := client.FetchFundingRate(context.Background(), "BTCUSDT")
	require.Error(t, err)

	var upstream *market.UpstreamFetchError
	require.True(t, errors.As(err, &upstream))
	assert.Zero(t, upstream.StatusCode)
	assert.Equal(t, fundingRatePath, upstream.Endpoint)
}

func TestClientTimeoutIsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
	)
	_, err := client.FetchCandles(context.Background(), "BTCUSDT", "1m", 5)
	require.Error(t, err)
	assert.True(t, market.IsUpstream(err))
}

func TestClientRetriesWhenConfigured(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, [][]interface{}{klineRowPayload(baseOpenTime, 100)})
	}))
	defer server.Close()

	candles, err := NewClient(WithBaseURL(server.URL), WithMaxRetries(1)).FetchCandles(context.Background(), "BTCUSDT", "1m", 1)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.EqualValues(t, 2, hits.Load())
}

func TestClientNoRetryByDefault(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(WithBaseURL(server.URL)).FetchCandles(context.Background(), "BTCUSDT", "1m", 1)
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestClientFetchFundingRate(t *testing.T) {
	funding := []map[string]interface{}{
		{"symbol": "SOLUSDT", "fundingTime": baseOpenTime + 8*3_600_000 + 3, "fundingRate": "-0.00012000", "markPrice": "60.1"},
		{"symbol": "SOLUSDT", "fundingTime": baseOpenTime + 1, "fundingRate": "0.00010000", "markPrice": "59.9"},
	}
	mock := newMockExchange(t, nil, funding)

	rates, err := mock.client().FetchFundingRate(context.Background(), "SOLUSDT")
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, market.TimeFromMillis(baseOpenTime), rates[0].Time)
	assert.Equal(t, "0.0001", rates[0].Rate.String())
	assert.Equal(t, "-0.00012", rates[1].Rate.String())
	assert.EqualValues(t, 1, mock.fundingHits.Load())
	assert.EqualValues(t, 0, mock.klineHits.Load())
}

func TestClientFetchFundingRateMalformed(t *testing.T) {
	funding := []map[string]interface{}{{"fundingTime": baseOpenTime, "fundingRate": "n/a"}}
	mock := newMockExchange(t, nil, funding)

	_, err := mock.client().FetchFundingRate(context.Background(), "SOLUSDT")
	require.Error(t, err)
	assert.True(t, market.IsUpstream(err))
}

func TestValidIntervalsAreMinuteResolution(t *testing.T) {
	assert.False(t, ValidInterval("1s"))
	for interval, d := range intervalDurations {
		assert.Zero(t, d%time.Minute, interval)
	}
	for _, interval := range []string{"1m", "1h", "1d", "1M"} {
		assert.True(t, ValidInterval(interval), interval)
	}
}

func TestClientFetchCandlesDistinctMinuteKeys(t *testing.T) {
	start := baseOpenTime - baseOpenTime%60_000
	klines := [][]interface{}{
		klineRowPayload(start, 1),
		klineRowPayload(start+60_000, 2),
		klineRowPayload(start+120_000, 3),
	}
	mock := newMockExchange(t, klines, nil)

	candles, err := mock.client().FetchCandles(context.Background(), "BTCUSDT", "1m", 3)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	for i := 1; i < len(candles); i++ {
		require.NotEqual(t, candles[i-1].Time, candles[i].Time)
	}
}

func TestCandleAndFundingKeysAlign(t *testing.T) {
	// Candle open times are exact minutes while funding times carry a few ms of jitter.
	candleKey := market.TimeFromMillis(baseOpenTime - baseOpenTime%60_000)
	fundingKey := market.TimeFromMillis(baseOpenTime - baseOpenTime%60_000 + 7)
	assert.True(t, candleKey.Equal(fundingKey))
}

func TestNewClientOptions(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	c := NewClient(WithHTTPClient(hc), WithBaseURL("https://spot.test/"), WithFuturesBaseURL("https://fut.test"), WithMaxRetries(2))
	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, "https://spot.test", c.baseURL)
	assert.Equal(t, "https://fut.test", c.futuresBaseURL)
	assert.Equal(t, 2, c.maxRetries)

	d := NewClient(WithHTTPClient(nil), WithBaseURL(""), WithMaxRetries(-1))
	assert.Equal(t, defaultBaseURL, d.baseURL)
	assert.Equal(t, defaultHTTPTimeout, d.httpClient.Timeout)
	assert.Zero(t, d.maxRetries)
}

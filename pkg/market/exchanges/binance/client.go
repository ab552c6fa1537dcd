package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketpipe/pkg/market"
)

const (
	defaultBaseURL          = "https://api.binance.com"
	defaultFuturesBaseURL   = "https://fapi.binance.com"
	defaultHTTPTimeout      = 10 * time.Second
	defaultRetryBackoffBase = 150 * time.Millisecond

	klinesPath      = "/api/v3/klines"
	fundingRatePath = "/fapi/v1/fundingRate"
)

// Client wraps access to the Binance public spot and futures REST endpoints.
type Client struct {
	baseURL        string
	futuresBaseURL string
	httpClient     *http.Client
	maxRetries     int
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the spot API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithFuturesBaseURL overrides the USD-M futures API host.
func WithFuturesBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.futuresBaseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithMaxRetries adjusts the retry budget. The default is zero: failures
// surface to the caller immediately.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// NewClient constructs a Binance API client.
func NewClient(opts ...Option) *Client {
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	client := &Client{
		baseURL:        defaultBaseURL,
		futuresBaseURL: defaultFuturesBaseURL,
		httpClient:     httpClient,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = httpClient
	}
	return client
}

// doGet issues a GET against base+path and decodes the JSON body into result.
// Every failure is reported as *market.UpstreamFetchError.
func (c *Client) doGet(ctx context.Context, symbol, base, path string, query url.Values, result interface{}) error {
	endpoint := base + path
	fail := func(status int, err error) error {
		return &market.UpstreamFetchError{Symbol: symbol, Endpoint: path, StatusCode: status, Err: err}
	}
	target := endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	backoff := defaultRetryBackoffBase
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return fail(0, fmt.Errorf("build request: %w", err))
		}
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return fail(0, ctx.Err())
			}
			lastErr = fail(0, err)
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fail(resp.StatusCode, fmt.Errorf("read response: %w", readErr))
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				lastErr = fail(resp.StatusCode, describeAPIError(body))
			default:
				if result != nil {
					if err := json.Unmarshal(body, result); err != nil {
						return fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
					}
				}
				return nil
			}
		}

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return fail(0, ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return fail(0, errors.New("request failed without error detail"))
}

func describeAPIError(body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Msg != "" {
		return fmt.Errorf("binance error %d: %s", apiErr.Code, apiErr.Msg)
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 256 {
		text = text[:256]
	}
	if text == "" {
		return errors.New("empty response body")
	}
	return errors.New(text)
}

func normalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", fmt.Errorf("%w: symbol must not be empty", market.ErrInvalidRequest)
	}
	return s, nil
}

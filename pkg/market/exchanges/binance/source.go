package binance

import (
	"net/http"

	"marketpipe/pkg/market"
)

var _ market.Source = (*Client)(nil)

func init() {
	market.RegisterSource("binance", func(name string, cfg *market.ProviderConfig) (market.Source, error) {
		opts := []Option{
			WithBaseURL(cfg.BaseURL),
			WithFuturesBaseURL(cfg.FuturesBaseURL),
		}
		if cfg.HTTPTimeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		if cfg.MaxRetries > 0 {
			opts = append(opts, WithMaxRetries(cfg.MaxRetries))
		}
		return NewClient(opts...), nil
	})
}

package binance

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"marketpipe/pkg/market"
)

// FetchFundingRate implements market.Source. The exchange decides the window;
// no limit or time range is sent.
func (c *Client) FetchFundingRate(ctx context.Context, symbol string) ([]market.FundingRate, error) {
	sym, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("symbol", sym)

	var response FundingRateResponse
	if err := c.doGet(ctx, sym, c.futuresBaseURL, fundingRatePath, query, &response); err != nil {
		return nil, err
	}

	rates := make([]market.FundingRate, 0, len(response))
	for i, entry := range response {
		rate, err := decimal.NewFromString(entry.FundingRate)
		if err != nil {
			return nil, &market.UpstreamFetchError{
				Symbol:   sym,
				Endpoint: fundingRatePath,
				Err:      fmt.Errorf("entry %d: parse funding rate %q: %w", i, entry.FundingRate, err),
			}
		}
		rates = append(rates, market.FundingRate{
			Time: market.TimeFromMillis(entry.FundingTime),
			Rate: rate,
		})
	}

	sort.SliceStable(rates, func(i, j int) bool {
		return rates[i].Time.Before(rates[j].Time)
	})

	logx.WithContext(ctx).Debugf("binance: fetched %d funding events symbol=%s", len(rates), sym)
	return rates, nil
}

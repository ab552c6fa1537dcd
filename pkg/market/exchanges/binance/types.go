package binance

import "encoding/json"

// klineFieldCount is the width of a /api/v3/klines row:
// open time, open, high, low, close, volume, close time, quote volume,
// trade count, taker buy base volume, taker buy quote volume, ignore.
const klineFieldCount = 12

// KlineResponse mirrors the payload returned by /api/v3/klines.
type KlineResponse []KlineRow

// KlineRow is one positional kline array. Only the first six fields are consumed.
type KlineRow []json.RawMessage

// FundingRateResponse mirrors the payload returned by /fapi/v1/fundingRate.
type FundingRateResponse []FundingRateEntry

// FundingRateEntry is one funding event.
type FundingRateEntry struct {
	Symbol      string `json:"symbol"`
	FundingTime int64  `json:"fundingTime"` // ms
	FundingRate string `json:"fundingRate"`
	MarkPrice   string `json:"markPrice"`
}

// APIError is the error envelope Binance returns alongside 4xx statuses.
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

package config

import (
	"time"

	marketpkg "marketpipe/pkg/market"
)

// Location returns the display timezone for persisted timestamps.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// MarketConfig returns the hydrated market section, or the public Binance
// defaults when none was configured.
func (c *Config) MarketConfig() *marketpkg.Config {
	return c.Market.Or(marketpkg.DefaultConfig)
}

// PostgresEnabled reports whether a DSN is configured.
func (c *Config) PostgresEnabled() bool {
	return c.Postgres.DSN != ""
}

// RedisEnabled reports whether a Redis host is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

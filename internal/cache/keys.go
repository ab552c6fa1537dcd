package cache

import (
	"strings"
	"time"

	"marketpipe/internal/config"
)

// Namespace is the Redis key prefix for the application.
const Namespace = "marketpipe"

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Latest time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations. A negative
// value disables the entry; zero falls back to the default.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Latest: durationOrDefault(cfg.Latest, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// SeriesLatestKey holds the newest merged row for symbol at interval.
func SeriesLatestKey(provider, symbol, interval string) string {
	return formatKey("series", "latest", provider, strings.ToUpper(symbol), interval)
}

// SeriesLatestTTL returns the TTL for latest-row payloads.
func SeriesLatestTTL(ttl TTLSet) time.Duration {
	return ttl.Latest
}

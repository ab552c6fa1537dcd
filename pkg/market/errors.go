package market

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks requests rejected before any network call.
var ErrInvalidRequest = errors.New("market: invalid request")

// UpstreamFetchError reports a transport failure or a non-success HTTP status
// from the exchange. It is never retried by callers.
type UpstreamFetchError struct {
	Symbol     string
	Endpoint   string
	StatusCode int // zero when the request never produced a response
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("market: fetch %s for %s: http status %d: %v", e.Endpoint, e.Symbol, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("market: fetch %s for %s: %v", e.Endpoint, e.Symbol, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err carries an UpstreamFetchError.
func IsUpstream(err error) bool {
	var target *UpstreamFetchError
	return errors.As(err, &target)
}

package cli

import (
	"errors"
	"fmt"

	"marketpipe/pkg/market"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ConfigurationError reports missing or invalid invocation arguments or
// configuration. It is raised before any network or file output.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) || errors.Is(err, market.ErrInvalidRequest) {
		return ExitUsage
	}
	return ExitFailure
}

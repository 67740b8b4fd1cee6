package store

import (
	"fmt"
	"strings"
)

// ConfigurationError is returned by Load when there is nothing to start
// from. It wraps data.ErrMissingHistory.
type ConfigurationError struct {
	Tried []string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v (tried: %s)", e.Err, strings.Join(e.Tried, ", "))
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

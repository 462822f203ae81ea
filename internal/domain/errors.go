package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ProviderAllFailed is the sentinel provider name reported when every
// candidate provider exhausted its retry budget.
const ProviderAllFailed = "all_failed"

// ErrMissingInput indicates a call supplied neither a prompt nor messages.
var ErrMissingInput = errors.New("either prompt or messages must be provided")

// ErrCacheMiss indicates no cached entry was found.
var ErrCacheMiss = errors.New("cache miss")

// UnknownProviderError indicates a name absent from the registry.
// Available carries all registered names sorted, for discoverability.
type UnknownProviderError struct {
	Name      string
	Available []string
}

func (e *UnknownProviderError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown provider %q (no providers registered)", e.Name)
	}
	return fmt.Sprintf("unknown provider %q, available: %s", e.Name, strings.Join(e.Available, ", "))
}

// errorKind classifies an error for ErrorRecord.ErrorType.
func errorKind(err error) string {
	var unknown *UnknownProviderError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "DeadlineExceeded"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.As(err, &unknown):
		return "UnknownProvider"
	default:
		return "ProviderError"
	}
}

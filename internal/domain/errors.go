package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrRequestNotFound = errors.New("request not found")
)

// AlreadyCleanedError is returned when cleanup is attempted on a request
// whose resources were already cleaned up. Cleanup is not idempotent by
// design: a second run is rejected, not silently repeated.
type AlreadyCleanedError struct {
	ID string
}

func (e *AlreadyCleanedError) Error() string {
	return fmt.Sprintf("request %q has already been cleaned up", e.ID)
}

// ValidationError is returned when a submitted spec is missing required
// fields or carries disallowed values. Raised before any remote call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid spec: %s: %s", e.Field, e.Reason)
}

// ProviderError is returned when the provider rejects or fails a remote
// call. It carries the provider's message so batch results stay readable.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Event   Event
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

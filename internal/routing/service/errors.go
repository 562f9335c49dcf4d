package service

import (
	"errors"
	"fmt"
)

// ErrNoEligibleAgent is returned when no agent services the property.
var ErrNoEligibleAgent = errors.New("no eligible agent services the property")

// RejectedError means the agent directory refused the request. It is not retried.
type RejectedError struct {
	Status int
	Reason string
	Err    error
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("assignment rejected (status %d)", e.Status)
	}
	return fmt.Sprintf("assignment rejected: %s", e.Reason)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// UnavailableError means the agent directory could not be reached, timed out,
// or failed on its side. Retrying with the same lead identifier is safe.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("agent directory unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err may succeed when the request is repeated.
func IsRetryable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

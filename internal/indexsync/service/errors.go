package service

import (
	"errors"
	"fmt"
)

// ErrMalformedEvent marks a change event that can never be applied.
var ErrMalformedEvent = errors.New("malformed change event")

// MalformedError describes why an event was rejected by the decoder.
type MalformedError struct {
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed change event: %s: %v", e.Reason, e.Err)
	}
	return "malformed change event: " + e.Reason
}

func (e *MalformedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedEvent, e.Err}
	}
	return []error{ErrMalformedEvent}
}

func malformed(reason string, err error) error {
	return &MalformedError{Reason: reason, Err: err}
}

// TransientError is a failure that may succeed when the event is redelivered.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

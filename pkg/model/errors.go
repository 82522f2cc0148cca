package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken means no persisted session token was found.
	ErrNoToken = errors.New("no session token found, run 'gdl auth' first")

	// ErrTokenExpired means the persisted token is past its expiry.
	ErrTokenExpired = errors.New("session token expired, run 'gdl auth' again")
)

// InvalidRangeError reports a malformed or inverted month specifier.
type InvalidRangeError struct {
	Spec   string
	Reason string
}

func (e *InvalidRangeError) Error() string {
	if e.Spec == "" {
		return fmt.Sprintf("invalid month range: %s", e.Reason)
	}
	return fmt.Sprintf("invalid month range %q: %s", e.Spec, e.Reason)
}

// AuthenticationError reports a missing, expired or rejected session token.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// FetchError reports a failed request for one (month, kind) pair.
type FetchError struct {
	Kind  MetricKind
	Month DateMonth
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Kind, e.Month, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError reports a local filesystem failure while writing an output file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

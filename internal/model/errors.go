package model

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The retry policy decides on Kind alone.
type Kind int

const (
	KindUnknown Kind = iota
	// KindCacheUnavailable is a local storage I/O failure.
	KindCacheUnavailable
	// KindUnauthorized is a rejected credential (401/403). Terminal.
	KindUnauthorized
	// KindNotFound is a 404 from the remote. Terminal.
	KindNotFound
	// KindNetwork is a transport failure: timeout, DNS, refused, reset.
	KindNetwork
	// KindServerError is a 5xx or an unreadable success body.
	KindServerError
	// KindClientError is any other 4xx. Terminal.
	KindClientError
	// KindNotAuthenticated means there is no active owner identity.
	KindNotAuthenticated
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindCacheUnavailable: "cache_unavailable",
	KindUnauthorized:     "unauthorized",
	KindNotFound:         "not_found",
	KindNetwork:          "network",
	KindServerError:      "server_error",
	KindClientError:      "client_error",
	KindNotAuthenticated: "not_authenticated",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", string(b))
}

// Retryable reports whether a failure of this kind is transient.
func (k Kind) Retryable() bool {
	return k == KindNetwork || k == KindServerError
}

// Error is a classified failure of a single operation.
type Error struct {
	Kind Kind
	// Op names the failing operation, e.g. "remote.fetch_today".
	Op string
	// Status is the HTTP status for remote failures, zero otherwise.
	Status int
	Err    error
}

// E builds a classified error.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNoOwner is the cause attached to NotAuthenticated failures.
var ErrNoOwner = errors.New("no authenticated owner")

// NotAuthenticated returns the short-circuit failure for op.
func NotAuthenticated(op string) error {
	return E(KindNotAuthenticated, op, ErrNoOwner)
}

// ExhaustedError is returned when a transient failure persisted through every
// attempt a retry policy allows.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("exhausted retries after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// KindOf extracts the Kind of err through any wrapping. An ExhaustedError
// reports the kind of its last cause.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsExhausted reports whether err is, or wraps, an ExhaustedError.
func IsExhausted(err error) bool {
	var e *ExhaustedError
	return errors.As(err, &e)
}

// AttemptsOf returns how many attempts produced err: the count carried by an
// ExhaustedError, otherwise one.
func AttemptsOf(err error) int {
	var e *ExhaustedError
	if errors.As(err, &e) {
		return e.Attempts
	}
	if err == nil {
		return 0
	}
	return 1
}

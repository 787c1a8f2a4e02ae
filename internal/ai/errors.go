package ai

import (
	"errors"
	"fmt"
)

// Kind classifies evaluator failures.
type Kind string

const (
	// KindConfiguration covers missing credentials or an unusable client. Never retried.
	KindConfiguration Kind = "configuration"
	// KindTransient covers network and API failures.
	KindTransient Kind = "transient"
	// KindEmptyResponse is a call that succeeded without any text. Handled like KindTransient.
	KindEmptyResponse Kind = "empty_response"
	// KindMalformedOutput is output that failed parsing even after repair.
	KindMalformedOutput Kind = "malformed_output"
)

// Error is a classified evaluator failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
	// Attempt is the attempt number the error was observed on, zero when unknown.
	Attempt int
	// Retryable reports whether another attempt may succeed.
	Retryable bool
}

// NewError classifies err. Configuration errors are never retryable.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{
		Kind:      kind,
		Op:        op,
		Err:       err,
		Retryable: kind != KindConfiguration,
	}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d)", msg, e.Attempt)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Annotate records the attempt number and the final retry verdict.
func (e *Error) Annotate(attempt int, retryable bool) {
	e.Attempt = attempt
	e.Retryable = retryable
}

// IsRetryable reports whether err is a classified failure worth another attempt.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}

// KindOf returns the kind of a classified failure or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

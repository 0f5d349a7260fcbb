// Package caseerr defines the failure taxonomy for apptest.
//
// Every failure a test case can produce maps to exactly one Kind. The kind
// is what the report prints next to a failed check and what decides whether
// a failure belongs to the case under test or to the harness itself.
package caseerr

import (
	"errors"
	"fmt"
)

// Kind is a stable failure category.
type Kind string

const (
	BinaryNotFound        Kind = "BINARY_NOT_FOUND"
	AmbiguousBinary       Kind = "AMBIGUOUS_BINARY"
	LaunchFailure         Kind = "LAUNCH_FAILURE"
	NonZeroExit           Kind = "NON_ZERO_EXIT"
	Timeout               Kind = "TIMEOUT"
	ToolExecutionError    Kind = "TOOL_EXECUTION_ERROR"
	GainBelowThreshold    Kind = "GAIN_BELOW_THRESHOLD"
	MalformedMetricOutput Kind = "MALFORMED_METRIC_OUTPUT"
	DiffMismatch          Kind = "DIFF_MISMATCH"
	InvalidCase           Kind = "INVALID_CASE"
	Unexpected            Kind = "UNEXPECTED"
	HarnessFault          Kind = "HARNESS_FAULT"
	Environment           Kind = "ENVIRONMENT"
)

// ExitCode returns the process exit code for a run whose worst failure
// has this kind.
func (k Kind) ExitCode() int {
	switch k {
	case "":
		return 0
	case HarnessFault:
		return 10
	case Environment, InvalidCase:
		return 2
	default:
		return 1
	}
}

// Error is the structured error type for case failures.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given kind and message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// Unexpected if there is none. A nil error has the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unexpected
}

// Message returns the message of the first *Error in err's chain without
// the kind prefix, or err.Error() for foreign errors.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

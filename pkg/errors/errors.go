// Package errors provides the error taxonomy shared by every geocore
// component: a closed set of error codes plus an AppError that carries a
// cause and zero or more suppressed causes (for "every linearizer threw"
// and "close one session, still close the rest" scenarios).
package errors

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorCode is one of the taxonomy kinds from the design's error model.
// It is a closed set: callers should switch on it rather than compare
// against ad-hoc sentinel errors.
type ErrorCode string

const (
	// CodeInvalidInput covers malformed grid sizes, duplicated dimensions
	// in projToGrid, and non-finite control-point coordinates.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	// CodeUnmodifiableState covers any mutator called after create/build.
	CodeUnmodifiableState ErrorCode = "UNMODIFIABLE_STATE"
	// CodeDimensionMismatch covers transform arity not matching the
	// configured coordinate system.
	CodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"
	// CodeMissingData covers no control points, or an unresolved grid file.
	CodeMissingData ErrorCode = "MISSING_DATA"
	// CodeMissingResource is a recoverable subtype of CodeMissingData:
	// "the grid file could not be located" is expected to be handled by
	// callers as a recoverable condition rather than a fatal assembly error.
	CodeMissingResource ErrorCode = "MISSING_RESOURCE"
	// CodeFitFailure covers every linearizer candidate throwing.
	CodeFitFailure ErrorCode = "FIT_FAILURE"
	// CodeConfigWarning is non-fatal: ellipsoid mismatch beyond tolerance,
	// duplicated sub-grid domain. Never raised alone; only attached to a
	// subsequent fatal error.
	CodeConfigWarning ErrorCode = "CONFIG_WARNING"
	// CodeTransientUnavailability covers a session-pool wait that timed out
	// or was interrupted.
	CodeTransientUnavailability ErrorCode = "TRANSIENT_UNAVAILABILITY"
	// CodeInternalInvariantViolation covers assertion failures such as
	// denominator-column arithmetic disagreeing between representations.
	CodeInternalInvariantViolation ErrorCode = "INTERNAL_INVARIANT_VIOLATION"
)

// AppError is the concrete error type returned by every geocore component.
type AppError struct {
	Code       ErrorCode
	Message    string
	Err        error
	Suppressed []error
	Details    map[string]interface{}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the primary cause to errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// UnwrapAll exposes the primary cause plus every suppressed cause, so
// errors.Is/errors.As (which use the single-error Unwrap above) still work
// while callers wanting every attached cause can use this explicitly.
func (e *AppError) UnwrapAll() []error {
	all := make([]error, 0, 1+len(e.Suppressed))
	if e.Err != nil {
		all = append(all, e.Err)
	}
	all = append(all, e.Suppressed...)
	return all
}

// New creates an AppError with no wrapped cause.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap creates an AppError wrapping err. err may be nil, in which case the
// result behaves like New.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// WithSuppressed attaches additional causes that should be reported
// alongside the primary one without replacing it (e.g. the collected
// linearizer failures, or the remaining session-close errors after the
// first one is rethrown).
func (e *AppError) WithSuppressed(causes ...error) *AppError {
	for _, c := range causes {
		if c != nil {
			e.Suppressed = append(e.Suppressed, c)
		}
	}
	return e
}

// WithDetails attaches a diagnostic key/value pair, e.g. the kernel name
// and the "AD -> tr(BD->CD) -> ED" arity summary for a CannotAssociateCS
// failure.
func (e *AppError) WithDetails(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Format supports "%+v" to print the full cause chain, including
// suppressed causes, in the style of github.com/pkg/errors.
func (e *AppError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s: %s", e.Code, e.Message)
			if e.Err != nil {
				fmt.Fprintf(s, "\n  caused by: %+v", e.Err)
			}
			for i, sup := range e.Suppressed {
				fmt.Fprintf(s, "\n  suppressed[%d]: %+v", i, sup)
			}
			return
		}
		fmt.Fprint(s, e.Error())
	case 's', 'q':
		fmt.Fprint(s, e.Error())
	}
}

// Is reports whether err is an AppError with the given code, unwrapping
// through both the stdlib chain and pkg/errors-wrapped causes.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code returns the ErrorCode of err if it is (or wraps) an AppError, and
// ok=false otherwise.
func Code(err error) (code ErrorCode, ok bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return "", false
}

// Annotate wraps err with pkg/errors to attach a message (no stack trace)
// without losing the underlying AppError for errors.As callers.
func Annotate(err error, message string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithMessage(err, message)
}

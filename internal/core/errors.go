package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Configuration errors, detected before the loop starts
	ErrConfigInvalid  = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrBadDate        = &Error{Code: "BAD_DATE", Message: "date must be in the form YYYY-MM-DD"}
	ErrPeriodTooShort = &Error{Code: "PERIOD_TOO_SHORT", Message: "period must exceed the moving-average window"}

	// Provider errors
	ErrProviderFailed = &Error{Code: "PROVIDER_FAILED", Message: "market data provider failed"}
	ErrNoData         = &Error{Code: "NO_DATA", Message: "no data available"}

	// Processing errors
	ErrWindowTooLarge = &Error{Code: "WINDOW_TOO_LARGE", Message: "window too large for data"}
	ErrZeroBasePrice  = &Error{Code: "ZERO_BASE_PRICE", Message: "first closing price is zero"}

	// Pipeline errors
	ErrActorCrashed = &Error{Code: "ACTOR_CRASHED", Message: "pipeline actor crashed"}
)

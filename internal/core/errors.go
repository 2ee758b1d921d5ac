// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Stage   string
	Symbol  string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Stage != "" && e.Symbol != "" {
		msg = fmt.Sprintf("%s (%s/%s)", msg, e.Stage, e.Symbol)
	} else if e.Stage != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Stage)
	} else if e.Symbol != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Symbol)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
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

// SymbolError is WrapError with the pipeline stage and symbol attached.
func SymbolError(base *Error, stage, symbol string, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Stage:   stage,
		Symbol:  symbol,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors
	ErrSymbolNotFound             = &Error{Code: "SYMBOL_NOT_FOUND", Message: "symbol not found"}
	ErrNoData                     = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrInsufficientHistory        = &Error{Code: "INSUFFICIENT_HISTORY", Message: "series shorter than required window"}
	ErrDataCoverageBelowThreshold = &Error{Code: "DATA_COVERAGE_BELOW_THRESHOLD", Message: "data coverage below threshold"}
	ErrMissingFundamentals        = &Error{Code: "MISSING_FUNDAMENTALS", Message: "fundamental snapshot unavailable"}
	ErrAmbiguousEarningsDate      = &Error{Code: "AMBIGUOUS_EARNINGS_DATE", Message: "next earnings date unknown"}

	// Collector errors
	ErrCollectorFailed  = &Error{Code: "COLLECTOR_FAILED", Message: "collector failed"}
	ErrCollectorTimeout = &Error{Code: "COLLECTOR_TIMEOUT", Message: "collector timeout"}
	ErrCacheMiss        = &Error{Code: "CACHE_MISS", Message: "cache miss"}

	// Allocation errors
	ErrAllocationInvariant = &Error{Code: "ALLOCATION_INVARIANT", Message: "allocation plan violates a hard constraint"}

	// Output errors
	ErrNotifierFailed = &Error{Code: "NOTIFIER_FAILED", Message: "notifier failed"}
	ErrArchiveFailed  = &Error{Code: "ARCHIVE_FAILED", Message: "archive failed"}
	ErrJournalFailed  = &Error{Code: "JOURNAL_FAILED", Message: "journal write failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)

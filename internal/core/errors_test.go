// internal/core/errors_test.go
package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Code: "TEST_ERROR", Message: "test message"}
	if err.Error() != "[TEST_ERROR] test message" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Code: "WRAP", Message: "wrapped", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return cause")
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(ErrSymbolNotFound, ErrSymbolNotFound) {
		t.Error("same error should match")
	}
	if errors.Is(ErrInsufficientHistory, ErrMissingFundamentals) {
		t.Error("different codes should not match")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("original")
	wrapped := WrapError(ErrCollectorFailed, cause)
	if wrapped.Cause != cause {
		t.Error("cause not set")
	}
	if wrapped.Code != ErrCollectorFailed.Code {
		t.Error("code not preserved")
	}
}

func TestSymbolError(t *testing.T) {
	err := SymbolError(ErrInsufficientHistory, "regime", "SPY", errors.New("have 120 bars, need 200"))

	want := "[INSUFFICIENT_HISTORY] series shorter than required window (regime/SPY): have 120 bars, need 200"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	outer := fmt.Errorf("classify: %w", err)
	if !errors.Is(outer, ErrInsufficientHistory) {
		t.Error("wrapped symbol error should match by code")
	}
}

func TestNewWarning(t *testing.T) {
	w := NewWarning("health", "AAPL", WrapError(ErrMissingFundamentals, errors.New("timeout")))
	if w.Code != "MISSING_FUNDAMENTALS" {
		t.Errorf("expected MISSING_FUNDAMENTALS, got %s", w.Code)
	}
	if w.Stage != "health" || w.Symbol != "AAPL" {
		t.Errorf("unexpected context %+v", w)
	}

	plain := NewWarning("scanner", "", errors.New("boom"))
	if plain.Code != "UNKNOWN" || plain.Message != "boom" {
		t.Errorf("unexpected plain warning %+v", plain)
	}
}

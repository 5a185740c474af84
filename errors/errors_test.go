package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         ErrorCode
		message      string
		wantCategory ErrorCategory
	}{
		{"timeout", ErrCodeTimeout, "remote call timed out", CategoryTransient},
		{"not_found", ErrCodeNotFound, "service not found", CategoryPermanent},
		{"no_match", ErrCodeNoMatch, "nothing matched", CategoryPermanent},
		{"call_failed", ErrCodeCallFailed, "callee raised", CategoryInternal},
		{"offline", ErrCodeServiceOffline, "gone", CategoryTransient},
		{"guard", ErrCodeGuardViolation, "blocked", CategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message)
			if err.Code() != tt.code {
				t.Errorf("Code() = %v, want %v", err.Code(), tt.code)
			}
			if err.Category() != tt.wantCategory {
				t.Errorf("Category() = %v, want %v", err.Category(), tt.wantCategory)
			}
			if err.Error() != tt.message {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.message)
			}
			if err.Timestamp().IsZero() {
				t.Error("Timestamp() should not be zero")
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if !New(ErrCodeTimeout, "t").Retryable() {
		t.Error("timeout should default retryable")
	}
	if New(ErrCodeNoMatch, "m").Retryable() {
		t.Error("no match should not be retryable")
	}
	if !New(ErrCodeNoMatch, "m", WithRetryable(true)).Retryable() {
		t.Error("WithRetryable should override default")
	}
}

func TestCallFailed(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := CallFailed("database", cause)

	if err.Service() != "database" {
		t.Errorf("Service() = %q, want %q", err.Service(), "database")
	}
	if err.Code() != ErrCodeCallFailed {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeCallFailed)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be in the chain")
	}
}

func TestWrap(t *testing.T) {
	base := CallFailed("sync", fmt.Errorf("boom"))
	wrapped := Wrap(base, "routing query")

	// Code, category and service survive wrapping
	if wrapped.Code() != ErrCodeCallFailed {
		t.Errorf("Code() = %v, want %v", wrapped.Code(), ErrCodeCallFailed)
	}
	if wrapped.Service() != "sync" {
		t.Errorf("Service() = %q, want %q", wrapped.Service(), "sync")
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should contain base in chain")
	}
}

func TestWrap_ContextErrors(t *testing.T) {
	err := Wrap(context.DeadlineExceeded, "calling remote")
	if err.Code() != ErrCodeTimeout {
		t.Errorf("deadline exceeded should map to TIMEOUT, got %v", err.Code())
	}

	err = Wrap(context.Canceled, "calling remote")
	if err.Code() != ErrCodeCanceled {
		t.Errorf("canceled should map to CANCELED, got %v", err.Code())
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestIsNoMatch(t *testing.T) {
	if !IsNoMatch(NoMatch("show top players")) {
		t.Error("IsNoMatch should detect NO_MATCH")
	}
	if IsNoMatch(Timeout("slow")) {
		t.Error("IsNoMatch should reject other codes")
	}
	if IsNoMatch(fmt.Errorf("plain")) {
		t.Error("IsNoMatch should reject plain errors")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	orig := CallFailed("web-editor", fmt.Errorf("status 500"))

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var back Error
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if back.Code() != ErrCodeCallFailed {
		t.Errorf("Code = %v, want %v", back.Code(), ErrCodeCallFailed)
	}
	if back.Service() != "web-editor" {
		t.Errorf("Service = %q, want %q", back.Service(), "web-editor")
	}
	if back.Retryable() != orig.Retryable() {
		t.Errorf("Retryable = %v, want %v", back.Retryable(), orig.Retryable())
	}
}

func TestRecoverPanic(t *testing.T) {
	if RecoverPanic(nil) != nil {
		t.Error("RecoverPanic(nil) should be nil")
	}

	err := RecoverPanic("index out of range")
	if err.Code() != ErrCodePanic {
		t.Errorf("Code = %v, want %v", err.Code(), ErrCodePanic)
	}

	err = RecoverPanic(fmt.Errorf("wrapped panic"))
	if err.Error() != "wrapped panic" {
		t.Errorf("Error = %q", err.Error())
	}
}

func TestCause(t *testing.T) {
	root := fmt.Errorf("root")
	wrapped := Wrap(Wrap(root, "middle"), "outer")
	if Cause(wrapped) != root {
		t.Errorf("Cause = %v, want root", Cause(wrapped))
	}
}

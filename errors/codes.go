package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	// Examples: network timeouts, a service between heartbeats.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: invalid input, no service matching a query.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryInternal indicates unexpected errors, bugs, or system failures.
	// Examples: recovered panics, corrupted state.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for mesh failure scenarios.
const (
	// Transient errors
	ErrCodeTimeout        ErrorCode = "TIMEOUT"         // Remote call timed out
	ErrCodeUnavailable    ErrorCode = "UNAVAILABLE"     // Service temporarily unavailable
	ErrCodeNetworkErr     ErrorCode = "NETWORK_ERR"     // Network connectivity issue
	ErrCodeServiceOffline ErrorCode = "SERVICE_OFFLINE" // Announcement expired or host unreachable

	// Permanent errors
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"     // No announcement with that name
	ErrCodeNoMatch      ErrorCode = "NO_MATCH"      // No capability matched the query
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT" // Malformed announcement or switch
	ErrCodeUnsupported  ErrorCode = "UNSUPPORTED"   // Unknown query/action at the callee
	ErrCodeCanceled     ErrorCode = "CANCELED"      // Operation was canceled

	// Internal errors
	ErrCodeInternal       ErrorCode = "INTERNAL"        // Unexpected internal error
	ErrCodePanic          ErrorCode = "PANIC"           // Recovered from panic
	ErrCodeCallFailed     ErrorCode = "CALL_FAILED"     // Callee raised during ask/tell/do
	ErrCodeTransportDown  ErrorCode = "TRANSPORT_DOWN"  // Multicast transport degraded
	ErrCodeCacheInvalid   ErrorCode = "CACHE_INVALID"   // Cold-start cache unreadable
	ErrCodeGuardViolation ErrorCode = "GUARD_VIOLATION" // Direct execution outside entry point
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTimeout, ErrCodeUnavailable, ErrCodeNetworkErr, ErrCodeServiceOffline:
		return CategoryTransient

	case ErrCodeNotFound, ErrCodeNoMatch, ErrCodeInvalidInput, ErrCodeUnsupported,
		ErrCodeCanceled, ErrCodeGuardViolation:
		return CategoryPermanent

	case ErrCodeInternal, ErrCodePanic, ErrCodeCallFailed, ErrCodeTransportDown,
		ErrCodeCacheInvalid:
		return CategoryInternal

	default:
		return CategoryInternal
	}
}

// DefaultRetryable returns whether this error code is typically retryable.
func (c ErrorCode) DefaultRetryable() bool {
	return c.DefaultCategory().IsRetryable()
}

// codeDescriptions provides human-readable descriptions for error codes.
var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:        "remote call timed out",
	ErrCodeUnavailable:    "service temporarily unavailable",
	ErrCodeNetworkErr:     "network connectivity error",
	ErrCodeServiceOffline: "service is offline",
	ErrCodeNotFound:       "service not found",
	ErrCodeNoMatch:        "no service matched the query",
	ErrCodeInvalidInput:   "invalid input provided",
	ErrCodeUnsupported:    "operation not supported",
	ErrCodeCanceled:       "operation canceled",
	ErrCodeInternal:       "internal error",
	ErrCodePanic:          "recovered from panic",
	ErrCodeCallFailed:     "service call failed",
	ErrCodeTransportDown:  "multicast transport unavailable",
	ErrCodeCacheInvalid:   "announcement cache unreadable",
	ErrCodeGuardViolation: "direct execution blocked",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}

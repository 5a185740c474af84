package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already a MeshError, it wraps it with the new message.
// Otherwise, it creates a new Internal error wrapping the original.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	// If it's already a MeshError, preserve its properties
	var meshErr *Error
	if errors.As(err, &meshErr) {
		wrapped := &Error{
			code:      meshErr.code,
			category:  meshErr.category,
			message:   message,
			cause:     err,
			service:   meshErr.service,
			retryable: meshErr.retryable,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	// Check for context errors
	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	// Default to internal error for unknown errors
	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsMeshError attempts to extract a MeshError from an error chain.
// Returns nil if no MeshError is found.
func AsMeshError(err error) MeshError {
	var meshErr *Error
	if errors.As(err, &meshErr) {
		return meshErr
	}
	return nil
}

// Is checks if any error in the chain has the given error code.
func Is(err error, code ErrorCode) bool {
	var meshErr *Error
	if errors.As(err, &meshErr) {
		return meshErr.code == code
	}
	return false
}

// IsCategory checks if any error in the chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var meshErr *Error
	if errors.As(err, &meshErr) {
		return meshErr.category == category
	}
	return false
}

// IsRetryable checks if the error is retryable.
func IsRetryable(err error) bool {
	var meshErr *Error
	if errors.As(err, &meshErr) {
		return meshErr.Retryable()
	}
	// Default to not retryable for non-MeshErrors
	return false
}

// IsNoMatch checks if the error is a routing miss.
func IsNoMatch(err error) bool {
	return Is(err, ErrCodeNoMatch)
}

// Code extracts the error code from an error, if available.
// Returns empty string if err is not a MeshError.
func Code(err error) ErrorCode {
	var meshErr *Error
	if errors.As(err, &meshErr) {
		return meshErr.code
	}
	return ""
}

// ServiceName extracts the related service name from an error, if available.
func ServiceName(err error) string {
	var meshErr *Error
	if errors.As(err, &meshErr) {
		return meshErr.service
	}
	return ""
}

// Cause returns the root cause of the error chain.
func Cause(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		inner := unwrapper.Unwrap()
		if inner == nil {
			return err
		}
		err = inner
	}
}

// RecoverPanic converts a recovered panic value into an Error.
func RecoverPanic(recovered interface{}) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	switch v := recovered.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	return New(ErrCodePanic, message)
}

package errors

import (
	"errors"
	"fmt"
)

// ErrorWrapper provides context-aware error wrapping.
type ErrorWrapper struct {
	operation string
	module    string
}

// NewWrapper creates a new error wrapper with operation and module context.
func NewWrapper(module, operation string) *ErrorWrapper {
	return &ErrorWrapper{
		module:    module,
		operation: operation,
	}
}

// Wrap wraps an error with operation context and the localization key of the
// message the user should see. Returns nil if err is nil.
func (w *ErrorWrapper) Wrap(err error, messageKey string) error {
	if err == nil {
		return nil
	}
	return &WrappedError{
		Operation:  w.operation,
		Module:     w.module,
		Cause:      err,
		MessageKey: messageKey,
	}
}

// WrappedError contains both internal error details and a user-facing message key.
type WrappedError struct {
	Operation  string // e.g. "match_text", "feedback"
	Module     string // e.g. "search", "card"
	Cause      error
	MessageKey string // i18n key of the user-facing message
}

func (e *WrappedError) Error() string {
	return fmt.Sprintf("[%s:%s] %s: %v", e.Module, e.Operation, e.MessageKey, e.Cause)
}

func (e *WrappedError) Unwrap() error {
	return e.Cause
}

// GetMessageKey returns the message key carried by err, or fallback when err
// is not a WrappedError.
func GetMessageKey(err error, fallback string) string {
	var wrapped *WrappedError
	if errors.As(err, &wrapped) && wrapped.MessageKey != "" {
		return wrapped.MessageKey
	}
	return fallback
}

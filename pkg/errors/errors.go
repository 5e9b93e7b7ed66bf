package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrInternal

	// Reminder engine codes
	ErrNotEligible
	ErrAlreadyTerminal
	ErrAlreadyClaimed
	ErrSendFailed
)

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// NotEligible is returned at planning time: no due date, no reachable
// channel, or the business plan lacks the reminders feature.
func NotEligible(reason string) *AppError {
	return &AppError{
		Code:    ErrNotEligible,
		Message: fmt.Sprintf("invoice not eligible for reminders: %s", reason),
	}
}

// AlreadyTerminal is returned when a cancel hits a finished reminder.
func AlreadyTerminal(status string) *AppError {
	return &AppError{
		Code:    ErrAlreadyTerminal,
		Message: fmt.Sprintf("reminder already finished with status %s", status),
	}
}

// AlreadyClaimed is the expected outcome of losing a claim race. The
// dispatcher absorbs it silently; manual send-now reports it as a soft no-op.
func AlreadyClaimed() *AppError {
	return &AppError{
		Code:    ErrAlreadyClaimed,
		Message: "reminder was already claimed or finalized by another attempt",
	}
}

// SendFailed wraps a channel transport error. The failure is also recorded
// on the reminder itself for later retry.
func SendFailed(err error) *AppError {
	return &AppError{
		Code:    ErrSendFailed,
		Message: "reminder delivery failed",
		Err:     err,
	}
}

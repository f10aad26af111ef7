package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the scheduler.
type ErrorCode string

// Cycle error codes
const (
	// ErrSchema 快照声明的版本无法被当前代码解释
	ErrSchema ErrorCode = "SCHEMA"
	// ErrTargetGone 任务目标已无法解析
	ErrTargetGone ErrorCode = "TARGET_GONE"
	// ErrBusy 设施正在忙
	ErrBusy ErrorCode = "BUSY"
	// ErrInsufficientResource 设施资源不足
	ErrInsufficientResource ErrorCode = "INSUFFICIENT_RESOURCE"
	// ErrMalformedRequest 请求参数无效
	ErrMalformedRequest ErrorCode = "MALFORMED_REQUEST"
)

// Store error codes
const (
	ErrNotFound    ErrorCode = "NOT_FOUND"
	ErrStoreClosed ErrorCode = "STORE_CLOSED"
	ErrInternal    ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// =============================================================================
// 常用错误构造
// =============================================================================

// NewSchemaError 快照 schema 错误，不可重试
func NewSchemaError(format string, args ...any) *Error {
	return NewError(ErrSchema, fmt.Sprintf(format, args...))
}

// NewTargetGoneError 目标消失，下一周期可重新匹配
func NewTargetGoneError(targetID string) *Error {
	return NewError(ErrTargetGone, fmt.Sprintf("target %q no longer resolves", targetID)).
		WithRetryable(true)
}

// NewBusyError 设施忙
func NewBusyError(facilityID string) *Error {
	return NewError(ErrBusy, fmt.Sprintf("facility %q is busy", facilityID)).
		WithRetryable(true)
}

// NewInsufficientResourceError 设施资源不足
func NewInsufficientResourceError(facilityID string) *Error {
	return NewError(ErrInsufficientResource, fmt.Sprintf("facility %q lacks resources", facilityID)).
		WithRetryable(true)
}

// NewMalformedRequestError 请求无效，调用方应丢弃
func NewMalformedRequestError(requestID, reason string) *Error {
	return NewError(ErrMalformedRequest, fmt.Sprintf("request %q is malformed: %s", requestID, reason))
}

// =============================================================================
// 错误判断
// =============================================================================

// AsError extracts a *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether any error in the chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsFatal reports whether err must abort the whole cycle.
// Only snapshot-schema corruption is fatal.
func IsFatal(err error) bool {
	return IsErrorCode(err, ErrSchema)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

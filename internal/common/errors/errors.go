package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode identifies a failure class surfaced to callers.
type ErrorCode string

const (
	// General
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"

	// Members
	ErrCodeMemberNotFound  ErrorCode = "MEMBER_NOT_FOUND"
	ErrCodeInvalidSponsor  ErrorCode = "INVALID_SPONSOR"
	ErrCodeMemberSuspended ErrorCode = "MEMBER_SUSPENDED"

	// Placement
	ErrCodePlacementExhausted ErrorCode = "PLACEMENT_EXHAUSTED"

	// Activation
	ErrCodeAlreadyActive     ErrorCode = "ALREADY_ACTIVE"
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeTxConflict        ErrorCode = "TX_CONFLICT"

	// A ledger invariant found broken before commit. Always fatal to the
	// operation, never tolerated.
	ErrCodeIntegrityViolation ErrorCode = "INTEGRITY_VIOLATION"

	// Storage
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

// AppError is the typed error returned by services to delivery.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRecoverable reports whether the caller can act on the failure; integrity
// violations and internal errors are not recoverable by retrying the request.
func (e *AppError) IsRecoverable() bool {
	switch e.Code {
	case ErrCodeInternal, ErrCodeIntegrityViolation, ErrCodeDatabaseError:
		return false
	}
	return true
}

// WithDetail attaches structured detail to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRequestID tags the error with the request that produced it.
func (e *AppError) WithRequestID(id string) *AppError {
	e.RequestID = id
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Timestamp: time.Now().UTC()}
}

func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(code ErrorCode, message string, cause error) *AppError {
	e := New(code, message)
	e.Cause = cause
	return e
}

// As extracts an *AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus maps an error code to the HTTP status the delivery layer uses.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidation, ErrCodeInvalidSponsor:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound, ErrCodeMemberNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeAlreadyActive, ErrCodeTxConflict, ErrCodePlacementExhausted:
		return http.StatusConflict
	case ErrCodeInsufficientFunds, ErrCodeMemberSuspended:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrAuthFailed          ErrorType = "AUTH_FAILED"
	ErrInvalidRequest      ErrorType = "INVALID_REQUEST"
	ErrRiskReject          ErrorType = "RISK_REJECT"
	ErrWalletNotConfigured ErrorType = "WALLET_NOT_CONFIGURED"
	ErrNetwork             ErrorType = "NETWORK_ERROR"
	ErrSubmission          ErrorType = "SUBMISSION_FAILED"
	ErrStoreUnavailable    ErrorType = "STORE_UNAVAILABLE"
	ErrReadOnly            ErrorType = "READ_ONLY"
	ErrRateLimited         ErrorType = "RATE_LIMITED"
	ErrInternal            ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application.
// Only Message is ever rendered to the caller.
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

// NewUnauthorized never says why the credential was rejected.
func NewUnauthorized() *AppError {
	return New(ErrAuthFailed, "Unauthorized", nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// Is reports whether err carries an AppError of the given type.
func Is(err error, errType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errType
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest, ErrRiskReject:
		return http.StatusBadRequest
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrReadOnly:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

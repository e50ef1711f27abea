// Package errors provides domain-specific error types.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for domain errors.
const (
	ErrCodeCredentialNotFound  = "CREDENTIAL_NOT_FOUND"
	ErrCodeCredentialExpired   = "CREDENTIAL_EXPIRED"
	ErrCodeCredentialExhausted = "CREDENTIAL_EXHAUSTED"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeMalformedDirective  = "MALFORMED_DIRECTIVE"
	ErrCodeResourceUnavailable = "RESOURCE_UNAVAILABLE"
	ErrCodeGenerationFailure   = "GENERATION_FAILURE"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// DomainError represents a domain-specific error.
type DomainError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewCredentialNotFoundError creates an error for an unknown API key.
func NewCredentialNotFoundError() *DomainError {
	return &DomainError{
		Code:       ErrCodeCredentialNotFound,
		Message:    "invalid API key",
		HTTPStatus: http.StatusForbidden,
	}
}

// NewCredentialExpiredError creates an error for an expired API key.
func NewCredentialExpiredError() *DomainError {
	return &DomainError{
		Code:       ErrCodeCredentialExpired,
		Message:    "your API key has expired, contact support to renew your access",
		HTTPStatus: http.StatusForbidden,
	}
}

// NewCredentialExhaustedError creates an error for a key with no credits left.
func NewCredentialExhaustedError(used, total int64) *DomainError {
	return &DomainError{
		Code:       ErrCodeCredentialExhausted,
		Message:    "no generation credits remaining",
		Details:    fmt.Sprintf("%d/%d credits used", used, total),
		HTTPStatus: http.StatusForbidden,
	}
}

// NewUnauthorizedError creates an error for a missing API key.
func NewUnauthorizedError(message string) *DomainError {
	return &DomainError{
		Code:       ErrCodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewInvalidRequestError creates a validation error.
func NewInvalidRequestError(message string, details string) *DomainError {
	return &DomainError{
		Code:       ErrCodeInvalidRequest,
		Message:    message,
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewMalformedDirectiveError creates an error for unparseable collaborator output.
func NewMalformedDirectiveError(err error) *DomainError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &DomainError{
		Code:       ErrCodeMalformedDirective,
		Message:    "language model returned an invalid directive",
		Details:    details,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewResourceUnavailableError creates an error for admission timeouts.
func NewResourceUnavailableError(err error) *DomainError {
	return &DomainError{
		Code:       ErrCodeResourceUnavailable,
		Message:    "audio generation system is currently busy, please try again later",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewGenerationFailureError creates an error for a failed synthesis call.
func NewGenerationFailureError(err error) *DomainError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &DomainError{
		Code:       ErrCodeGenerationFailure,
		Message:    "audio generation failed",
		Details:    details,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, err error) *DomainError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &DomainError{
		Code:       ErrCodeInternal,
		Message:    message,
		Details:    details,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsDomainError checks if the error is a domain error.
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError extracts the domain error from an error.
func GetDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// HasCode checks whether the error is a domain error with the given code.
func HasCode(err error, code string) bool {
	domainErr, ok := GetDomainError(err)
	return ok && domainErr.Code == code
}

// IsMalformedDirective checks if the error is a malformed directive error.
func IsMalformedDirective(err error) bool {
	return HasCode(err, ErrCodeMalformedDirective)
}

// IsResourceUnavailable checks if the error is an admission timeout.
func IsResourceUnavailable(err error) bool {
	return HasCode(err, ErrCodeResourceUnavailable)
}

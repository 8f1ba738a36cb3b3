package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// AppError is the base domain error type. Code is the machine-readable kind
// carried on the wire; Status is the HTTP status it maps to.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Error kind constants. The set is closed: every non-success response carries
// one of these codes.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeAuthentication     = "AUTHENTICATION_ERROR"
	CodeAuthorization      = "AUTHORIZATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Standard domain error constructors.

func ErrValidation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, Status: 400}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: CodeBadRequest, Message: msg, Status: 400}
}

func ErrAuthentication(msg string) *AppError {
	if msg == "" {
		msg = "Authentication required"
	}
	return &AppError{Code: CodeAuthentication, Message: msg, Status: 401}
}

func ErrAuthorization(msg string) *AppError {
	if msg == "" {
		msg = "Insufficient permissions"
	}
	return &AppError{Code: CodeAuthorization, Message: msg, Status: 403}
}

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

// ErrRateLimited carries the retry hint in seconds as a detail so the
// responder can surface it both as a header and inside the envelope.
func ErrRateLimited(retryAfter int) *AppError {
	return &AppError{
		Code:    CodeRateLimited,
		Message: "Too many requests, please try again later",
		Status:  429,
		Details: map[string]interface{}{"retryAfter": retryAfter},
	}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: 500, Cause: cause}
}

func ErrServiceUnavailable(msg string, cause error) *AppError {
	return &AppError{Code: CodeServiceUnavailable, Message: msg, Status: 503, Cause: cause}
}

// Classify maps an arbitrary error onto the closed taxonomy. AppErrors pass
// through untouched. In non-dev mode the raw message of an unclassified error
// is suppressed so internals never leak to callers.
func Classify(err error, devMode bool) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "validation") || strings.Contains(msg, "invalid input"):
		return ErrValidation(err.Error())
	case strings.Contains(msg, "permission denied") || strings.Contains(msg, "access denied"):
		return ErrAuthorization("")
	case errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "unavailable"):
		return ErrServiceUnavailable("upstream dependency unavailable", err)
	}

	if devMode {
		return ErrInternal(err.Error(), err)
	}
	return ErrInternal("internal server error", err)
}

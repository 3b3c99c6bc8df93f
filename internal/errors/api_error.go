package errors

import (
	"fmt"
	"net/http"
)

// APIError is the error shape every handler writes:
// {"error": {"code", "message", "details"}}.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, "internal_error", message)
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

// Validation reports rejected input. details usually lists the offending
// fields.
func Validation(message string, details any) *APIError {
	err := New(http.StatusBadRequest, "validation_error", message)
	err.Details = details
	return err
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return New(http.StatusUnauthorized, "unauthorized", message)
}

func NotFound(code, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

func Conflict(code, message string, details any) *APIError {
	err := New(http.StatusConflict, code, message)
	err.Details = details
	return err
}

package api

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeClientInput     ErrorType = "client_input"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeUnauthorized    ErrorType = "unauthorized"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
	ErrorTypeServerError     ErrorType = "server_error"
)

// APIError is a client-facing failure. Code and Message become the
// envelope fields of the reply; Type selects the HTTP status.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    int       `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (code: %d)", e.Type, e.Message, e.Code)
}

// HTTPStatus maps the error type to an HTTP status code.
func (e *APIError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeClientInput:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NewClientInputError creates an APIError for a missing or invalid field.
func NewClientInputError(code int, message string) *APIError {
	return &APIError{Type: ErrorTypeClientInput, Code: code, Message: message}
}

// NewNotFoundError creates an APIError for a resource that does not exist.
func NewNotFoundError(message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Code: http.StatusNotFound, Message: message}
}

// NewUnauthorizedError creates an APIError for missing or bad credentials.
func NewUnauthorizedError(code int, message string) *APIError {
	return &APIError{Type: ErrorTypeUnauthorized, Code: code, Message: message}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(code int, message string) *APIError {
	return &APIError{Type: ErrorTypeTooManyRequests, Code: code, Message: message}
}

// NewServerError creates an APIError for internal failures.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Code: http.StatusInternalServerError, Message: message}
}

// StatusText returns the reason phrase used as the default envelope message.
// Code 0 reads "OK".
func StatusText(code int) string {
	if code == 0 {
		return "OK"
	}
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}

// Status writes the envelope fields code and message into resp and returns
// code. An empty message defaults to StatusText(code).
func Status(resp *Response, code int, message string) int {
	if message == "" {
		message = StatusText(code)
	}
	resp.Set("code", code)
	resp.Set("message", message)
	return code
}

// Fail writes err's envelope into resp and returns the HTTP status for err.
func Fail(resp *Response, err *APIError) int {
	Status(resp, err.Code, err.Message)
	return err.HTTPStatus()
}

package core

import (
	"fmt"
)

// Error represents an API or adapter error.
type Error struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	Code          string    `json:"code,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	ProviderError any       `json:"provider_error,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrMicrophone     ErrorType = "microphone_error"
	ErrHandshake      ErrorType = "handshake_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrAPI            ErrorType = "api_error"
	ErrProvider       ErrorType = "provider_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:    ErrAuthentication,
		Message: message,
	}
}

// NewMicrophoneError creates a microphone acquisition error.
func NewMicrophoneError(message string) *Error {
	return &Error{
		Type:    ErrMicrophone,
		Message: message,
	}
}

// NewHandshakeError creates a transport negotiation error.
func NewHandshakeError(message string) *Error {
	return &Error{
		Type:    ErrHandshake,
		Message: message,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrNotFound,
		Message: message,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// NewProviderError creates a provider-specific error.
func NewProviderError(provider string, underlying error) *Error {
	return &Error{
		Type:          ErrProvider,
		Message:       fmt.Sprintf("%s: %v", provider, underlying),
		ProviderError: underlying.Error(),
	}
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	if ue, ok := e.ProviderError.(error); ok {
		return ue
	}
	return nil
}

package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotLoggedIn is returned when a consumer asks for a valid access token
// and no recoverable session exists. The only remedy is a fresh login.
var ErrNotLoggedIn = errors.New("not logged in: run guildexport -login")

// OAuthError represents a provider-supplied OAuth error, typically the
// error= parameter arriving on the callback. It is fatal for the attempt.
type OAuthError struct {
	// Code is the OAuth error code (e.g. access_denied).
	Code string `json:"error"`
	// Description is a human-readable description of the error.
	Description string `json:"error_description,omitempty"`
	// StatusCode is the HTTP status code associated with the error.
	StatusCode int `json:"-"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("OAuth error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("OAuth error: %s", e.Code)
}

// NewOAuthError creates a new OAuth error.
func NewOAuthError(code, description string, statusCode int) *OAuthError {
	return &OAuthError{Code: code, Description: description, StatusCode: statusCode}
}

// ExchangeError reports a non-success response from the token endpoint during
// the authorization-code exchange. Codes are single-use, so callers must not
// retry the exchange.
type ExchangeError struct {
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// RefreshError reports a non-success response from the token endpoint during
// a refresh. It is terminal for the stored session; the user must log in again.
type RefreshError struct {
	StatusCode int
	Body       string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed with status %d: %s", e.StatusCode, e.Body)
}

// AuthenticationError represents flow-level authentication failures.
type AuthenticationError struct {
	// Type is the kind of authentication error.
	Type string `json:"type"`
	// Message is a human-readable message describing the error.
	Message string `json:"message"`
	// Code is the HTTP status code associated with the error.
	Code int `json:"code"`
	// Cause is the underlying error, if any.
	Cause error `json:"-"`
}

func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// Is matches two authentication errors by type so callers can compare against
// the base values below with errors.Is.
func (e *AuthenticationError) Is(target error) bool {
	var other *AuthenticationError
	if !errors.As(target, &other) {
		return false
	}
	return e.Type == other.Type
}

// Base authentication error values.
var (
	// ErrServerStartFailed signals the loopback callback server could not bind.
	ErrServerStartFailed = &AuthenticationError{
		Type:    "server_start_failed",
		Message: "Failed to start OAuth callback server",
		Code:    http.StatusInternalServerError,
	}

	// ErrCallbackTimeout signals no callback arrived within the wait window.
	ErrCallbackTimeout = &AuthenticationError{
		Type:    "callback_timeout",
		Message: "Timeout waiting for OAuth callback",
		Code:    http.StatusRequestTimeout,
	}

	// ErrInvalidState signals a missing or mismatched state parameter.
	ErrInvalidState = &AuthenticationError{
		Type:    "invalid_state",
		Message: "OAuth state parameter is invalid",
		Code:    http.StatusBadRequest,
	}

	// ErrCodeExchangeFailed wraps a failed authorization-code exchange.
	ErrCodeExchangeFailed = &AuthenticationError{
		Type:    "code_exchange_failed",
		Message: "Failed to exchange authorization code for tokens",
		Code:    http.StatusBadRequest,
	}
)

// NewAuthenticationError derives an error from a base value with a cause.
func NewAuthenticationError(base *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    base.Type,
		Message: base.Message,
		Code:    base.Code,
		Cause:   cause,
	}
}

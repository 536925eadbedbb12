package ctrader

import (
	"context"
	"errors"
	"fmt"

	"github.com/router-for-me/CTraderAuth/internal/config"
)

// AuthenticationError represents a terminal failure of the authorization flow.
type AuthenticationError struct {
	// Type identifies the error kind, e.g. "callback_timeout".
	Type string `json:"type"`
	// Message is a human-readable message describing the error.
	Message string `json:"message"`
	// Body holds the provider response (or pasted value) kept for diagnostics.
	Body string `json:"body,omitempty"`
	// Cause is the underlying error that caused this authentication error.
	Cause error `json:"-"`
}

// Error returns a string representation of the authentication error.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// Error kinds produced by the flow.
var (
	// ErrConfig is returned when a required credential is missing or a setting is invalid.
	ErrConfig = &AuthenticationError{
		Type:    "config_error",
		Message: "Required cTrader credentials are not configured",
	}

	// ErrPortInUse is returned when the callback listener cannot bind its port.
	ErrPortInUse = &AuthenticationError{
		Type:    "port_in_use",
		Message: "OAuth callback port is already in use",
	}

	// ErrServerStartFailed is returned when the callback listener fails after binding.
	ErrServerStartFailed = &AuthenticationError{
		Type:    "server_start_failed",
		Message: "Failed to start OAuth callback server",
	}

	// ErrCallbackTimeout is returned when no redirect arrives in time.
	ErrCallbackTimeout = &AuthenticationError{
		Type:    "callback_timeout",
		Message: "Timeout waiting for OAuth callback",
	}

	// ErrEmptyInput is returned when the user pastes an empty authorization code.
	ErrEmptyInput = &AuthenticationError{
		Type:    "empty_input",
		Message: "No authorization code provided",
	}

	// ErrOAuthDenied is returned when the provider redirects with an error parameter.
	ErrOAuthDenied = &AuthenticationError{
		Type:    "oauth_error",
		Message: "Authorization was not granted",
	}

	// ErrCodeExchangeFailed is returned when the token endpoint rejects the exchange.
	ErrCodeExchangeFailed = &AuthenticationError{
		Type:    "code_exchange_failed",
		Message: "Failed to exchange authorization code for an access token",
	}

	// ErrMissingToken is returned when the token response has no accessToken field.
	ErrMissingToken = &AuthenticationError{
		Type:    "missing_token",
		Message: "Token response did not contain an access token",
	}
)

// NewAuthenticationError creates a new authentication error with a cause based on a base error.
func NewAuthenticationError(baseErr *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    baseErr.Type,
		Message: baseErr.Message,
		Cause:   cause,
	}
}

// NewAuthenticationErrorWithBody is NewAuthenticationError with a diagnostic body attached.
func NewAuthenticationErrorWithBody(baseErr *AuthenticationError, cause error, body string) *AuthenticationError {
	authErr := NewAuthenticationError(baseErr, cause)
	authErr.Body = body
	return authErr
}

// IsAuthenticationError checks if an error is an authentication error.
func IsAuthenticationError(err error) bool {
	var authenticationError *AuthenticationError
	return errors.As(err, &authenticationError)
}

// IsKind reports whether err is an AuthenticationError of the same kind as base.
func IsKind(err error, base *AuthenticationError) bool {
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || base == nil {
		return false
	}
	return authErr.Type == base.Type
}

// GetUserFriendlyMessage returns a user-friendly error message based on the error type.
func GetUserFriendlyMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Interrupted; no token was obtained."
	}
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		if err == nil {
			return ""
		}
		return fmt.Sprintf("An unexpected error occurred: %v", err)
	}
	switch authErr.Type {
	case ErrConfig.Type:
		if errors.Is(authErr.Cause, config.ErrInvalidValue) {
			return fmt.Sprintf("Invalid configuration: %v", authErr.Cause)
		}
		return "Set CTRADER_CLIENT_ID and CTRADER_CLIENT_SECRET (environment or .env) and run again."
	case ErrPortInUse.Type:
		return "The callback port is already in use. Free it, pass --port, or use --manual."
	case ErrServerStartFailed.Type:
		return "The local callback server could not be started. Try again or use --manual."
	case ErrCallbackTimeout.Type:
		return "Authorization timed out. Please try again or use --manual mode."
	case ErrEmptyInput.Type:
		return "No authorization code was entered. Please run the command again."
	case ErrOAuthDenied.Type:
		if authErr.Cause != nil {
			return fmt.Sprintf("Authorization failed: %v", authErr.Cause)
		}
		return "Authorization was cancelled or denied."
	case ErrCodeExchangeFailed.Type:
		return "The token endpoint rejected the authorization code. Codes are single-use; request a new one."
	case ErrMissingToken.Type:
		return "The token endpoint answered without an access token."
	default:
		return "Authentication failed. Please try again."
	}
}

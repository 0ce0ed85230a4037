// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Authentication errors.
	ErrNotLoggedIn    = errors.New("Not logged in")
	ErrSessionExpired = errors.New("session expired")

	// Browser errors.
	ErrCaptureDenied      = errors.New("screenshot capture denied")
	ErrNoCheckoutControl  = errors.New("no checkout control found")
	ErrBrowserUnavailable = errors.New("browser unavailable")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// UpstreamError represents a non-2xx response from an external API. The
// message carries the status code and whatever text the server returned,
// verbatim, since the overlay surfaces it as-is.
type UpstreamError struct {
	Body       string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request failed: %d", e.StatusCode)
	}
	return e.Body
}


package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session engine
var (
	// OAuth callback errors
	ErrInvalidState            = errors.New("invalid or expired state")
	ErrTokenExchangeFailed     = errors.New("token exchange failed")
	ErrIncompleteTokenResponse = errors.New("incomplete token response")

	// Credential errors
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrMalformedToken       = errors.New("malformed token")

	// Backend errors
	ErrBackendSyncFailed = errors.New("backend account sync failed")
	ErrGenerationFailed  = errors.New("schedule generation failed")

	// Calendar errors
	ErrCalendarAccessDenied = errors.New("calendar access not granted")
	ErrCalendarAuthFailed   = errors.New("calendar authentication failed")
	ErrCalendarAPIError     = errors.New("calendar api error")

	// Transport errors
	ErrNetworkError = errors.New("network error")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

package errors

import (
	"errors"
	"fmt"
)

// Common error types shared by the client and the mock API
var (
	// Account errors
	ErrUserNotFound = errors.New("user not found")

	// Token errors
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Session storage errors
	ErrSessionCorrupt = errors.New("persisted session is corrupt")
	ErrSessionChanged = errors.New("session changed during token refresh")

	// Transport errors
	ErrNoConnection = errors.New("no connection to server")

	// General errors
	ErrNotFound = errors.New("not found")
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

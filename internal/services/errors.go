package services

import "errors"

var (
	// ErrDuplicateIdentity means the username or email is already registered.
	ErrDuplicateIdentity = errors.New("username or email already registered")

	// ErrInvalidCredentials is returned both for unknown identifiers and for wrong
	// passwords so that callers cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrAccountDisabled = errors.New("account is disabled")
	ErrUserNotFound    = errors.New("user not found")

	// ErrStore wraps failures of the user store itself.
	ErrStore = errors.New("user store failure")
)

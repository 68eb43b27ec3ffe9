package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid is returned for malformed, expired or forged tokens.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrHashFormat is returned when a stored hash is not an Argon2id PHC string.
	ErrHashFormat = errors.New("auth: invalid password hash format")

	// ErrNotConfigured is returned when no admin password hash is set.
	ErrNotConfigured = errors.New("auth: admin account not configured")
)

package session

import "errors"

var (
	// ErrInvalidToken is returned when a token is malformed, signed with the wrong key, or carries bad claims.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a token's signature is valid but it is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// Package session implements closet's dual-token session scheme.
//
// Access tokens are short-lived HS256 JWTs carried as bearer credentials.
// Refresh tokens are long-lived HS256 JWTs signed with a separate secret and
// carried only in an HTTP-only cookie. Neither token is stored server-side.
//
// HTTP handlers live in cmd/internal/auth/api.
package session

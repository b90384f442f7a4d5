package identity

import (
	"context"
	"time"
)

// User is a closet account. PasswordHash never leaves the server.
type User struct {
	ID                string
	Name              string
	Email             string
	PasswordHash      string
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
}

// ChangedPasswordAfter reports whether the password was changed after a
// token issued at iat. Comparison is at whole-second granularity since
// JWT iat carries seconds only.
func (u User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat.Unix() < u.PasswordChangedAt.Unix()
}

// NewUser is a validated, hashed row ready for insertion.
type NewUser struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Store persists users. Implementations map unique violations on email to
// ConflictError{Field: "email"} and missing rows to NotFoundError.
type Store interface {
	CreateUser(ctx context.Context, in NewUser) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	DeleteUser(ctx context.Context, id string) error
}

// Package v1 defines the closet auth HTTP contract v1.
//
// It is shared between the server handlers and pkg/client so both sides
// agree on paths, payload shapes and error codes.
package v1

import (
	"errors"
	"strings"
	"time"
)

// StatusSuccess is the "status" value of every successful envelope.
const StatusSuccess = "success"

// Envelope status values for errors: "fail" for 4xx, "error" for everything else.
const (
	StatusFail  = "fail"
	StatusError = "error"
)

// User is the public projection of an account. Password material is never part of it.
type User struct {
	ID                string     `json:"id"`
	Name              string     `json:"name,omitempty"`
	Email             string     `json:"email,omitempty"`
	PasswordChangedAt *time.Time `json:"passwordChangedAt,omitempty"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
}

// UserData wraps a User under "data".
type UserData struct {
	User *User `json:"user,omitempty"`
}

// AuthResponse is returned by signup, login, refresh and password change.
type AuthResponse struct {
	Status string   `json:"status"`
	Token  string   `json:"token"`
	Data   UserData `json:"data"`
}

// MeResponse is returned by GET /users/me.
type MeResponse struct {
	Status string   `json:"status"`
	Data   UserData `json:"data"`
}

// StatusResponse is the body of endpoints that only report success.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the error envelope written by the server's error formatter.
// Error and Stack are only present in development mode.
type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// LoginRequest is the body of POST /users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the body of POST /users/signup.
type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Validate performs the structural checks shared by client and server.
// The server applies the full account rules on top.
func (r SignupRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return errors.New("Please insert your name")
	case strings.TrimSpace(r.Email) == "":
		return errors.New("Please insert your email address")
	case r.Password == "":
		return errors.New("Please provide a password")
	case r.PasswordConfirm == "":
		return errors.New("Please confirm your password")
	}
	return nil
}

// UpdatePasswordRequest is the body of PATCH /users/updateMyPassword.
type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

package authapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"closet/cmd/identity"
	"closet/cmd/internal/apperr"
	v1 "closet/shared/contracts/auth/v1"
)

const (
	msgMissingCredentials = "Please provide an email and a password!"
	msgBadCredentials     = "Incorrect email or password"
	msgWrongPassword      = "Your current password is wrong."
	msgInvalidBody        = "Invalid request body."
)

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) error {
	var req v1.SignupRequest
	if err := h.decode(w, r, &req); err != nil {
		return err
	}

	u, err := h.accounts.Signup(r.Context(), identity.SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Now:             h.now(),
	})
	if err != nil {
		return accountError(err)
	}

	if err := h.sendTokens(w, u, http.StatusCreated); err != nil {
		return err
	}
	h.record(r, AuditSignup, u.ID, nil)
	return nil
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) error {
	var req v1.LoginRequest
	if err := h.decode(w, r, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperr.BadRequest(v1.CodeInvalidRequest, msgMissingCredentials)
	}

	u, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if identity.IsInvalidCredentials(err) || identity.IsInvalidInput(err) {
			h.record(r, AuditLoginFailed, "", map[string]any{"email": identity.NormalizeEmail(req.Email)})
			return apperr.Wrap(err, http.StatusUnauthorized, v1.CodeInvalidCredentials, msgBadCredentials)
		}
		return apperr.Internal(err)
	}

	if err := h.sendTokens(w, u, http.StatusOK); err != nil {
		return err
	}
	h.record(r, AuditLoginSuccess, u.ID, nil)
	return nil
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, h.cookies.Clear())
	writeJSON(w, http.StatusOK, v1.StatusResponse{Status: v1.StatusSuccess})
	h.record(r, AuditLogout, "", nil)
	return nil
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) error {
	u, ok := UserFromContext(r.Context())
	if !ok {
		return apperr.Unauthorized(v1.CodeNoToken, v1.MessageNoToken)
	}
	writeJSON(w, http.StatusOK, v1.MeResponse{
		Status: v1.StatusSuccess,
		Data:   v1.UserData{User: toUser(u)},
	})
	return nil
}

func (h *Handler) handleDeleteMe(w http.ResponseWriter, r *http.Request) error {
	u, ok := UserFromContext(r.Context())
	if !ok {
		return apperr.Unauthorized(v1.CodeNoToken, v1.MessageNoToken)
	}

	ctx := r.Context()
	if h.cleaner != nil {
		if err := h.cleaner.PurgeUser(ctx, u.ID); err != nil {
			return apperr.Internal(fmt.Errorf("purge user data: %w", err))
		}
	}
	if err := h.accounts.Delete(ctx, u.ID); err != nil && !identity.IsNotFound(err) {
		return apperr.Internal(err)
	}

	http.SetCookie(w, h.cookies.Clear())
	w.WriteHeader(http.StatusNoContent)
	h.record(r, AuditAccountDelete, u.ID, nil)
	return nil
}

func (h *Handler) handleUpdatePassword(w http.ResponseWriter, r *http.Request) error {
	u, ok := UserFromContext(r.Context())
	if !ok {
		return apperr.Unauthorized(v1.CodeNoToken, v1.MessageNoToken)
	}

	var req v1.UpdatePasswordRequest
	if err := h.decode(w, r, &req); err != nil {
		return err
	}

	updated, err := h.accounts.ChangePassword(r.Context(), u.ID, req.PasswordCurrent, req.Password, req.PasswordConfirm, h.now())
	if err != nil {
		if identity.IsInvalidCredentials(err) {
			return apperr.Wrap(err, http.StatusUnauthorized, v1.CodeInvalidCredentials, msgWrongPassword)
		}
		return accountError(err)
	}

	if err := h.sendTokens(w, updated, http.StatusOK); err != nil {
		return err
	}
	h.record(r, AuditPasswordChange, u.ID, nil)
	return nil
}

// sendTokens issues a fresh pair, sets the refresh cookie and writes the
// access token with the public user projection.
func (h *Handler) sendTokens(w http.ResponseWriter, u identity.User, status int) error {
	now := h.now()
	pair, err := h.issuer.IssuePair(u.ID, now)
	if err != nil {
		return apperr.Internal(fmt.Errorf("issue tokens: %w", err))
	}

	http.SetCookie(w, h.cookies.Issue(pair.RefreshToken, now))
	writeJSON(w, status, v1.AuthResponse{
		Status: v1.StatusSuccess,
		Token:  pair.AccessToken,
		Data:   v1.UserData{User: toUser(u)},
	})
	return nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	err := decodeJSON(w, r, h.cfg.maxBody(), dst)
	if err == nil {
		return nil
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return apperr.Wrap(err, http.StatusRequestEntityTooLarge, v1.CodeInvalidRequest, "Request body too large.")
	}
	if errors.Is(err, io.EOF) {
		return apperr.Wrap(err, http.StatusBadRequest, v1.CodeInvalidRequest, "Request body is required.")
	}
	return apperr.Wrap(err, http.StatusBadRequest, v1.CodeInvalidRequest, msgInvalidBody)
}

// accountError maps identity failures onto API errors.
func accountError(err error) error {
	var ve identity.ValidationError
	var ce identity.ConflictError
	switch {
	case errors.As(err, &ve):
		return apperr.Wrap(err, http.StatusBadRequest, v1.CodeValidation, ve.Message())
	case errors.As(err, &ce):
		return apperr.Wrap(err, http.StatusConflict, v1.CodeDuplicateEmail, "An account with this email already exists.")
	case identity.IsInvalidInput(err):
		var oe identity.OpError
		msg := "Invalid input data."
		if errors.As(err, &oe) && oe.Msg != "" {
			msg = oe.Msg
		}
		return apperr.Wrap(err, http.StatusBadRequest, v1.CodeValidation, msg)
	case identity.IsNotFound(err):
		return apperr.Wrap(err, http.StatusUnauthorized, v1.CodeStaleSubject, v1.MessageStaleSubject)
	default:
		return apperr.Internal(err)
	}
}

func toUser(u identity.User) *v1.User {
	out := &v1.User{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		PasswordChangedAt: u.PasswordChangedAt,
	}
	if !u.CreatedAt.IsZero() {
		created := u.CreatedAt
		out.CreatedAt = &created
	}
	return out
}

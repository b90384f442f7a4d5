package authapi

import (
	"context"
	"errors"
	"net/http"

	"closet/cmd/identity"
	"closet/cmd/internal/apperr"
	"closet/cmd/internal/auth/session"
	v1 "closet/shared/contracts/auth/v1"
)

type userCtxKey struct{}

// ContextWithUser returns ctx carrying the authenticated user.
func ContextWithUser(ctx context.Context, u identity.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext returns the user attached by Protect.
func UserFromContext(ctx context.Context) (identity.User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(identity.User)
	return u, ok
}

// Protect admits requests with a valid access token whose subject still
// exists and has not changed its password since the token was issued.
// Checks run in that order and the first failure wins.
func (h *Handler) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := h.authenticate(r)
		if err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) && ae.Operational {
				h.observer.AuthFailure(ae.Code)
			}
			h.resp.Write(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), u)))
	})
}

func (h *Handler) authenticate(r *http.Request) (identity.User, error) {
	token := bearerToken(r)
	if token == "" {
		return identity.User{}, apperr.Unauthorized(v1.CodeNoToken, v1.MessageNoToken)
	}

	claims, err := h.issuer.VerifyAccess(token, h.now())
	if err != nil {
		if errors.Is(err, session.ErrTokenExpired) {
			return identity.User{}, apperr.Unauthorized(v1.CodeTokenExpired, v1.MessageTokenExpired)
		}
		return identity.User{}, apperr.Unauthorized(v1.CodeInvalidToken, v1.MessageInvalidToken)
	}

	u, err := h.accounts.Lookup(r.Context(), claims.Subject)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.User{}, apperr.Unauthorized(v1.CodeStaleSubject, v1.MessageStaleSubject)
		}
		return identity.User{}, apperr.Internal(err)
	}

	if u.ChangedPasswordAfter(claims.IssuedAt) {
		return identity.User{}, apperr.Unauthorized(v1.CodePasswordChanged, v1.MessagePasswordChanged)
	}
	return u, nil
}

package authapi

import (
	"net/http"

	"closet/cmd/identity"
	"closet/cmd/internal/apperr"
	v1 "closet/shared/contracts/auth/v1"
)

// handleRefresh trades the refresh cookie for a new token pair.
// A request without the cookie answers 204 with no body.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) error {
	raw, ok := h.cookies.Read(r)
	if !ok {
		h.observer.Refresh(RefreshNoCookie)
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	claims, err := h.issuer.VerifyRefresh(raw, h.now())
	if err != nil {
		h.observer.Refresh(RefreshInvalid)
		return apperr.Wrap(err, http.StatusUnauthorized, v1.CodeRefreshInvalid, v1.MessageRefreshInvalid)
	}

	u, err := h.accounts.Lookup(r.Context(), claims.Subject)
	if err != nil {
		if identity.IsNotFound(err) {
			h.observer.Refresh(RefreshNoSubject)
			return apperr.Wrap(err, http.StatusUnauthorized, v1.CodeSubjectNotFound, v1.MessageSubjectNotFound)
		}
		return apperr.Internal(err)
	}

	if err := h.sendTokens(w, u, http.StatusOK); err != nil {
		return err
	}
	h.observer.Refresh(RefreshIssued)
	h.record(r, AuditRefresh, u.ID, nil)
	return nil
}

package apperr

import (
	"encoding/json"
	"log/slog"
	"net/http"

	v1 "closet/shared/contracts/auth/v1"
)

// HandlerFunc is an http handler that reports failures instead of writing them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Responder is the single error-formatting stage.
type Responder struct {
	log *slog.Logger
	dev bool

	observe func(*Error)
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithObserver registers a callback that sees every formatted error.
func WithObserver(fn func(*Error)) ResponderOption {
	return func(rs *Responder) {
		rs.observe = fn
	}
}

// NewResponder builds a Responder. dev enables full error detail in bodies.
func NewResponder(log *slog.Logger, dev bool, opts ...ResponderOption) *Responder {
	if log == nil {
		log = slog.Default()
	}
	rs := &Responder{log: log, dev: dev}
	for _, opt := range opts {
		if opt != nil {
			opt(rs)
		}
	}
	return rs
}

// Handle adapts fn to http.Handler, funnelling its error into Write.
func (rs *Responder) Handle(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			rs.Write(w, r, err)
		}
	})
}

// Write formats err as the JSON error envelope.
func (rs *Responder) Write(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	ae := From(err)
	if rs.observe != nil {
		rs.observe(ae)
	}

	if rs.dev {
		body := v1.ErrorResponse{
			Status:  ae.Status(),
			Code:    ae.Code,
			Message: ae.Message,
			Error:   err.Error(),
			Stack:   string(ae.Stack),
		}
		if !ae.Operational {
			rs.log.Error("http.error.unexpected", "err", err, "path", r.URL.Path)
		}
		writeJSON(w, ae.StatusCode, body)
		return
	}

	if ae.Operational {
		writeJSON(w, ae.StatusCode, v1.ErrorResponse{
			Status:  ae.Status(),
			Code:    ae.Code,
			Message: ae.Message,
		})
		return
	}

	rs.log.Error("http.error.unexpected", "err", err, "path", r.URL.Path, "method", r.Method)
	writeJSON(w, http.StatusInternalServerError, v1.ErrorResponse{
		Status:  v1.StatusError,
		Code:    v1.CodeInternal,
		Message: v1.MessageInternal,
	})
}

// NotFoundHandler answers unmatched routes with a 404 operational error.
func (rs *Responder) NotFoundHandler() http.Handler {
	return rs.Handle(func(_ http.ResponseWriter, r *http.Request) error {
		return NotFound("Can't find " + r.URL.RequestURI() + " on this server!")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

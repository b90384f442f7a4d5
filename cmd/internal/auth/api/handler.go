package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"closet/cmd/identity"
	"closet/cmd/internal/apperr"
	"closet/cmd/internal/auth/session"
	v1 "closet/shared/contracts/auth/v1"
)

// Observer receives auth outcomes, typically for metrics.
type Observer interface {
	AuthFailure(code string)
	Refresh(outcome string)
}

// Refresh outcomes reported to Observer.
const (
	RefreshIssued    = "issued"
	RefreshNoCookie  = "no_cookie"
	RefreshInvalid   = "invalid"
	RefreshNoSubject = "no_subject"
)

// AccountCleaner removes data owned by a user before the account is deleted.
type AccountCleaner interface {
	PurgeUser(ctx context.Context, userID string) error
}

type noopObserver struct{}

func (noopObserver) AuthFailure(string) {}
func (noopObserver) Refresh(string)     {}

// Handler wires HTTP auth endpoints to the account service and token issuer.
type Handler struct {
	log *slog.Logger
	cfg Config

	accounts *identity.Accounts
	issuer   *session.Issuer
	cookies  session.CookiePolicy
	resp     *apperr.Responder

	audit    Auditor
	observer Observer
	cleaner  AccountCleaner
	now      func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithAuditor overrides the default log-backed auditor.
func WithAuditor(a Auditor) HandlerOption {
	return func(h *Handler) {
		if a != nil {
			h.audit = a
		}
	}
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) HandlerOption {
	return func(h *Handler) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithAccountCleaner registers the purge step run by deleteMe.
func WithAccountCleaner(c AccountCleaner) HandlerOption {
	return func(h *Handler) {
		if c != nil {
			h.cleaner = c
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, accounts *identity.Accounts, issuer *session.Issuer, cookies session.CookiePolicy, resp *apperr.Responder, opts ...HandlerOption) (*Handler, error) {
	if accounts == nil {
		return nil, errors.New("auth: nil accounts")
	}
	if issuer == nil {
		return nil, errors.New("auth: nil issuer")
	}
	if log == nil {
		log = slog.Default()
	}
	if resp == nil {
		resp = apperr.NewResponder(log, false)
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		accounts: accounts,
		issuer:   issuer,
		cookies:  cookies,
		resp:     resp,
		audit:    LogAuditor{Log: log},
		observer: noopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires the /users routes onto r (the /api/v1 router).
func (h *Handler) Register(r *mux.Router) {
	if h == nil || r == nil {
		return
	}
	handle := func(path string, fn apperr.HandlerFunc, methods ...string) {
		r.Handle(path, h.resp.Handle(fn)).Methods(methods...)
	}
	protected := func(path string, fn apperr.HandlerFunc, methods ...string) {
		r.Handle(path, h.Protect(h.resp.Handle(fn))).Methods(methods...)
	}

	handle(v1.PathSignup, h.handleSignup, http.MethodPost)
	handle(v1.PathLogin, h.handleLogin, http.MethodPost)
	handle(v1.PathRefresh, h.handleRefresh, http.MethodGet, http.MethodPost)
	handle(v1.PathLogout, h.handleLogout, http.MethodGet, http.MethodPost)

	protected(v1.PathMe, h.handleMe, http.MethodGet)
	protected(v1.PathDeleteMe, h.handleDeleteMe, http.MethodDelete)
	protected(v1.PathUpdatePassword, h.handleUpdatePassword, http.MethodPatch)
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return net.ParseIP(strings.TrimSpace(r.RemoteAddr))
	}
	return net.ParseIP(host)
}

// ClientIP exposes the auth package's client address rules to other middleware.
func ClientIP(r *http.Request, trustProxy bool) net.IP { return clientIP(r, trustProxy) }

func parseForwardedIP(raw string) net.IP {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	first := strings.TrimSpace(strings.Split(raw, ",")[0])
	return net.ParseIP(first)
}

func (h *Handler) record(r *http.Request, action, userID string, meta map[string]any) {
	h.audit.Record(r.Context(), AuditEvent{
		Action:    action,
		UserID:    userID,
		IP:        clientIP(r, h.cfg.TrustProxy),
		UserAgent: r.UserAgent(),
		Meta:      meta,
	})
}

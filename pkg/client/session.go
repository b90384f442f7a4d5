package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	v1 "closet/shared/contracts/auth/v1"
)

// DefaultCooldown is how long a logout suppresses silent refreshes.
const DefaultCooldown = time.Second

// stubUserID marks a user known only through a refreshed token.
const stubUserID = "self"

// Session is the client-side auth state for one user.
//
// All methods are safe for concurrent use.
type Session struct {
	base     *url.URL
	raw      *http.Client
	api      *http.Client
	log      *slog.Logger
	nav      Navigator
	cooldown time.Duration

	mu            sync.Mutex
	token         string
	user          *v1.User
	justLoggedOut bool
	// gen increments on every logout. A refresh applies its result only if
	// gen is unchanged since the refresh started.
	gen uint64

	flights singleflight.Group
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient injects the client used for every request. A client
// without a cookie jar is copied and given one, since the refresh token
// travels as a cookie.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		if c != nil {
			cp := *c
			s.raw = &cp
		}
	}
}

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithLogger sets the logger for swallowed failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithNavigator connects the session to the UI router.
func WithNavigator(n Navigator) Option {
	return func(s *Session) {
		if n != nil {
			s.nav = n
		}
	}
}

// New returns a signed-out Session talking to baseURL ("https://host/api/v1").
func New(baseURL string, opts ...Option) (*Session, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: base url must be absolute: %q", baseURL)
	}

	s := &Session{
		base:     u,
		log:      slog.Default(),
		nav:      noopNavigator{},
		cooldown: DefaultCooldown,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.raw == nil {
		s.raw = &http.Client{Timeout: 30 * time.Second}
	}
	if s.raw.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("client: cookie jar: %w", err)
		}
		s.raw.Jar = jar
	}

	api := *s.raw
	api.Transport = NewTransport(s, s.raw.Transport)
	s.api = &api
	return s, nil
}

func (s *Session) endpoint(path string) string {
	return s.base.String() + path
}

// AccessToken returns the cached access token or "".
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// User returns a copy of the cached user.
func (s *Session) User() (v1.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return v1.User{}, false
	}
	return *s.user, true
}

// IsAuthenticated reports whether both an access token and a user are cached.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && s.user != nil
}

// JustLoggedOut reports whether a logout cooldown is active.
func (s *Session) JustLoggedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.justLoggedOut
}

// SilentTryRefresh asks the server for a new access token using the
// refresh cookie. It never returns an error: any failure, including 204
// for a visitor without a cookie, reports false.
//
// Concurrent calls share one request. A result that arrives after a
// logout is dropped.
func (s *Session) SilentTryRefresh(ctx context.Context) bool {
	if s.JustLoggedOut() {
		return false
	}

	ch := s.flights.DoChan("refresh", func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx)), nil
	})
	select {
	case res := <-ch:
		ok, _ := res.Val.(bool)
		return ok
	case <-ctx.Done():
		return false
	}
}

func (s *Session) refresh(ctx context.Context) bool {
	s.mu.Lock()
	if s.justLoggedOut {
		s.mu.Unlock()
		return false
	}
	gen := s.gen
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(v1.PathRefresh), nil)
	if err != nil {
		return false
	}
	res, err := s.raw.Do(req)
	if err != nil {
		s.log.Debug("client.refresh.fail", "err", err)
		return false
	}
	if res.StatusCode != http.StatusOK {
		_ = statusError(res)
		return false
	}

	var body v1.AuthResponse
	err = json.NewDecoder(res.Body).Decode(&body)
	_ = res.Body.Close()
	if err != nil || body.Token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.justLoggedOut {
		s.log.Debug("client.refresh.discarded", "reason", "logged_out")
		return false
	}
	s.token = body.Token
	if s.user == nil {
		if body.Data.User != nil {
			u := *body.Data.User
			s.user = &u
		} else {
			s.user = &v1.User{ID: stubUserID}
		}
	}
	return true
}

// EnsureAuthForProtected makes sure a token is cached before a protected
// view is shown, refreshing silently when needed.
func (s *Session) EnsureAuthForProtected(ctx context.Context) bool {
	if s.AccessToken() == "" && !s.SilentTryRefresh(ctx) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return false
	}
	if s.user == nil {
		s.user = &v1.User{ID: stubUserID}
	}
	return true
}

// Result is the outcome of a successful Login or Signup.
type Result struct {
	Token string
	User  v1.User
}

// SignupInput is the signup form.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

// Login signs in and replaces the cached token and user.
func (s *Session) Login(ctx context.Context, email, password string) (Result, error) {
	return s.authenticate(ctx, v1.PathLogin, v1.LoginRequest{Email: email, Password: password})
}

// Signup creates the account and signs in.
func (s *Session) Signup(ctx context.Context, in SignupInput) (Result, error) {
	req := v1.SignupRequest{
		Name:            in.Name,
		Email:           in.Email,
		Password:        in.Password,
		PasswordConfirm: in.PasswordConfirm,
	}
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	return s.authenticate(ctx, v1.PathSignup, req)
}

func (s *Session) authenticate(ctx context.Context, path string, payload any) (Result, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(path), bytes.NewReader(b))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.raw.Do(req)
	if err != nil {
		return Result{}, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Result{}, statusError(res)
	}
	defer func() { _ = res.Body.Close() }()

	var body v1.AuthResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("client: decode auth response: %w", err)
	}
	if body.Token == "" || body.Data.User == nil {
		return Result{}, errors.New("client: auth response without token or user")
	}

	s.setSession(body.Token, *body.Data.User)
	return Result{Token: body.Token, User: *body.Data.User}, nil
}

// setSession replaces token and user and re-enables refreshes.
func (s *Session) setSession(token string, u v1.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &u
	s.justLoggedOut = false
}

// LogoutOptions tunes Logout.
type LogoutOptions struct {
	// Silent suppresses logging of a failed server call.
	Silent bool
}

// Logout ends the session locally and asks the server to clear the
// refresh cookie. Local state is cleared even when the server call fails.
//
// Silent refreshes are refused while the server call runs and for the
// cooldown that follows it; any refresh already in flight is discarded.
func (s *Session) Logout(ctx context.Context, opts LogoutOptions) {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.justLoggedOut = true
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if err := s.callLogout(ctx); err != nil && !opts.Silent {
		s.log.Error("client.logout.fail", "err", err)
	}

	// The cookie is only gone once the server answered.
	time.AfterFunc(s.cooldown, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen == gen {
			s.justLoggedOut = false
		}
	})
}

func (s *Session) callLogout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(v1.PathLogout), nil)
	if err != nil {
		return err
	}
	res, err := s.raw.Do(req)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return statusError(res)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return res.Body.Close()
}

// DeleteAccount deletes the signed-in account and its items, then logs out.
func (s *Session) DeleteAccount(ctx context.Context) error {
	res, err := s.do(ctx, http.MethodDelete, v1.PathDeleteMe, nil, "")
	if err != nil {
		return err
	}
	_ = res.Body.Close()
	s.Logout(ctx, LogoutOptions{Silent: true})
	return nil
}

// do sends an intercepted request and converts non-2xx responses into
// *StatusError. The caller closes the body on success.
func (s *Session) do(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(path), rd)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := s.api.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, statusError(res)
	}
	return res, nil
}

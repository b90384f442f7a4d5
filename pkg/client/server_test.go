package client

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	v1 "closet/shared/contracts/auth/v1"
)

const cookieName = "refreshJwt"

// fakeServer is a minimal closet API with scriptable auth behavior.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	seq           int
	access        string
	refreshStatus int  // non-zero forces this status from /refresh
	omitUser      bool // refresh responds without data.user
	always401     bool // protected routes reject every token
	logoutDelay   time.Duration
	hits          map[string]int
	lastBody      map[string]string

	// refreshStarted/refreshRelease gate /refresh when non-nil.
	refreshStarted chan struct{}
	refreshRelease chan struct{}
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{t: t, hits: map[string]int{}, lastBody: map[string]string{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1"+v1.PathLogin, fs.login)
	mux.HandleFunc("/api/v1"+v1.PathSignup, fs.login)
	mux.HandleFunc("/api/v1"+v1.PathRefresh, fs.refresh)
	mux.HandleFunc("/api/v1"+v1.PathLogout, fs.logout)
	mux.HandleFunc("/api/v1"+v1.PathMe, fs.protected(fs.me))
	mux.HandleFunc("/api/v1"+v1.PathDeleteMe, fs.protected(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("/api/v1"+v1.PathUpdatePassword, fs.protected(func(w http.ResponseWriter, r *http.Request) {
		fs.issue(w, http.StatusOK)
	}))
	mux.HandleFunc("/api/v1"+v1.PathClosets, fs.protected(func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(w, http.StatusOK, []Item{{ID: "01ITEM", Title: "Coat"}})
	}))
	mux.HandleFunc("/api/v1/boom", func(w http.ResponseWriter, r *http.Request) {
		fs.hit(r)
		writeTestJSON(w, http.StatusInternalServerError, v1.ErrorResponse{
			Status: v1.StatusError, Code: v1.CodeInternal, Message: v1.MessageInternal,
		})
	})

	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) baseURL() string { return fs.srv.URL + "/api/v1" }

func (fs *fakeServer) hit(r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	fs.hits[path]++
	fs.lastBody[path] = string(b)
}

func (fs *fakeServer) count(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

func (fs *fakeServer) body(path string) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.lastBody[path]
}

// expireAccess invalidates the current access token server-side.
func (fs *fakeServer) expireAccess() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.access = "expired"
}

func (fs *fakeServer) set(fn func(fs *fakeServer)) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fn(fs)
}

func (fs *fakeServer) issue(w http.ResponseWriter, status int) {
	fs.mu.Lock()
	fs.seq++
	fs.access = "tok-" + strconv.Itoa(fs.seq)
	tok, omit := fs.access, fs.omitUser
	fs.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "r-" + tok, Path: "/", HttpOnly: true})
	resp := v1.AuthResponse{Status: v1.StatusSuccess, Token: tok}
	if !omit {
		resp.Data.User = &v1.User{ID: "01USER", Name: "Ada", Email: "ada@example.com"}
	}
	writeTestJSON(w, status, resp)
}

func (fs *fakeServer) login(w http.ResponseWriter, r *http.Request) {
	fs.hit(r)
	var req v1.LoginRequest
	_ = json.Unmarshal([]byte(fs.body(strings.TrimPrefix(r.URL.Path, "/api/v1"))), &req)
	if req.Password != "correct horse" {
		writeTestJSON(w, http.StatusUnauthorized, v1.ErrorResponse{
			Status: v1.StatusFail, Code: v1.CodeInvalidCredentials, Message: "Incorrect email or password",
		})
		return
	}
	status := http.StatusOK
	if strings.HasSuffix(r.URL.Path, v1.PathSignup) {
		status = http.StatusCreated
	}
	fs.issue(w, status)
}

func (fs *fakeServer) refresh(w http.ResponseWriter, r *http.Request) {
	fs.hit(r)

	fs.mu.Lock()
	started, release, forced := fs.refreshStarted, fs.refreshRelease, fs.refreshStatus
	fs.mu.Unlock()
	if started != nil {
		started <- struct{}{}
		<-release
	}

	if _, err := r.Cookie(cookieName); err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if forced != 0 {
		writeTestJSON(w, forced, v1.ErrorResponse{
			Status: v1.StatusFail, Code: v1.CodeRefreshInvalid, Message: v1.MessageRefreshInvalid,
		})
		return
	}
	fs.issue(w, http.StatusOK)
}

func (fs *fakeServer) logout(w http.ResponseWriter, r *http.Request) {
	fs.hit(r)
	fs.mu.Lock()
	delay := fs.logoutDelay
	fs.mu.Unlock()
	time.Sleep(delay)
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1})
	writeTestJSON(w, http.StatusOK, v1.StatusResponse{Status: v1.StatusSuccess})
}

func (fs *fakeServer) me(w http.ResponseWriter, _ *http.Request) {
	writeTestJSON(w, http.StatusOK, v1.MeResponse{
		Status: v1.StatusSuccess,
		Data:   v1.UserData{User: &v1.User{ID: "01USER", Name: "Ada"}},
	})
}

func (fs *fakeServer) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fs.hit(r)
		fs.mu.Lock()
		want, reject := fs.access, fs.always401
		fs.mu.Unlock()

		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got == "" {
			writeTestJSON(w, http.StatusUnauthorized, v1.ErrorResponse{
				Status: v1.StatusFail, Code: v1.CodeNoToken, Message: v1.MessageNoToken,
			})
			return
		}
		if reject || got != want {
			writeTestJSON(w, http.StatusUnauthorized, v1.ErrorResponse{
				Status: v1.StatusFail, Code: v1.CodeTokenExpired, Message: v1.MessageTokenExpired,
			})
			return
		}
		next(w, r)
	}
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// recordingNavigator counts navigation side effects.
type recordingNavigator struct {
	mu           sync.Mutex
	requiresAuth bool
	login        int
	serverError  int
}

func (n *recordingNavigator) RequiresAuth() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.requiresAuth
}

func (n *recordingNavigator) GoToLogin() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.login++
}

func (n *recordingNavigator) GoToServerError() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.serverError++
}

func (n *recordingNavigator) counts() (login, serverError int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.login, n.serverError
}

func newTestSession(t *testing.T, fs *fakeServer, opts ...Option) *Session {
	t.Helper()
	base := []Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	s, err := New(fs.baseURL(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	authapi "closet/cmd/internal/auth/api"
	"closet/cmd/internal/auth/session"
	"closet/cmd/security/password"
	v1 "closet/shared/contracts/auth/v1"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Env:             "development",
		SQLitePath:      "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared",
		DBSchema:        "closet",
		RateLimitMax:    100,
		RateLimitWindow: time.Hour,
		UploadDir:       t.TempDir(),
		MaxUploadBytes:  1 << 20,
	}
}

func testDeps() Deps {
	sess := session.DefaultConfig()
	sess.AccessSecret = []byte("access-secret-for-tests-0123456789")
	sess.RefreshSecret = []byte("refresh-secret-for-tests-0123456789")
	return Deps{
		Session:  sess,
		Auth:     authapi.Config{MaxBodyBytes: 10 << 10},
		Password: password.Params{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1},
	}
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	a, err := New(context.Background(), cfg, testDeps(), discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = a.Close()
	})
	return srv
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestApp_OperationalEndpoints(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	res := get(t, srv.URL+"/healthz")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("healthz=%d", res.StatusCode)
	}
	if got := res.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("security headers missing: %q", got)
	}
	if res.Header.Get("X-Request-ID") == "" {
		t.Fatal("request id missing")
	}

	if res := get(t, srv.URL+"/readyz"); res.StatusCode != http.StatusOK {
		t.Fatalf("readyz=%d", res.StatusCode)
	}

	res = get(t, srv.URL+"/metrics")
	body := readBody(t, res)
	if !strings.Contains(body, "closet_http_requests_total") {
		t.Fatalf("metrics missing request counter:\n%s", body)
	}
}

func TestApp_ReadinessRequiresPostgres(t *testing.T) {
	cfg := testConfig(t)
	cfg.ReadinessRequireDB = true
	srv := newTestServer(t, cfg)

	if res := get(t, srv.URL+"/readyz"); res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz=%d want 503", res.StatusCode)
	}
}

func TestApp_UnknownRoute(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	res := get(t, srv.URL+"/api/v1/wardrobes?x=1")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d", res.StatusCode)
	}
	var body v1.ErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message != "Can't find /api/v1/wardrobes?x=1 on this server!" {
		t.Fatalf("message=%q", body.Message)
	}
}

func TestApp_SignupThenMe(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	payload, _ := json.Marshal(v1.SignupRequest{
		Name:            "Ada",
		Email:           "ada@example.com",
		Password:        "correct horse",
		PasswordConfirm: "correct horse",
	})
	res, err := http.Post(srv.URL+"/api/v1"+v1.PathSignup, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("signup status=%d body=%s", res.StatusCode, readBody(t, res))
	}
	var auth v1.AuthResponse
	if err := json.NewDecoder(res.Body).Decode(&auth); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if auth.Token == "" {
		t.Fatal("missing access token")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/closets", nil)
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	listRes, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer func() { _ = listRes.Body.Close() }()
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list status=%d", listRes.StatusCode)
	}

	if res := get(t, srv.URL+"/api/v1/closets"); res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous list status=%d", res.StatusCode)
	}
}

func TestApp_RateLimitMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimitMax = 2
	srv := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		if res := get(t, srv.URL+"/api/v1/users/logout"); res.StatusCode != http.StatusOK {
			t.Fatalf("request %d status=%d", i, res.StatusCode)
		}
	}
	res := get(t, srv.URL+"/api/v1/users/logout")
	if res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status=%d want 429", res.StatusCode)
	}
	if res.Header.Get("Retry-After") == "" {
		t.Fatal("Retry-After missing")
	}

	// Operational endpoints are outside /api.
	if res := get(t, srv.URL+"/healthz"); res.StatusCode != http.StatusOK {
		t.Fatalf("healthz=%d", res.StatusCode)
	}
}

func TestApp_RateLimitRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.RateLimitMax = 1
	cfg.RedisURL = "redis://" + mr.Addr()
	srv := newTestServer(t, cfg)

	if res := get(t, srv.URL+"/api/v1/users/logout"); res.StatusCode != http.StatusOK {
		t.Fatalf("first status=%d", res.StatusCode)
	}
	if res := get(t, srv.URL+"/api/v1/users/logout"); res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second status=%d want 429", res.StatusCode)
	}
	if !mr.Exists("closet:rl:127.0.0.1") {
		t.Fatalf("limiter key missing; keys=%v", mr.Keys())
	}
}

func TestValidateSecurityConfig(t *testing.T) {
	t.Parallel()

	prodSess := session.DefaultConfig()
	prodSess.Production = true

	cases := []struct {
		name    string
		cfg     Config
		sess    session.Config
		wantErr bool
	}{
		{name: "dev defaults", cfg: Config{Env: "development"}, sess: session.DefaultConfig()},
		{name: "wildcard with credentials", cfg: Config{CORSAllowedOrigins: []string{"*"}, CORSAllowCredentials: true}, wantErr: true},
		{name: "prod cookie mismatch", cfg: Config{Env: "production", SQLitePath: "file:closet.db"}, sess: session.DefaultConfig(), wantErr: true},
		{name: "prod memory db", cfg: Config{Env: "production", SQLitePath: "file::memory:"}, sess: prodSess, wantErr: true},
		{name: "prod ok", cfg: Config{Env: "production", DatabaseURL: "postgres://db/closet"}, sess: prodSess},
	}
	for _, tc := range cases {
		err := ValidateSecurityConfig(tc.cfg, tc.sess)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: err=%v wantErr=%v", tc.name, err, tc.wantErr)
		}
	}
}

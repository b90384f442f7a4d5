package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AccessSecret = []byte("access-secret-for-tests")
	cfg.RefreshSecret = []byte("refresh-secret-for-tests")
	return cfg
}

func mustIssuer(t *testing.T, cfg Config) *Issuer {
	t.Helper()
	iss, err := NewIssuer(cfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestNewIssuer_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{name: "no access secret", mut: func(c *Config) { c.AccessSecret = nil }},
		{name: "no refresh secret", mut: func(c *Config) { c.RefreshSecret = nil }},
		{name: "shared secret", mut: func(c *Config) { c.RefreshSecret = c.AccessSecret }},
		{name: "zero access ttl", mut: func(c *Config) { c.AccessTokenTTL = 0 }},
		{name: "negative refresh ttl", mut: func(c *Config) { c.RefreshTokenTTL = -time.Hour }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tc.mut(&cfg)
			if _, err := NewIssuer(cfg); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestIssuePair_RoundTrip(t *testing.T) {
	t.Parallel()

	iss := mustIssuer(t, testConfig())
	now := time.Now().UTC()

	for _, subject := range []string{"01J9Z6V3M0000000000000000A", "self", "user-42"} {
		pair, err := iss.IssuePair(subject, now)
		if err != nil {
			t.Fatalf("IssuePair(%q): %v", subject, err)
		}
		if pair.AccessToken == pair.RefreshToken {
			t.Fatalf("access and refresh tokens must differ")
		}

		ac, err := iss.VerifyAccess(pair.AccessToken, now.Add(time.Second))
		if err != nil {
			t.Fatalf("VerifyAccess: %v", err)
		}
		if ac.Subject != subject {
			t.Fatalf("access subject mismatch: got %q want %q", ac.Subject, subject)
		}

		rc, err := iss.VerifyRefresh(pair.RefreshToken, now.Add(time.Second))
		if err != nil {
			t.Fatalf("VerifyRefresh: %v", err)
		}
		if rc.Subject != subject {
			t.Fatalf("refresh subject mismatch: got %q want %q", rc.Subject, subject)
		}
	}
}

func TestIssuePair_TokensOnlyVerifyUnderOwnSecret(t *testing.T) {
	t.Parallel()

	iss := mustIssuer(t, testConfig())
	now := time.Now().UTC()

	pair, err := iss.IssuePair("subject-1", now)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := iss.VerifyRefresh(pair.AccessToken, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token verified as refresh: %v", err)
	}
	if _, err := iss.VerifyAccess(pair.RefreshToken, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token verified as access: %v", err)
	}
}

func TestIssuePair_Expirations(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.AccessTokenTTL = time.Hour
	cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	iss := mustIssuer(t, cfg)
	now := time.Unix(1_700_000_000, 0).UTC()

	pair, err := iss.IssuePair("subject-1", now)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if !pair.AccessExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("access exp mismatch: %v", pair.AccessExpiresAt)
	}
	if !pair.RefreshExpiresAt.Equal(now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("refresh exp mismatch: %v", pair.RefreshExpiresAt)
	}

	if _, err := iss.VerifyAccess(pair.AccessToken, now.Add(2*time.Hour)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired for access, got %v", err)
	}
	if _, err := iss.VerifyRefresh(pair.RefreshToken, now.Add(2*time.Hour)); err != nil {
		t.Fatalf("refresh should still be valid: %v", err)
	}
	if _, err := iss.VerifyRefresh(pair.RefreshToken, now.Add(8*24*time.Hour)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired for refresh, got %v", err)
	}
}

func TestVerify_ExpiredWithWrongKeyIsInvalid(t *testing.T) {
	t.Parallel()

	iss := mustIssuer(t, testConfig())
	now := time.Now().UTC()
	pair, err := iss.IssuePair("subject-1", now)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	// Past expiry and under the wrong key: signature failure wins.
	if _, err := iss.VerifyRefresh(pair.AccessToken, now.Add(3*time.Hour)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_RejectsMalformedAndForeignAlgorithms(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	iss := mustIssuer(t, cfg)
	now := time.Now().UTC()

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "subject-1",
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "subject-1",
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(cfg.AccessSecret)
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}

	for _, tok := range []string{"", "not-a-jwt", "a.b.c", none, hs512} {
		if _, err := iss.VerifyAccess(tok, now); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("VerifyAccess(%q) = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestVerify_RequiresSubjectAndIssuer(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	iss := mustIssuer(t, cfg)
	now := time.Now().UTC()

	sign := func(c jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(cfg.AccessSecret)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	noSubject := sign(jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	otherIssuer := sign(jwt.RegisteredClaims{
		Subject:   "subject-1",
		Issuer:    "someone-else",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	noExpiry := sign(jwt.RegisteredClaims{
		Subject:  "subject-1",
		Issuer:   cfg.Issuer,
		IssuedAt: jwt.NewNumericDate(now),
	})

	for name, tok := range map[string]string{"no subject": noSubject, "other issuer": otherIssuer, "no expiry": noExpiry} {
		if _, err := iss.VerifyAccess(tok, now); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestIssuePair_EmptySubject(t *testing.T) {
	t.Parallel()

	iss := mustIssuer(t, testConfig())
	if _, err := iss.IssuePair("  ", time.Now()); err == nil || !strings.Contains(err.Error(), "empty subject") {
		t.Fatalf("expected empty subject error, got %v", err)
	}
}

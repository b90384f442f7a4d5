package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind distinguishes the two token families. Each family has its own secret.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Pair is a freshly minted access/refresh token pair.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Issuer mints and verifies access and refresh tokens.
// It holds no mutable state and is safe for concurrent use.
type Issuer struct {
	issuer string
	skew   time.Duration

	accessKey  []byte
	accessTTL  time.Duration
	refreshKey []byte
	refreshTTL time.Duration
}

// NewIssuer builds an Issuer from cfg. It returns ErrConfig when the secrets
// are missing or shared, or when a TTL is not positive.
func NewIssuer(cfg Config) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Issuer{
		issuer:     strings.TrimSpace(cfg.Issuer),
		skew:       cfg.ClockSkew,
		accessKey:  append([]byte(nil), cfg.AccessSecret...),
		accessTTL:  cfg.AccessTokenTTL,
		refreshKey: append([]byte(nil), cfg.RefreshSecret...),
		refreshTTL: cfg.RefreshTokenTTL,
	}, nil
}

// IssuePair signs a new access token and refresh token for subjectID.
func (i *Issuer) IssuePair(subjectID string, now time.Time) (Pair, error) {
	if strings.TrimSpace(subjectID) == "" {
		return Pair{}, fmt.Errorf("session: empty subject")
	}
	access, accessExp, err := i.sign(KindAccess, subjectID, now)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := i.sign(KindRefresh, subjectID, now)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess checks an access token at time now.
func (i *Issuer) VerifyAccess(token string, now time.Time) (Claims, error) {
	return i.verify(KindAccess, token, now)
}

// VerifyRefresh checks a refresh token at time now.
func (i *Issuer) VerifyRefresh(token string, now time.Time) (Claims, error) {
	return i.verify(KindRefresh, token, now)
}

func (i *Issuer) keyFor(kind Kind) ([]byte, time.Duration) {
	if kind == KindRefresh {
		return i.refreshKey, i.refreshTTL
	}
	return i.accessKey, i.accessTTL
}

func (i *Issuer) sign(kind Kind, subjectID string, now time.Time) (string, time.Time, error) {
	key, ttl := i.keyFor(kind)
	exp := now.Add(ttl)

	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign %s token: %w", kind, err)
	}
	return signed, exp, nil
}

func (i *Issuer) verify(kind Kind, token string, now time.Time) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}
	key, _ := i.keyFor(kind)

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	if i.skew > 0 {
		opts = append(opts, jwt.WithLeeway(i.skew))
	}

	var rc jwt.RegisteredClaims
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, &rc, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		// The signature is checked before claims, so an expired token here
		// was signed with this kind's key.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(rc.Subject) == "" || rc.IssuedAt == nil || rc.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		Subject:   rc.Subject,
		IssuedAt:  rc.IssuedAt.Time,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}

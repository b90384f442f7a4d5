package session

import (
	"net/http"
	"strings"
	"time"
)

// CookiePolicy encodes how the refresh token travels in a cookie.
type CookiePolicy struct {
	Name          string
	Path          string
	ExpiresInDays int
	Production    bool
}

// NewCookiePolicy derives the refresh cookie policy from cfg.
func NewCookiePolicy(cfg Config) CookiePolicy {
	p := CookiePolicy{
		Name:          cfg.CookieName,
		Path:          cfg.CookiePath,
		ExpiresInDays: cfg.CookieExpiresInDays,
		Production:    cfg.Production,
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = "refreshJwt"
	}
	if p.Path == "" {
		p.Path = "/"
	}
	if p.ExpiresInDays <= 0 {
		p.ExpiresInDays = 7
	}
	return p
}

// base returns the attributes shared by issue and clear. The browser only
// treats two Set-Cookie headers as the same cookie when these match.
func (p CookiePolicy) base() http.Cookie {
	c := http.Cookie{
		Name:     p.Name,
		Path:     p.Path,
		HttpOnly: true,
	}
	if p.Production {
		c.Secure = true
		c.SameSite = http.SameSiteStrictMode
	}
	return c
}

// Issue returns the cookie carrying a freshly minted refresh token.
func (p CookiePolicy) Issue(value string, now time.Time) *http.Cookie {
	c := p.base()
	c.Value = value
	c.Expires = now.Add(time.Duration(p.ExpiresInDays) * 24 * time.Hour)
	return &c
}

// Clear returns a cookie that makes the browser drop the refresh token.
func (p CookiePolicy) Clear() *http.Cookie {
	c := p.base()
	c.Value = ""
	c.Expires = time.Unix(0, 0).UTC()
	c.MaxAge = -1
	return &c
}

// Read returns the refresh token carried by r, if any.
func (p CookiePolicy) Read(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(p.Name)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

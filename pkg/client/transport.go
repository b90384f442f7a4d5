package client

import (
	"net/http"
	"strings"

	v1 "closet/shared/contracts/auth/v1"
)

type phase int

const (
	phaseSend phase = iota
	phaseRefresh
	phaseRetry
	phaseLogout
	phaseServerError
	phaseDone
)

var phaseNames = [...]string{"send", "refresh", "retry", "logout", "serverError", "done"}

func (p phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

type event int

const (
	evOK event = iota
	evNetworkError
	evLoggedOut
	evUnauthorized
	evUnauthorizedFinal
	evServerError
	evRefreshed
	evRefreshFailed
)

var eventNames = [...]string{
	"ok", "networkError", "loggedOut", "unauthorized",
	"unauthorizedFinal", "serverError", "refreshed", "refreshFailed",
}

func (e event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[e]
}

// transitions is the complete response-handling state machine. A pair
// missing from the table ends the round trip.
var transitions = map[phase]map[event]phase{
	phaseSend: {
		evOK:                phaseDone,
		evNetworkError:      phaseDone,
		evLoggedOut:         phaseDone,
		evUnauthorized:      phaseRefresh,
		evUnauthorizedFinal: phaseDone,
		evServerError:       phaseServerError,
	},
	phaseRefresh: {
		evRefreshed:     phaseRetry,
		evRefreshFailed: phaseLogout,
	},
	phaseRetry: {
		evOK:                phaseDone,
		evNetworkError:      phaseDone,
		evLoggedOut:         phaseDone,
		evUnauthorizedFinal: phaseDone,
		evServerError:       phaseServerError,
	},
	phaseLogout: {
		evOK: phaseDone,
	},
	phaseServerError: {
		evOK: phaseDone,
	},
}

func next(p phase, e event) phase {
	if to, ok := transitions[p][e]; ok {
		return to
	}
	return phaseDone
}

// Transport attaches the session's bearer token and handles 401 and 500
// responses: an expired token is refreshed and the request resent exactly
// once; a failed refresh logs the session out; a 500 notifies the
// Navigator. Every response and error is propagated unchanged otherwise.
type Transport struct {
	base    http.RoundTripper
	session *Session
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(s *Session, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, session: s}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	s := t.session

	res, err := t.send(req)
	retried := false
	orig := res

	p := next(phaseSend, t.classify(req, res, err, retried))
	for p != phaseDone {
		switch p {
		case phaseRefresh:
			retried = true
			if s.SilentTryRefresh(ctx) && s.AccessToken() != "" {
				p = next(p, evRefreshed)
			} else {
				p = next(p, evRefreshFailed)
			}

		case phaseRetry:
			if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
				// Body cannot be replayed; hand back the original 401.
				p = phaseDone
				continue
			}
			retry, rerr := cloneForRetry(req)
			if rerr != nil {
				return res, err
			}
			drain(orig)
			res, err = t.send(retry)
			p = next(p, t.classify(req, res, err, retried))

		case phaseLogout:
			s.Logout(ctx, LogoutOptions{Silent: true})
			if s.nav.RequiresAuth() {
				s.nav.GoToLogin()
			}
			p = next(p, evOK)

		case phaseServerError:
			s.nav.GoToServerError()
			p = next(p, evOK)

		default:
			p = phaseDone
		}
	}
	return res, err
}

// send attaches the current bearer token to a copy of req.
func (t *Transport) send(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if tok := t.session.AccessToken(); tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
	} else {
		r.Header.Del("Authorization")
	}
	return t.base.RoundTrip(r)
}

func (t *Transport) classify(req *http.Request, res *http.Response, err error, retried bool) event {
	switch {
	case err != nil || res == nil:
		return evNetworkError
	case res.StatusCode < 400:
		return evOK
	case t.session.JustLoggedOut():
		return evLoggedOut
	case res.StatusCode == http.StatusUnauthorized:
		if retried || t.isRefresh(req) {
			return evUnauthorizedFinal
		}
		return evUnauthorized
	case res.StatusCode == http.StatusInternalServerError:
		return evServerError
	default:
		return evOK
	}
}

func (t *Transport) isRefresh(req *http.Request) bool {
	return strings.TrimRight(req.URL.Path, "/") == t.session.base.Path+v1.PathRefresh
}

func cloneForRetry(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	return r, nil
}

func drain(res *http.Response) {
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
}

package client

import "context"

// Navigator is the UI router as seen by the session layer.
type Navigator interface {
	// RequiresAuth reports whether the current view needs a signed-in user.
	RequiresAuth() bool
	GoToLogin()
	GoToServerError()
}

type noopNavigator struct{}

func (noopNavigator) RequiresAuth() bool { return false }
func (noopNavigator) GoToLogin()         {}
func (noopNavigator) GoToServerError()   {}

// Route names used by Guard.
const (
	RouteHome    = "home"
	RouteLogin   = "login"
	RouteSignup  = "sign-up"
	RouteClosets = "closets"
)

// Route is a navigation target.
type Route struct {
	Name         string
	RequiresAuth bool
}

// Guard decides where a navigation to route should end up. It returns
// route.Name to proceed, RouteLogin when a protected route has no session,
// and RouteClosets when a signed-in user opens an entry page.
func Guard(ctx context.Context, s *Session, route Route) string {
	if route.RequiresAuth {
		if s.EnsureAuthForProtected(ctx) {
			return route.Name
		}
		return RouteLogin
	}

	switch route.Name {
	case RouteHome, RouteLogin, RouteSignup:
		if s.IsAuthenticated() || s.SilentTryRefresh(ctx) {
			return RouteClosets
		}
	}
	return route.Name
}

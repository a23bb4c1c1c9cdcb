package service

import "github.com/lumeo-app/lumeo/domain"

// GateDecision is the outcome of an access check for a navigation.
type GateDecision int

const (
	// GateAllow renders the requested view.
	GateAllow GateDecision = iota
	// GateRedirectToLogin sends the visitor to the login view.
	GateRedirectToLogin
	// GateRedirectToHome sends an authenticated user away from
	// login/signup back to the feed.
	GateRedirectToHome
	// GatePending renders a loading placeholder while the session is
	// still initializing. No redirect happens yet.
	GatePending
)

// String returns the decision name for logging.
func (d GateDecision) String() string {
	switch d {
	case GateAllow:
		return "allow"
	case GateRedirectToLogin:
		return "redirect_to_login"
	case GateRedirectToHome:
		return "redirect_to_home"
	case GatePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Route describes a navigable view as far as access control cares:
// Protected views need a session, UnauthOnly views (login, signup) are
// for visitors without one.
type Route struct {
	Name       string
	Protected  bool
	UnauthOnly bool
}

// Decide is the access gate: a pure function of the requested route and
// the current session status, with no side effects. The router must
// re-evaluate it on every navigation and on every status change.
func Decide(route Route, status domain.SessionStatus) GateDecision {
	if status == domain.SessionInitializing {
		return GatePending
	}
	if route.UnauthOnly && status == domain.SessionAuthenticated {
		return GateRedirectToHome
	}
	if route.Protected && status != domain.SessionAuthenticated {
		return GateRedirectToLogin
	}
	return GateAllow
}

// Package navigation decides where a user may go based on role and onboarding.
package navigation

import (
	"path"
	"strings"

	"github.com/spigell/hireloop/internal/authbridge"
	"github.com/spigell/hireloop/internal/store"
)

const (
	LoginPath      = "/login"
	DashboardPath  = "/dashboard"
	OnboardingPath = "/onboarding"
	PortalPath     = "/portal"
	interviewPath  = "/interview"
)

type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
}

func allow() Decision             { return Decision{Allow: true} }
func redirect(to string) Decision { return Decision{Redirect: to} }

func within(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func isPublic(p string) bool {
	return p == "/" || p == LoginPath || within(p, "/register")
}

func isCandidate(id *authbridge.Identity) bool {
	return id.Role == store.RoleCandidate
}

// Home is the landing page for a signed-in identity.
func Home(id *authbridge.Identity) string {
	switch {
	case id == nil:
		return LoginPath
	case id.Role == store.RoleAdmin:
		return DashboardPath
	case !id.Onboarded:
		return OnboardingPath
	default:
		return PortalPath
	}
}

// Resolve returns whether the identity may open the path, or where to send it.
func Resolve(id *authbridge.Identity, target string) Decision {
	p := clean(target)

	if id == nil {
		if isPublic(p) {
			return allow()
		}
		return redirect(LoginPath)
	}

	if isPublic(p) {
		return redirect(Home(id))
	}

	home := Home(id)
	switch {
	case within(p, DashboardPath):
		if isCandidate(id) {
			return redirect(home)
		}
	case within(p, PortalPath):
		if !isCandidate(id) || !id.Onboarded {
			return redirect(home)
		}
	case p == OnboardingPath:
		if !isCandidate(id) || id.Onboarded {
			return redirect(home)
		}
	case within(p, interviewPath):
		if !isCandidate(id) {
			return redirect(home)
		}
	}

	return allow()
}

func clean(target string) string {
	target = strings.TrimSpace(target)
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	if target == "" {
		return "/"
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return path.Clean(target)
}

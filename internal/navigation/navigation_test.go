package navigation

import (
	"testing"

	"github.com/spigell/hireloop/internal/authbridge"
)

func TestResolve(t *testing.T) {
	admin := &authbridge.Identity{UserID: "a", Role: "admin", Onboarded: true}
	fresh := &authbridge.Identity{UserID: "c1", Role: "candidate"}
	candidate := &authbridge.Identity{UserID: "c2", Role: "candidate", Onboarded: true}

	tests := []struct {
		name string
		id   *authbridge.Identity
		path string
		want Decision
	}{
		{name: "anonymous login", path: "/login", want: Decision{Allow: true}},
		{name: "anonymous root", path: "", want: Decision{Allow: true}},
		{name: "anonymous dashboard", path: "/dashboard", want: Decision{Redirect: "/login"}},
		{name: "anonymous interview", path: "/interview/abc?x=1", want: Decision{Redirect: "/login"}},
		{name: "admin on login", id: admin, path: "/login", want: Decision{Redirect: "/dashboard"}},
		{name: "admin on dashboard", id: admin, path: "/dashboard/jobs/1", want: Decision{Allow: true}},
		{name: "admin on portal", id: admin, path: "/portal", want: Decision{Redirect: "/dashboard"}},
		{name: "admin on onboarding", id: admin, path: "/onboarding", want: Decision{Redirect: "/dashboard"}},
		{name: "admin on interview", id: admin, path: "/interview/abc", want: Decision{Redirect: "/dashboard"}},
		{name: "fresh candidate on root", id: fresh, path: "/", want: Decision{Redirect: "/onboarding"}},
		{name: "fresh candidate on portal", id: fresh, path: "/portal/profile", want: Decision{Redirect: "/onboarding"}},
		{name: "fresh candidate on onboarding", id: fresh, path: "/onboarding", want: Decision{Allow: true}},
		{name: "fresh candidate on dashboard", id: fresh, path: "/dashboard", want: Decision{Redirect: "/onboarding"}},
		{name: "candidate on onboarding", id: candidate, path: "/onboarding", want: Decision{Redirect: "/portal"}},
		{name: "candidate on dashboard", id: candidate, path: "/dashboard", want: Decision{Redirect: "/portal"}},
		{name: "candidate on portal", id: candidate, path: "/portal/jobs", want: Decision{Allow: true}},
		{name: "candidate on interview", id: candidate, path: "/interview/abc", want: Decision{Allow: true}},
		{name: "dot segments", id: candidate, path: "/portal/../dashboard", want: Decision{Redirect: "/portal"}},
		{name: "lookalike prefix", id: candidate, path: "/dashboards", want: Decision{Allow: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.id, tt.path); got != tt.want {
				t.Fatalf("Resolve(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestHome(t *testing.T) {
	if got := Home(nil); got != LoginPath {
		t.Fatalf("Home(nil) = %q", got)
	}
	if got := Home(&authbridge.Identity{Role: "candidate"}); got != OnboardingPath {
		t.Fatalf("Home(fresh candidate) = %q", got)
	}
}

package rbac

import "testing"

func TestAuthorize(t *testing.T) {
	cases := []struct {
		name     string
		current  Role
		required Role
		want     Decision
	}{
		{name: "anonymous login gate", current: "", required: RoleUser, want: RedirectToLogin},
		{name: "anonymous admin gate", current: "", required: RoleAdmin, want: RedirectToLogin},
		{name: "user login gate", current: RoleUser, required: RoleUser, want: Allowed},
		{name: "user admin gate", current: RoleUser, required: RoleAdmin, want: Forbidden},
		{name: "admin login gate", current: RoleAdmin, required: RoleUser, want: Allowed},
		{name: "admin admin gate", current: RoleAdmin, required: RoleAdmin, want: Allowed},
		{name: "unknown role admin gate", current: Role("editor"), required: RoleAdmin, want: Forbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Authorize(tc.current, tc.required); got != tc.want {
				t.Fatalf("Authorize(%q, %q) = %v, want %v", tc.current, tc.required, got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("admin") != RoleAdmin {
		t.Fatal("expected admin")
	}
	if Normalize("user") != RoleUser {
		t.Fatal("expected user")
	}
	if Normalize("superuser") != RoleUser {
		t.Fatal("expected unknown roles to fall back to user")
	}
}

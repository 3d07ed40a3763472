package rbac

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Decision is the outcome of a gate.
type Decision int

const (
	Allowed Decision = iota
	RedirectToLogin
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case RedirectToLogin:
		return "redirect_to_login"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Authorize gates a request. current is the session's role, empty when the
// request carries no session. A missing session always redirects; an
// authenticated caller below the required role is forbidden outright.
func Authorize(current, required Role) Decision {
	if current == "" {
		return RedirectToLogin
	}
	if rank(current) < rank(required) {
		return Forbidden
	}
	return Allowed
}

func rank(role Role) int {
	switch role {
	case RoleAdmin:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}

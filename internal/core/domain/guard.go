package domain

// GuardState is the single authoritative state of a route guard evaluation.
type GuardState int

const (
	GuardChecking GuardState = iota
	GuardAllowed
	GuardRedirectLogin
	GuardRedirectUnauthorized
)

func (s GuardState) String() string {
	switch s {
	case GuardChecking:
		return "checking"
	case GuardAllowed:
		return "allowed"
	case GuardRedirectLogin:
		return "redirect_login"
	case GuardRedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// Requirement is the role a guarded route demands.
type Requirement int

const (
	RequireAny Requirement = iota
	RequireStaff
	RequireAdmin
)

// SatisfiedBy reports whether role may enter a route with this requirement.
// Admins satisfy the staff requirement; unrecognised roles satisfy nothing.
func (r Requirement) SatisfiedBy(role string) bool {
	switch r {
	case RequireAdmin:
		return role == RoleAdmin
	case RequireStaff:
		return role == RoleStaff || role == RoleAdmin
	default:
		return KnownRole(role)
	}
}

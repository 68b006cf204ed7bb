package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User models an authenticated console principal.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// KnownRole reports whether role grants access to any dashboard page.
func KnownRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

// LandingPath returns the page a user of the given role lands on after login.
// An empty result means the role has no dashboard and the user belongs on the
// login page.
func LandingPath(role string) string {
	switch role {
	case RoleAdmin:
		return "/admin"
	case RoleStaff:
		return "/staff"
	default:
		return ""
	}
}

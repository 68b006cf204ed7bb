package domain

import "time"

// Session pairs a bearer token with the user it was issued to.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// AuthEventKind enumerates the audited authentication events.
type AuthEventKind string

const (
	EventLoginSucceeded AuthEventKind = "login_succeeded"
	EventLoginFailed    AuthEventKind = "login_failed"
	EventLogout         AuthEventKind = "logout"
)

// AuthEvent is one entry of the authentication audit trail.
type AuthEvent struct {
	Username string
	Kind     AuthEventKind
	RemoteIP string
	At       time.Time
}

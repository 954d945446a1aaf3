package domain

import "time"

// Session represents one authenticated connection from one device.
type Session struct {
	ID                string
	UserID            string
	DeviceFingerprint string
	TokenDigest       string // SHA-256 of the bearer token; the raw token is never stored
	LoginMethod       string
	Status            Status
	TerminationReason TerminationReason // set when Status is Terminated
	CreatedAt         time.Time
	LastActivityAt    time.Time
	ExpiresAt         time.Time
	TerminatedAt      *time.Time // nil while active
}

type Status string

const (
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated"
)

// TerminationReason is the fixed set of causes a session may end with.
type TerminationReason string

const (
	ReasonLogout            TerminationReason = "logout"
	ReasonInactivityTimeout TerminationReason = "inactivity_timeout"
	ReasonAbsoluteTimeout   TerminationReason = "absolute_timeout"
	ReasonSuperseded        TerminationReason = "superseded_by_new_device"
	ReasonAdministrative    TerminationReason = "administrative_force"
	ReasonPasswordChange    TerminationReason = "password_change"
	ReasonSecurityIncident  TerminationReason = "security_incident"
	ReasonInvalidToken      TerminationReason = "invalid_token"
)

// ExpiredAt reports whether the absolute timeout has passed at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IdleAt reports whether the session has been inactive longer than timeout at now.
func (s *Session) IdleAt(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivityAt) > timeout
}

// Clone returns a copy so cache readers never share mutable state with writers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.TerminatedAt != nil {
		t := *s.TerminatedAt
		c.TerminatedAt = &t
	}
	return &c
}

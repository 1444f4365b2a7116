package domain

import "errors"

// Role is the closed set of roles a profile can carry.
type Role string

const (
	RoleNone    Role = ""
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return true
	}
	return false
}

// ProfileStatus is the standing of an account.
type ProfileStatus string

const (
	StatusActive    ProfileStatus = "active"
	StatusSuspended ProfileStatus = "suspended"
)

// Profile is the authoritative record of a user's role and standing.
// The guard only ever reads it.
type Profile struct {
	ID       string        `json:"id" bson:"_id"`
	Role     Role          `json:"role" bson:"role"`
	Status   ProfileStatus `json:"status" bson:"status"`
	FullName string        `json:"full_name,omitempty" bson:"full_name,omitempty"`
}

// Revocation reasons surfaced to the UI.
const (
	ReasonAccountRemoved   = "account removed"
	ReasonAccessRevoked    = "access revoked"
	ReasonAccountSuspended = "account suspended"
	ReasonOffline          = "offline"
)

// Admission evaluates a fetched profile. It returns the role to admit with, or
// the revocation reason when the profile exists but must not be admitted.
func (p *Profile) Admission() (Role, string) {
	if p.Status == StatusSuspended {
		return RoleNone, ReasonAccountSuspended
	}
	if !p.Role.Valid() {
		return RoleNone, ReasonAccessRevoked
	}
	return p.Role, ""
}

var (
	// ErrProfileNotFound means the backend confirmed there is no profile row.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrAttemptTimeout means a single fetch attempt exceeded its time budget.
	ErrAttemptTimeout = errors.New("profile fetch timed out")
)

package models

import (
	"time"

	id "landtrust/pkg/domain"
)

// User is the internal account linked to at most one external identity.
// Email is stored normalized (trimmed, lower-cased) and is unique.
type User struct {
	ID         id.UserID
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Linked reports whether the user has been bound to an external identity.
func (u *User) Linked() bool {
	return u.ExternalID != ""
}

// Resolved is the request-scoped projection used by middleware.
func (u *User) Resolved() *id.ResolvedUser {
	return &id.ResolvedUser{ID: u.ID, Email: u.Email}
}

// ApplyProfile refreshes the mutable profile fields from the identity
// provider. Empty names never overwrite stored ones. It reports whether
// anything changed.
func (u *User) ApplyProfile(email, firstName, lastName string) bool {
	changed := false
	if email != "" && u.Email != email {
		u.Email = email
		changed = true
	}
	if firstName != "" && u.FirstName != firstName {
		u.FirstName = firstName
		changed = true
	}
	if lastName != "" && u.LastName != lastName {
		u.LastName = lastName
		changed = true
	}
	return changed
}

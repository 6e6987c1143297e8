package entity

import (
	"time"
)

// AuthProvider tags which authentication backend owns an account's credential.
type AuthProvider string

const (
	// AuthProviderLocal means the credential is an email/password pair we store ourselves.
	AuthProviderLocal AuthProvider = "Local"
)

// AccountProfile is the aggregate root for the account domain.
//
// Email must stay in lockstep with the identity provider's authoritative
// email; the account update flow writes both in one submission and names
// a divergence as a partial-update failure rather than hiding it.
type AccountProfile struct {
	UserID       string
	DisplayName  string
	Email        string
	AvatarURL    string
	AuthProvider AuthProvider
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

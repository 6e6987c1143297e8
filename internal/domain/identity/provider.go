package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredential means the presented password does not match the account.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrUnavailable means the provider could not be reached or answered abnormally.
	ErrUnavailable = errors.New("identity provider unavailable")
)

// VerifiedSession is the short-lived proof produced by a successful
// re-authentication. It is created on a Gate success, passed explicitly to
// every mutation issued for that submission, and discarded when the
// submission finishes. It is never persisted.
type VerifiedSession struct {
	UserID     string
	Email      string
	VerifiedAt time.Time
}

// Provider is the identity backend that owns credentials.
// VerifyCredential must be called before ChangeEmail/ChangePassword;
// both mutations require the VerifiedSession it returns.
type Provider interface {
	VerifyCredential(ctx context.Context, email, password string) (VerifiedSession, error)
	ChangeEmail(ctx context.Context, session VerifiedSession, newEmail string) error
	ChangePassword(ctx context.Context, session VerifiedSession, newPassword string) error
}

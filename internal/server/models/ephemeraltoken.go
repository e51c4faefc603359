package models

import "time"

// TokenKind selects which ephemeral token table an entry lives in.
type TokenKind string

const (
	TokenKindPasswordReset     TokenKind = "password_resets"
	TokenKindEmailVerification TokenKind = "email_verifications"
)

// EphemeralToken is a single-use secret proving control of an email address.
type EphemeralToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}

// ValidAt reports whether the entry is still usable at t. The expiry instant
// itself is already invalid.
func (e *EphemeralToken) ValidAt(t time.Time) bool {
	return t.Before(e.Expires)
}

// Package models defines server-side data models persisted in the database.
package models

import "time"

// Provider is the authentication origin that created an account.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// Federated reports whether the provider is an external identity provider.
func (p Provider) Federated() bool {
	return p == ProviderGoogle || p == ProviderGitHub
}

// Account is a user identity record. Email is stored normalized
// (lower-cased, trimmed). PasswordHash is set only for local accounts and
// ProviderID only for federated ones.
type Account struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	Provider        Provider  `json:"provider"`
	ProviderID      string    `json:"provider_id,omitempty"`
	AvatarURL       string    `json:"profile_picture,omitempty"`
	IsEmailVerified bool      `json:"is_email_verified"`
	IsActive        bool      `json:"is_active"`
	IsBanned        bool      `json:"is_banned"`
	IsAdmin         bool      `json:"is_admin"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AccountUpdate is a partial update; nil fields are left untouched.
type AccountUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
	AvatarURL    *string
}

// Empty reports whether the update carries no fields.
func (u AccountUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.PasswordHash == nil && u.AvatarURL == nil
}

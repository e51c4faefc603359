// Package services contains server-side business logic: identity
// resolution across local and federated origins, the ephemeral token
// lifecycle, the session gate and profile management.
package services

import (
	"context"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/server/auth"
)

// PasswordHasher is the credential hasher used for local accounts.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns auth.ErrPasswordMismatch for a wrong password.
	Compare(hash, password string) error
}

// Mailer sends the transactional emails of the account lifecycle.
type Mailer interface {
	SendVerification(ctx context.Context, to, name, link string) error
	SendPasswordReset(ctx context.Context, to, name, link string) error
	SendWelcome(ctx context.Context, to, name string) error
}

// TokenCodec issues and verifies session tokens.
type TokenCodec interface {
	Issue(accountID string) (*auth.TokenPair, error)
	VerifyAccess(token string) (string, error)
	VerifyRefresh(token string) (string, error)
}

// BlobStore keeps profile pictures.
type BlobStore interface {
	// Put stores body under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	// Delete removes the object behind a URL previously returned by Put.
	Delete(ctx context.Context, url string) error
	// Owns reports whether url points into this store.
	Owns(url string) bool
}

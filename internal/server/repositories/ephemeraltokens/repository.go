// Package ephemeraltokens declares the server-side repository contract for
// single-use email verification and password reset secrets.
package ephemeraltokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores ephemeral token entries. Every method takes the entry
// kind, which selects the backing table.
type Repository interface {
	// Create stores a new entry for userID expiring at expiresAt.
	Create(ctx context.Context, kind models.TokenKind, userID string, token string, expiresAt time.Time) error

	// FindValid returns the entry for token if it has not expired at now.
	// Missing and expired entries both yield common.ErrorNotFound. Inside a
	// transaction the row stays locked until commit.
	FindValid(ctx context.Context, kind models.TokenKind, token string, now time.Time) (*models.EphemeralToken, error)

	// Delete removes the entry and reports whether a row was actually deleted.
	Delete(ctx context.Context, kind models.TokenKind, token string) (bool, error)

	// DeleteExpired purges entries whose expiry is not after now.
	DeleteExpired(ctx context.Context, kind models.TokenKind, now time.Time) (int64, error)
}

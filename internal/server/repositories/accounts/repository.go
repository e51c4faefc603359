// Package accounts declares the server-side repository contract for user
// accounts and provides its PostgreSQL implementation.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines persistence operations for accounts. Lookups return
// common.ErrorNotFound when no row matches; Create returns
// common.ErrorAlreadyExists on a uniqueness violation (email or provider
// identity).
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByProviderIdentity(ctx context.Context, provider models.Provider, providerID string) (*models.Account, error)

	// Create inserts a new account and fills in the generated columns.
	Create(ctx context.Context, a *models.Account) (*models.Account, error)

	// UpdateFields applies a partial update and returns the updated row.
	UpdateFields(ctx context.Context, id string, u models.AccountUpdate) (*models.Account, error)

	SetActive(ctx context.Context, id string, active bool) (*models.Account, error)
	SetBanned(ctx context.Context, id string, banned bool) (*models.Account, error)
	MarkEmailVerified(ctx context.Context, id string) (*models.Account, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

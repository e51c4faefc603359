package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// ProfileUpdate holds the optional fields of a self-service profile edit.
type ProfileUpdate struct {
	Name     *string
	Email    *string
	Password *string
}

// AccountService covers profile edits and the admin toggles.
type AccountService struct {
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	hasher PasswordHasher
	logger logging.Logger
}

func NewAccountService(tx dbx.Transactor, repos repomanager.RepositoryManager, hasher PasswordHasher, logger logging.Logger) *AccountService {
	return &AccountService{tx: tx, repos: repos, hasher: hasher, logger: logger.With("module", "accounts")}
}

// UpdateProfile applies a self-service edit to current. Changing to an email
// owned by another account is common.ErrEmailInUse. Federated accounts have
// no password to change.
func (s *AccountService) UpdateProfile(ctx context.Context, current *models.Account, in ProfileUpdate) (*models.Account, error) {
	repo := s.repos.Accounts(s.tx.DB())
	var u models.AccountUpdate

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name != "" && name != current.Name {
			u.Name = &name
		}
	}

	if in.Email != nil {
		email := common.NormalizeEmail(*in.Email)
		if email != "" && email != current.Email {
			other, err := repo.FindByEmail(ctx, email)
			switch {
			case err == nil && other.ID != current.ID:
				return nil, common.ErrEmailInUse
			case err != nil && !errors.Is(err, common.ErrorNotFound):
				return nil, fmt.Errorf("lookup email: %w", err)
			}
			u.Email = &email
		}
	}

	if in.Password != nil && *in.Password != "" {
		if current.Provider != models.ProviderLocal {
			return nil, fmt.Errorf("%w: password cannot be set for %s accounts", common.ErrorValidation, current.Provider)
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = &hash
	}

	if u.Empty() {
		return current, nil
	}

	updated, err := repo.UpdateFields(ctx, current.ID, u)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrEmailInUse
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}

// SetActive flips the active flag of the target account.
func (s *AccountService) SetActive(ctx context.Context, id string, active bool) (*models.Account, error) {
	a, err := s.repos.Accounts(s.tx.DB()).SetActive(ctx, id, active)
	if err != nil {
		return nil, notFoundAsAccount(err)
	}
	s.logger.Info(ctx, "account active flag changed", "account_id", id, "active", active)
	return a, nil
}

// SetBanned flips the banned flag of the target account.
func (s *AccountService) SetBanned(ctx context.Context, id string, banned bool) (*models.Account, error) {
	a, err := s.repos.Accounts(s.tx.DB()).SetBanned(ctx, id, banned)
	if err != nil {
		return nil, notFoundAsAccount(err)
	}
	s.logger.Info(ctx, "account banned flag changed", "account_id", id, "banned", banned)
	return a, nil
}

// Delete removes the target account and, through the schema, its
// outstanding ephemeral tokens.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	if err := s.repos.Accounts(s.tx.DB()).Delete(ctx, id); err != nil {
		return notFoundAsAccount(err)
	}
	s.logger.Info(ctx, "account deleted", "account_id", id)
	return nil
}

func notFoundAsAccount(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrAccountNotFound
	}
	return err
}

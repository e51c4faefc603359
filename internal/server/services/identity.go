package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// FederatedProfile is what an identity provider told us about the caller.
type FederatedProfile struct {
	Provider   models.Provider
	ExternalID string
	Email      string
	Name       string
	AvatarURL  string
}

// IdentityService maps signups, logins and federated callbacks onto
// accounts while keeping exactly one account per email address.
type IdentityService struct {
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	hasher PasswordHasher
	tokens *TokenService
	logger logging.Logger
}

func NewIdentityService(tx dbx.Transactor, repos repomanager.RepositoryManager, hasher PasswordHasher, tokens *TokenService, logger logging.Logger) *IdentityService {
	return &IdentityService{
		tx:     tx,
		repos:  repos,
		hasher: hasher,
		tokens: tokens,
		logger: logger.With("module", "identity"),
	}
}

// SignupLocal creates an unverified local account and emails it a
// verification link. Account creation, the verification entry and the send
// happen in one transaction, so a failed send leaves nothing behind.
func (s *IdentityService) SignupLocal(ctx context.Context, name, email, password string) (*models.Account, error) {
	email = common.NormalizeEmail(email)

	_, err := s.repos.Accounts(s.tx.DB()).FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, common.ErrEmailTaken
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var account *models.Account
	err = s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repos.Accounts(tx).Create(ctx, &models.Account{
			Name:         strings.TrimSpace(name),
			Email:        email,
			PasswordHash: hash,
			Provider:     models.ProviderLocal,
		})
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return common.ErrEmailTaken
			}
			return fmt.Errorf("create account: %w", err)
		}
		account = created
		return s.tokens.issueAndSend(ctx, tx, models.TokenKindEmailVerification, created)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "local account created", "account_id", account.ID)
	return account, nil
}

// LoginLocal checks, in order: a local account exists, it is not banned,
// it is active, the password matches. Unknown emails, federated accounts and
// wrong passwords are all common.ErrInvalidCredentials.
func (s *IdentityService) LoginLocal(ctx context.Context, email, password string) (*models.Account, error) {
	account, err := s.repos.Accounts(s.tx.DB()).FindByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if account.Provider != models.ProviderLocal || account.PasswordHash == "" {
		return nil, common.ErrInvalidCredentials
	}
	if err := CheckStanding(account); err != nil {
		return nil, err
	}
	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}
	return account, nil
}

// ResolveFederated returns the account bound to the provider identity,
// creating a verified one on first sight. An email already owned by any other
// account is common.ErrEmailConflict; accounts are never merged. No session
// tokens are minted here.
func (s *IdentityService) ResolveFederated(ctx context.Context, p FederatedProfile) (*models.Account, error) {
	if !p.Provider.Federated() || p.ExternalID == "" {
		return nil, fmt.Errorf("%w: unsupported federated identity", common.ErrorValidation)
	}

	repo := s.repos.Accounts(s.tx.DB())

	account, err := repo.FindByProviderIdentity(ctx, p.Provider, p.ExternalID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("lookup provider identity: %w", err)
	}

	email := common.NormalizeEmail(p.Email)
	if email == "" {
		return nil, common.ErrProviderEmailMissing
	}

	_, err = repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.logger.Info(ctx, "federated email collides with existing account", "provider", p.Provider)
		return nil, common.ErrEmailConflict
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	created, err := repo.Create(ctx, &models.Account{
		Name:            name,
		Email:           email,
		Provider:        p.Provider,
		ProviderID:      p.ExternalID,
		AvatarURL:       p.AvatarURL,
		IsEmailVerified: true,
	})
	if err != nil {
		if !errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("create account: %w", err)
		}
		// Lost a race: either the same identity was just created, or the
		// email was taken in between.
		if existing, err := repo.FindByProviderIdentity(ctx, p.Provider, p.ExternalID); err == nil {
			return existing, nil
		}
		return nil, common.ErrEmailConflict
	}

	s.logger.Info(ctx, "federated account created", "account_id", created.ID, "provider", p.Provider)
	return created, nil
}

// CheckStanding enforces the gating state machine: banned first, then
// inactive. Email verification does not gate.
func CheckStanding(a *models.Account) error {
	if a.IsBanned {
		return common.ErrAccountBanned
	}
	if !a.IsActive {
		return common.ErrAccountInactive
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// SessionService is the session gate: it turns bearer tokens into admitted
// accounts and mints new token pairs.
type SessionService struct {
	tx    dbx.Transactor
	repos repomanager.RepositoryManager
	codec TokenCodec
}

func NewSessionService(tx dbx.Transactor, repos repomanager.RepositoryManager, codec TokenCodec) *SessionService {
	return &SessionService{tx: tx, repos: repos, codec: codec}
}

// Issue mints a session token pair for an account that already passed
// resolution and gating.
func (s *SessionService) Issue(a *models.Account) (*auth.TokenPair, error) {
	pair, err := s.codec.Issue(a.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	return pair, nil
}

// Authenticate verifies an access token, loads its account and applies
// CheckStanding. Token errors come back as the codec reported them.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (*models.Account, error) {
	id, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}
	return s.admit(ctx, id)
}

// AuthenticateOptional is Authenticate for endpoints that also serve
// anonymous callers: any failure yields nil.
func (s *SessionService) AuthenticateOptional(ctx context.Context, accessToken string) *models.Account {
	if accessToken == "" {
		return nil
	}
	a, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return nil
	}
	return a
}

// Refresh exchanges a refresh token for a new pair. The account is gated
// again so a ban takes effect at the next refresh at the latest.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, *models.Account, error) {
	id, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, nil, err
	}
	a, err := s.admit(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	pair, err := s.Issue(a)
	if err != nil {
		return nil, nil, err
	}
	return pair, a, nil
}

func (s *SessionService) admit(ctx context.Context, accountID string) (*models.Account, error) {
	a, err := s.repos.Accounts(s.tx.DB()).FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSessionAccountMissing
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if err := CheckStanding(a); err != nil {
		return nil, err
	}
	return a, nil
}

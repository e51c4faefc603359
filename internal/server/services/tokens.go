package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// TokenConfig carries the ephemeral token windows and the base URL used to
// build the links sent by email.
type TokenConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	PublicBaseURL   string
}

// TokenService owns email-verification and password-reset secrets: issue,
// validate, consume (single use) and sweep.
type TokenService struct {
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	hasher PasswordHasher
	mailer Mailer
	cfg    TokenConfig
	logger logging.Logger
	now    func() time.Time

	background sync.WaitGroup
}

func NewTokenService(tx dbx.Transactor, repos repomanager.RepositoryManager, hasher PasswordHasher, mailer Mailer, cfg TokenConfig, logger logging.Logger) *TokenService {
	return &TokenService{
		tx:     tx,
		repos:  repos,
		hasher: hasher,
		mailer: mailer,
		cfg:    cfg,
		logger: logger.With("module", "tokens"),
		now:    time.Now,
	}
}

func (s *TokenService) ttl(kind models.TokenKind) time.Duration {
	if kind == models.TokenKindPasswordReset {
		return s.cfg.ResetTTL
	}
	return s.cfg.VerificationTTL
}

func (s *TokenService) issue(ctx context.Context, db dbx.DBTX, kind models.TokenKind, accountID string) (string, error) {
	secret, err := auth.NewSecret(s.now(), s.ttl(kind))
	if err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	if err := s.repos.EphemeralTokens(db).Create(ctx, kind, accountID, secret.Value, secret.Expires); err != nil {
		return "", fmt.Errorf("store %s entry: %w", kind, err)
	}
	return secret.Value, nil
}

// IssueVerification stores a new email-verification secret for accountID.
// Earlier outstanding secrets stay valid.
func (s *TokenService) IssueVerification(ctx context.Context, accountID string) (string, error) {
	return s.issue(ctx, s.tx.DB(), models.TokenKindEmailVerification, accountID)
}

// IssueReset stores a new password-reset secret for accountID.
func (s *TokenService) IssueReset(ctx context.Context, accountID string) (string, error) {
	return s.issue(ctx, s.tx.DB(), models.TokenKindPasswordReset, accountID)
}

// issueAndSend issues a secret on db and emails the matching link. A send
// failure is returned so the surrounding transaction rolls back.
func (s *TokenService) issueAndSend(ctx context.Context, db dbx.DBTX, kind models.TokenKind, a *models.Account) error {
	secret, err := s.issue(ctx, db, kind, a.ID)
	if err != nil {
		return err
	}
	if kind == models.TokenKindPasswordReset {
		err = s.mailer.SendPasswordReset(ctx, a.Email, a.Name, s.link("/api/auth/reset-password", secret))
	} else {
		err = s.mailer.SendVerification(ctx, a.Email, a.Name, s.link("/api/auth/verify-email", secret))
	}
	if err != nil {
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	return nil
}

func (s *TokenService) link(path, secret string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + path + "?token=" + url.QueryEscape(secret)
}

// redeem runs the single-use protocol inside one transaction: lock the
// valid entry, apply the effect, delete the entry. The delete must remove
// exactly one row or the whole thing rolls back.
func (s *TokenService) redeem(ctx context.Context, kind models.TokenKind, secret string, apply func(ctx context.Context, tx dbx.DBTX, accountID string) error) error {
	if secret == "" {
		return common.ErrInvalidOrExpiredToken
	}
	return s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		entries := s.repos.EphemeralTokens(tx)

		entry, err := entries.FindValid(ctx, kind, secret, s.now())
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpiredToken
			}
			return fmt.Errorf("find %s entry: %w", kind, err)
		}

		if err := apply(ctx, tx, entry.UserID); err != nil {
			return err
		}

		deleted, err := entries.Delete(ctx, kind, secret)
		if err != nil {
			return fmt.Errorf("delete %s entry: %w", kind, err)
		}
		if !deleted {
			return common.ErrInvalidOrExpiredToken
		}
		return nil
	})
}

// ConsumeVerification marks the owner of secret as verified and burns the
// secret. Unknown, expired and already used secrets are all
// common.ErrInvalidOrExpiredToken.
func (s *TokenService) ConsumeVerification(ctx context.Context, secret string) (*models.Account, error) {
	var account *models.Account
	err := s.redeem(ctx, models.TokenKindEmailVerification, secret, func(ctx context.Context, tx dbx.DBTX, accountID string) error {
		a, err := s.repos.Accounts(tx).MarkEmailVerified(ctx, accountID)
		if err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ConsumeReset stores a new password for the owner of secret and burns the
// secret.
func (s *TokenService) ConsumeReset(ctx context.Context, secret, newPassword string) error {
	if secret == "" {
		return common.ErrInvalidOrExpiredToken
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.redeem(ctx, models.TokenKindPasswordReset, secret, func(ctx context.Context, tx dbx.DBTX, accountID string) error {
		if err := s.repos.Accounts(tx).UpdatePassword(ctx, accountID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return nil
	})
}

// VerifyEmail consumes a verification secret and then sends the welcome
// email in the background. Welcome failures are only logged.
func (s *TokenService) VerifyEmail(ctx context.Context, secret string) (*models.Account, error) {
	account, err := s.ConsumeVerification(ctx, secret)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "email verified", "account_id", account.ID)

	bg := context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := s.mailer.SendWelcome(bg, account.Email, account.Name); err != nil {
			s.logger.Warn(bg, "welcome email failed", "account_id", account.ID, "error", err)
		}
	}()

	return account, nil
}

// RequestPasswordReset emails a reset link to a local account. Unknown
// emails and federated accounts succeed silently so callers cannot probe
// which addresses are registered.
func (s *TokenService) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.repos.Accounts(s.tx.DB()).FindByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Debug(ctx, "password reset for unknown email")
			return nil
		}
		return fmt.Errorf("lookup email: %w", err)
	}
	if account.Provider != models.ProviderLocal {
		s.logger.Debug(ctx, "password reset for federated account", "account_id", account.ID)
		return nil
	}

	return s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.issueAndSend(ctx, tx, models.TokenKindPasswordReset, account)
	})
}

// ResendVerification issues a fresh verification link. Unknown emails
// succeed silently; verified accounts get common.ErrAlreadyVerified.
func (s *TokenService) ResendVerification(ctx context.Context, email string) error {
	account, err := s.repos.Accounts(s.tx.DB()).FindByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fmt.Errorf("lookup email: %w", err)
	}
	if account.IsEmailVerified {
		return common.ErrAlreadyVerified
	}

	return s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.issueAndSend(ctx, tx, models.TokenKindEmailVerification, account)
	})
}

// ValidateReset reports whether a reset secret is currently usable without
// consuming it.
func (s *TokenService) ValidateReset(ctx context.Context, secret string) error {
	if secret == "" {
		return common.ErrInvalidOrExpiredToken
	}
	_, err := s.repos.EphemeralTokens(s.tx.DB()).FindValid(ctx, models.TokenKindPasswordReset, secret, s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("find reset entry: %w", err)
	}
	return nil
}

// SweepExpired deletes expired entries of both kinds.
func (s *TokenService) SweepExpired(ctx context.Context) (int64, error) {
	var total int64
	repo := s.repos.EphemeralTokens(s.tx.DB())
	for _, kind := range []models.TokenKind{models.TokenKindEmailVerification, models.TokenKindPasswordReset} {
		n, err := repo.DeleteExpired(ctx, kind, s.now())
		if err != nil {
			return total, fmt.Errorf("sweep %s: %w", kind, err)
		}
		total += n
	}
	return total, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (s *TokenService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				s.logger.Error(ctx, "sweep expired tokens", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info(ctx, "expired tokens removed", "count", n)
			}
		}
	}
}

// Wait blocks until background welcome emails have finished.
func (s *TokenService) Wait() {
	s.background.Wait()
}

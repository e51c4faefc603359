package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// AvatarService stores profile pictures and points accounts at them.
type AvatarService struct {
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	store  BlobStore
	logger logging.Logger
}

func NewAvatarService(tx dbx.Transactor, repos repomanager.RepositoryManager, store BlobStore, logger logging.Logger) *AvatarService {
	return &AvatarService{tx: tx, repos: repos, store: store, logger: logger.With("module", "avatars")}
}

// objectKey yields avatars/<account>/<random><ext>.
func objectKey(accountID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("avatars/%s/%s%s", accountID, uuid.NewString(), ext)
}

// Upload stores the picture, records its URL on the account and then tries
// to delete the previous picture. Failing to delete the old one is logged
// and otherwise ignored.
func (s *AvatarService) Upload(ctx context.Context, a *models.Account, filename, contentType string, body io.Reader, size int64) (*models.Account, error) {
	url, err := s.store.Put(ctx, objectKey(a.ID, filename), contentType, body, size)
	if err != nil {
		return nil, fmt.Errorf("store picture: %w", err)
	}

	updated, err := s.repos.Accounts(s.tx.DB()).UpdateFields(ctx, a.ID, models.AccountUpdate{AvatarURL: &url})
	if err != nil {
		if derr := s.store.Delete(ctx, url); derr != nil {
			s.logger.Warn(ctx, "orphaned picture", "url", url, "error", derr)
		}
		return nil, fmt.Errorf("record picture: %w", err)
	}

	if old := a.AvatarURL; old != "" && old != url && s.store.Owns(old) {
		if err := s.store.Delete(ctx, old); err != nil {
			s.logger.Warn(ctx, "delete previous picture", "account_id", a.ID, "error", err)
		}
	}

	return updated, nil
}

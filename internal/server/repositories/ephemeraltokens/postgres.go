package ephemeraltokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// ErrUnknownKind is returned for a TokenKind without a backing table.
var ErrUnknownKind = errors.New("unknown token kind")

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func table(kind models.TokenKind) (string, error) {
	switch kind {
	case models.TokenKindPasswordReset, models.TokenKindEmailVerification:
		return string(kind), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func (r *PostgresRepository) Create(ctx context.Context, kind models.TokenKind, userID string, token string, expiresAt time.Time) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, t)
	if _, err := r.db.ExecContext(ctx, query, userID, token, expiresAt); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindValid(ctx context.Context, kind models.TokenKind, token string, now time.Time) (*models.EphemeralToken, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, user_id, token, expires_at, created_at
		FROM %s
		WHERE token = $1 AND expires_at > $2
		FOR UPDATE
	`, t)
	e := &models.EphemeralToken{}
	err = r.db.QueryRowContext(ctx, query, token, now).Scan(&e.ID, &e.UserID, &e.Token, &e.Expires, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, kind models.TokenKind, token string) (bool, error) {
	t, err := table(kind)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE token = $1
	`, t)
	res, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, kind models.TokenKind, now time.Time) (int64, error) {
	t, err := table(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE expires_at <= $1
	`, t)
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

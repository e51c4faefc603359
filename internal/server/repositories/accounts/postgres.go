package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const accountColumns = `id, name, email, password, provider, provider_id, profile_picture,
		is_email_verified, is_active, is_banned, is_admin, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var password, providerID, avatar sql.NullString
	var provider string
	err := row.Scan(&a.ID, &a.Name, &a.Email, &password, &provider, &providerID, &avatar,
		&a.IsEmailVerified, &a.IsActive, &a.IsBanned, &a.IsAdmin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		// a malformed id cannot name an existing account
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidText(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	a.PasswordHash = password.String
	a.Provider = models.Provider(provider)
	a.ProviderID = providerID.String
	a.AvatarURL = avatar.String
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM users
		WHERE lower(email) = lower($1)`
	return scanAccount(r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM users
		WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) FindByProviderIdentity(ctx context.Context, provider models.Provider, providerID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM users
		WHERE provider = $1 AND provider_id = $2`
	return scanAccount(r.db.QueryRowContext(ctx, query, string(provider), providerID))
}

// Create inserts a and returns it with id, flags and timestamps as stored.
// A unique violation on email or (provider, provider_id) yields
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO users (name, email, password, provider, provider_id, profile_picture, is_email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + accountColumns

	created, err := scanAccount(r.db.QueryRowContext(ctx, query,
		a.Name, a.Email, nullString(a.PasswordHash), string(a.Provider),
		nullString(a.ProviderID), nullString(a.AvatarURL), a.IsEmailVerified))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", common.ErrorAlreadyExists, err)
		}
		return nil, err
	}
	return created, nil
}

// UpdateFields sets only the non-nil fields of u and bumps updated_at.
func (r *PostgresRepository) UpdateFields(ctx context.Context, id string, u models.AccountUpdate) (*models.Account, error) {
	if u.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", common.ErrorValidation)
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("name", u.Name)
	add("email", u.Email)
	add("password", u.PasswordHash)
	add("profile_picture", u.AvatarURL)

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users
		SET %s, updated_at = NOW()
		WHERE id = $%d
		RETURNING `+accountColumns, strings.Join(sets, ", "), len(args))

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", common.ErrorAlreadyExists, err)
		}
		return nil, err
	}
	return a, nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) (*models.Account, error) {
	query := `UPDATE users
		SET is_active = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + accountColumns
	return scanAccount(r.db.QueryRowContext(ctx, query, active, id))
}

func (r *PostgresRepository) SetBanned(ctx context.Context, id string, banned bool) (*models.Account, error) {
	query := `UPDATE users
		SET is_banned = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + accountColumns
	return scanAccount(r.db.QueryRowContext(ctx, query, banned, id))
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string) (*models.Account, error) {
	query := `UPDATE users
		SET is_email_verified = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// UpdatePassword stores a new hash. Returns common.ErrorNotFound when no
// account has the id.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	query := `UPDATE users
		SET password = $1, updated_at = NOW()
		WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return execError(err)
	}
	return requireOneRow(res)
}

// Delete hard-deletes an account; its ephemeral tokens cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return execError(err)
	}
	return requireOneRow(res)
}

func execError(err error) error {
	if dbx.IsInvalidText(err) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("db error: %w", err)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meerkat-app/meerkat/internal/common"
	"github.com/meerkat-app/meerkat/internal/dbx"
	"github.com/meerkat-app/meerkat/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	// Check ordering is contractual: duplicate value, expiry, id range,
	// owner existence.
	available, err := r.valueAvailable(ctx, token.Value)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, fmt.Errorf("cannot add token: value already exists: %w", common.ErrorAlreadyExists)
	}
	if token.Expired(time.Now().UTC()) {
		return nil, fmt.Errorf("cannot add token with expiration time=%s: %w", token.ExpiresAt, common.ErrorExpired)
	}
	if token.UserID <= 0 {
		return nil, fmt.Errorf("cannot add token: user id=%d: %w", token.UserID, common.ErrorInvalidArgument)
	}
	exists, err := r.userExists(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("cannot add token: user with id=%d: %w", token.UserID, common.ErrorOwnerNotFound)
	}

	query := `
		INSERT INTO refresh_tokens (value, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	added := token.Clone()
	err = r.db.QueryRowContext(ctx, query, token.Value, token.UserID, token.ExpiresAt).Scan(&added.CreatedAt)
	if err != nil {
		// Constraints back the pre-checks up under concurrent writers.
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("cannot add token: value already exists: %w", common.ErrorAlreadyExists)
		}
		if dbx.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("cannot add token: user with id=%d: %w", token.UserID, common.ErrorOwnerNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return added, nil
}

func (r *PostgresRepository) Find(ctx context.Context, value string) (*models.RefreshToken, error) {
	query := `
		SELECT value, user_id, expires_at, created_at
		FROM refresh_tokens
		WHERE value = $1
	`
	token := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, value).
		Scan(&token.Value, &token.UserID, &token.ExpiresAt, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *PostgresRepository) FindAllByUser(ctx context.Context, userID int64) ([]models.RefreshToken, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("cannot get tokens of user with id=%d: %w", userID, common.ErrorInvalidArgument)
	}
	exists, err := r.userExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("cannot get tokens of user with id=%d: %w", userID, common.ErrorOwnerNotFound)
	}

	query := `
		SELECT value, user_id, expires_at, created_at
		FROM refresh_tokens
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	tokens := []models.RefreshToken{}
	for rows.Next() {
		var t models.RefreshToken
		if err := rows.Scan(&t.Value, &t.UserID, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tokens, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, value string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE value = $1`, value)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("cannot delete token: no such value: %w", common.ErrorNotFound)
	}
	return nil
}

func (r *PostgresRepository) DeleteAllByUser(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}

func (r *PostgresRepository) valueAvailable(ctx context.Context, value string) (bool, error) {
	var taken bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE value = $1)`, value).Scan(&taken); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return !taken, nil
}

func (r *PostgresRepository) userExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

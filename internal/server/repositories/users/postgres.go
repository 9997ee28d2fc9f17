package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	available, err := r.usernameAvailable(ctx, 0, user.Username)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, fmt.Errorf("cannot add user with username=%q: %w", user.Username, common.ErrorUsernameTaken)
	}

	query := `
		INSERT INTO users (username, password_hash, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	added := user.Clone()
	err = r.db.QueryRowContext(ctx, query,
		user.Username, user.PasswordHash, nullable(user.Email), nullable(user.Phone)).
		Scan(&added.ID, &added.CreatedAt)
	if err != nil {
		// The unique index is the safety net for concurrent sign-ups.
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("cannot add user with username=%q: %w", user.Username, common.ErrorUsernameTaken)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return added, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	if id <= 0 {
		return nil, fmt.Errorf("cannot get user with id=%d: %w", id, common.ErrorInvalidArgument)
	}

	query := `
		SELECT id, username, password_hash, COALESCE(email, ''), COALESCE(phone, ''), created_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Login(ctx context.Context, username, passwordHash string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, COALESCE(email, ''), COALESCE(phone, ''), created_at
		FROM users
		WHERE username = $1 AND password_hash = $2
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username, passwordHash))
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID <= 0 {
		return nil, fmt.Errorf("cannot update user with id=%d: %w", user.ID, common.ErrorInvalidArgument)
	}

	exists, err := r.userExists(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("cannot update user with id=%d: %w", user.ID, common.ErrorNotFound)
	}

	available, err := r.usernameAvailable(ctx, user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, fmt.Errorf("cannot update user with username=%q: %w", user.Username, common.ErrorUsernameTaken)
	}

	query := `
		UPDATE users
		SET username = $1, password_hash = $2, email = $3, phone = $4
		WHERE id = $5
		RETURNING created_at
	`
	updated := user.Clone()
	err = r.db.QueryRowContext(ctx, query,
		user.Username, user.PasswordHash, nullable(user.Email), nullable(user.Phone), user.ID).
		Scan(&updated.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("cannot update user with username=%q: %w", user.Username, common.ErrorUsernameTaken)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return updated, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("cannot delete user with id=%d: %w", id, common.ErrorInvalidArgument)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("cannot delete user with id=%d: %w", id, common.ErrorNotFound)
	}
	return nil
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Email, &user.Phone, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// usernameAvailable reports whether the username is free to take. excludeID
// ignores the account being updated so a user can keep their own name.
func (r *PostgresRepository) usernameAvailable(ctx context.Context, excludeID int64, username string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`
	var taken bool
	if err := r.db.QueryRowContext(ctx, query, username, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return !taken, nil
}

func (r *PostgresRepository) userExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// nullable maps an empty optional field to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

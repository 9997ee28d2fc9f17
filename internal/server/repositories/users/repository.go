// Package users declares the account-store contract: persistence and
// invariants for user records.
package users

import (
	"context"

	"github.com/meerkat-app/meerkat/internal/server/models"
)

// Repository defines operations over the "users" table. Implementations
// return detached value copies: mutating a returned user never affects
// stored state.
type Repository interface {
	// Create inserts a new user and returns a copy with the assigned id.
	// Fails with common.ErrorUsernameTaken when the username is already
	// present (case-sensitive exact match, deliberately).
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// Get returns the user with the given id, common.ErrorInvalidArgument
	// when id <= 0, or common.ErrorNotFound when no such row exists.
	Get(ctx context.Context, id int64) (*models.User, error)

	// Login returns the user matching both username and password hash
	// exactly. Any mismatch yields common.ErrorNotFound; callers can never
	// tell which of the two fields was wrong.
	Login(ctx context.Context, username, passwordHash string) (*models.User, error)

	// Update overwrites the stored row and returns a detached copy.
	// Fails with common.ErrorInvalidArgument (id <= 0),
	// common.ErrorNotFound (no row), or common.ErrorUsernameTaken (the new
	// username collides with a different account).
	Update(ctx context.Context, user *models.User) (*models.User, error)

	// Delete removes the user. Fails with common.ErrorInvalidArgument
	// (id <= 0) or common.ErrorNotFound.
	Delete(ctx context.Context, id int64) error
}

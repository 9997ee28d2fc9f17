// Package refreshtokens declares the session-store contract: persistence and
// invariants for refresh-token records.
package refreshtokens

import (
	"context"

	"github.com/meerkat-app/meerkat/internal/server/models"
)

// Repository defines operations over the "refresh_tokens" table.
type Repository interface {
	// Create inserts a new token. Before writing it checks, in this order:
	// duplicate value (common.ErrorAlreadyExists), expiration at or before
	// now (common.ErrorExpired), non-positive owner id
	// (common.ErrorInvalidArgument), and owner existence
	// (common.ErrorOwnerNotFound). Callers branch on the specific error, so
	// the check ordering is part of the contract.
	Create(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error)

	// Find looks up a token by its opaque value. Returns
	// common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, value string) (*models.RefreshToken, error)

	// FindAllByUser returns every token owned by userID, applying the same
	// common.ErrorInvalidArgument / common.ErrorOwnerNotFound rules as
	// Create. An owner with no sessions yields an empty slice, never a
	// partial result.
	FindAllByUser(ctx context.Context, userID int64) ([]models.RefreshToken, error)

	// Delete removes a token by value. Deleting an absent value fails with
	// common.ErrorNotFound; concurrent rotations rely on that to detect the
	// losing side.
	Delete(ctx context.Context, value string) error

	// DeleteAllByUser removes every token owned by userID and returns the
	// number of revoked sessions.
	DeleteAllByUser(ctx context.Context, userID int64) (int64, error)
}

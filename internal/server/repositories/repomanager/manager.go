// Package repomanager vends repository implementations bound to a DBTX so
// that services can run the same repositories against *sql.DB or an open
// transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/meerkat-app/meerkat/internal/dbx"
	"github.com/meerkat-app/meerkat/internal/server/repositories/refreshtokens"
	"github.com/meerkat-app/meerkat/internal/server/repositories/users"
)

// RepositoryManager constructs repositories and exposes a schema migration
// hook.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}

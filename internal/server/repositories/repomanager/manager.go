// Package repomanager vends repositories bound to a database handle so that
// services can run the same repositories on a *sql.DB or inside a *sql.Tx.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophpress/internal/dbx"
	"github.com/dmitrijs2005/gophpress/internal/server/repositories/articles"
	"github.com/dmitrijs2005/gophpress/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophpress/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Articles(db dbx.DBTX) articles.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}

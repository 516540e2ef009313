// Package repomanager hands out the server repositories bound either to a
// PostgreSQL connection, a transaction, or process memory.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/splitsync/internal/dbx"
	"github.com/dmitrijs2005/splitsync/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/splitsync/internal/server/repositories/records"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	// Conn is the handle for work outside a transaction.
	Conn() dbx.DBTX
	// WithTx runs fn in one transaction; repositories built over tx join it.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
	Accounts(db dbx.DBTX) accounts.Repository
	Records(db dbx.DBTX) records.Repository
	Close() error
}

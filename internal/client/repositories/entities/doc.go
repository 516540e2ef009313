// Package entities is the local persistent store of the replica.
//
// Every synchronized entity lives in one SQLite table keyed by its local id.
// The sync columns (server id, updated_at, sync status) are stored next to a
// JSON payload holding the entity's own fields with foreign keys in local-id
// form. The columns are authoritative; Decode copies them over whatever the
// payload carries.
//
// A SQLiteRepository built over a *sql.Tx joins that transaction, which is
// how the sync engine keeps each per-entity write atomic:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    return entities.NewSQLiteRepository(tx).Upsert(ctx, rec)
//	})
package entities

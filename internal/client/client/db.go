package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/splitsync/internal/client/migrations"
	"github.com/dmitrijs2005/splitsync/internal/client/repositories/entities"
	"github.com/dmitrijs2005/splitsync/internal/client/repositories/metadata"

	_ "modernc.org/sqlite"
)

// DeviceIDKey is the metadata key holding this replica's device id.
const DeviceIDKey = "device_id"

type Repositories struct {
	DB       *sql.DB
	Metadata *metadata.SQLiteRepository
	Entities *entities.SQLiteRepository
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

// InitDatabase opens the SQLite replica at dsn and migrates it.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}
	// one writer; transactions must never wait on a second connection
	db.SetMaxOpenConns(1)

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
		Entities: entities.NewSQLiteRepository(db),
	}, nil
}

// DeviceID returns the id of this replica, creating it on first use.
func DeviceID(ctx context.Context, repo metadata.Repository) (string, error) {
	v, err := repo.Get(ctx, DeviceIDKey)
	if err != nil {
		return "", err
	}
	if len(v) > 0 {
		return string(v), nil
	}
	id := uuid.NewString()
	if err := repo.Set(ctx, DeviceIDKey, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}

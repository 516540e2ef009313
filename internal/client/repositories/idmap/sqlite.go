// Package idmap persists the local-id ↔ server-id pairs learned by the sync
// engine, partitioned by entity type.
package idmap

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
	"github.com/dmitrijs2005/splitsync/internal/dbx"
)

type Mapping struct {
	Type     models.EntityType
	LocalID  int64
	ServerID int64
}

type Repository interface {
	// Put stores m. Storing an identical pair again is a no-op; a pair that
	// contradicts a stored one fails.
	Put(ctx context.Context, m Mapping) error
	All(ctx context.Context) ([]Mapping, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, m Mapping) error {
	var serverID int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO id_map (entity_type, local_id, server_id) VALUES (?, ?, ?)
		ON CONFLICT(entity_type, local_id) DO UPDATE SET server_id = id_map.server_id
		RETURNING server_id
	`, m.Type, m.LocalID, m.ServerID).Scan(&serverID)
	if err != nil {
		return fmt.Errorf("failed to store id mapping %s %d->%d: %w", m.Type, m.LocalID, m.ServerID, err)
	}
	if serverID != m.ServerID {
		return fmt.Errorf("failed to store id mapping %s %d->%d: already mapped to %d", m.Type, m.LocalID, m.ServerID, serverID)
	}
	return nil
}

func (r *SQLiteRepository) All(ctx context.Context) ([]Mapping, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT entity_type, local_id, server_id FROM id_map`)
	if err != nil {
		return nil, fmt.Errorf("failed to list id mappings: %w", err)
	}
	defer rows.Close()

	var result []Mapping
	for rows.Next() {
		var (
			m   Mapping
			typ string
		)
		if err := rows.Scan(&typ, &m.LocalID, &m.ServerID); err != nil {
			return nil, fmt.Errorf("failed to scan id mapping: %w", err)
		}
		m.Type = models.EntityType(typ)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate id mappings: %w", err)
	}
	return result, nil
}

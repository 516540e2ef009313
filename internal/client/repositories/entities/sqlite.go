package entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
	"github.com/dmitrijs2005/splitsync/internal/common"
	"github.com/dmitrijs2005/splitsync/internal/dbx"
)

const selectColumns = `SELECT entity_type, local_id, server_id, updated_at, sync_status, payload FROM entities`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec      Record
		typ      string
		status   string
		serverID sql.NullInt64
	)
	if err := row.Scan(&typ, &rec.LocalID, &serverID, &rec.UpdatedAt, &status, &rec.Payload); err != nil {
		return Record{}, err
	}
	rec.Type = models.EntityType(typ)
	rec.Status = models.SyncStatus(status)
	if serverID.Valid {
		rec.ServerID = models.Int64Ptr(serverID.Int64)
	}
	return rec, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, args ...any) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *SQLiteRepository) GetUnsynced(ctx context.Context, t models.EntityType) ([]Record, error) {
	recs, err := r.query(ctx, selectColumns+` WHERE entity_type = ? AND sync_status IN (?, ?) ORDER BY local_id`,
		t, models.StatusPendingSync, models.StatusSyncFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to select unsynced %s: %w", t, err)
	}
	return recs, nil
}

func (r *SQLiteRepository) GetByLocalID(ctx context.Context, t models.EntityType, localID int64) (*Record, error) {
	rec, err := r.getOne(ctx, selectColumns+` WHERE entity_type = ? AND local_id = ?`, t, localID)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s local_id=%d: %w", t, localID, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) GetByServerID(ctx context.Context, t models.EntityType, serverID int64) (*Record, error) {
	rec, err := r.getOne(ctx, selectColumns+` WHERE entity_type = ? AND server_id = ?`, t, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s server_id=%d: %w", t, serverID, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec Record) error {
	if rec.LocalID <= 0 {
		return fmt.Errorf("failed to upsert %s: %w: local id %d", rec.Type, common.ErrorValidation, rec.LocalID)
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("failed to upsert %s: %w: status %q", rec.Type, common.ErrorValidation, string(rec.Status))
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entities (local_id, entity_type, server_id, updated_at, sync_status, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id   = COALESCE(entities.server_id, excluded.server_id),
			updated_at  = excluded.updated_at,
			sync_status = excluded.sync_status,
			payload     = excluded.payload
		WHERE entities.entity_type = excluded.entity_type
	`, rec.LocalID, rec.Type, nullableID(rec.ServerID), rec.UpdatedAt, rec.Status, rec.Payload)
	if err != nil {
		return fmt.Errorf("failed to upsert %s local_id=%d: %w", rec.Type, rec.LocalID, err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateSyncStatus(ctx context.Context, t models.EntityType, localID int64, status models.SyncStatus) error {
	n, err := dbx.ExecAffected(ctx, r.db, `UPDATE entities SET sync_status = ? WHERE entity_type = ? AND local_id = ?`,
		status, t, localID)
	if err != nil {
		return fmt.Errorf("failed to update status of %s local_id=%d: %w", t, localID, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to update status of %s local_id=%d: %w", t, localID, common.ErrorNotFound)
	}
	return nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, t models.EntityType, localID, serverID int64, pushedUpdatedAt string) (models.SyncStatus, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `
		UPDATE entities SET
			server_id   = COALESCE(server_id, ?),
			sync_status = CASE WHEN updated_at = ? THEN ? ELSE sync_status END
		WHERE entity_type = ? AND local_id = ?
		RETURNING sync_status
	`, serverID, pushedUpdatedAt, models.StatusSynced, t, localID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to mark %s local_id=%d synced: %w", t, localID, common.ErrorNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to mark %s local_id=%d synced: %w", t, localID, err)
	}
	return models.SyncStatus(status), nil
}

func (r *SQLiteRepository) List(ctx context.Context, t models.EntityType) ([]Record, error) {
	recs, err := r.query(ctx, selectColumns+` WHERE entity_type = ? ORDER BY local_id`, t)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t, err)
	}
	return recs, nil
}

func (r *SQLiteRepository) MaxLocalID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(local_id) FROM entities`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to select max local id: %w", err)
	}
	return id.Int64, nil
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT entity_type, sync_status, COUNT(*) FROM entities GROUP BY entity_type, sync_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	defer rows.Close()

	counts := StatusCounts{}
	for rows.Next() {
		var (
			typ, status string
			n           int
		)
		if err := rows.Scan(&typ, &status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan entity count: %w", err)
		}
		t := models.EntityType(typ)
		if counts[t] == nil {
			counts[t] = map[models.SyncStatus]int{}
		}
		counts[t][models.SyncStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entity counts: %w", err)
	}
	return counts, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

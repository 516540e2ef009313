package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/splitsync/internal/common"
	"github.com/dmitrijs2005/splitsync/internal/dbx"
	"github.com/dmitrijs2005/splitsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) NextID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('records_id_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.Record) (*models.Record, bool, error) {
	query :=
		`INSERT INTO records (id, owner_id, entity_type, client_key, body)
		 VALUES (COALESCE($1, nextval('records_id_seq')), $2, $3, $4, $5)
		 ON CONFLICT (owner_id, entity_type, client_key) DO NOTHING
		 RETURNING id, modified_at`

	id := sql.NullInt64{Int64: rec.ID, Valid: rec.ID != 0}
	err := r.db.QueryRowContext(ctx, query, id, rec.OwnerID, rec.EntityType, rec.ClientKey, string(rec.Body)).
		Scan(&rec.ID, &rec.ModifiedAt)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	existing, err := r.getByClientKey(ctx, rec.OwnerID, rec.EntityType, rec.ClientKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *PostgresRepository) getByClientKey(ctx context.Context, ownerID int64, entityType, key string) (*models.Record, error) {
	query :=
		`SELECT id, body, modified_at FROM records
		 WHERE owner_id = $1 AND entity_type = $2 AND client_key = $3`

	rec := &models.Record{OwnerID: ownerID, EntityType: entityType, ClientKey: key}
	var body []byte
	err := r.db.QueryRowContext(ctx, query, ownerID, entityType, key).Scan(&rec.ID, &body, &rec.ModifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	rec.Body = body
	return rec, nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec *models.Record) (*models.Record, error) {
	query :=
		`UPDATE records SET body = $4, modified_at = clock_timestamp()
		 WHERE owner_id = $1 AND entity_type = $2 AND id = $3
		 RETURNING client_key, modified_at`

	err := r.db.QueryRowContext(ctx, query, rec.OwnerID, rec.EntityType, rec.ID, string(rec.Body)).
		Scan(&rec.ClientKey, &rec.ModifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) ListSince(ctx context.Context, ownerID int64, entityType string, since time.Time) ([]*models.Record, error) {
	query :=
		`SELECT id, client_key, body, modified_at FROM records
		 WHERE owner_id = $1 AND entity_type = $2 AND modified_at > $3
		 ORDER BY modified_at, id`

	rows, err := r.db.QueryContext(ctx, query, ownerID, entityType, since)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		rec := &models.Record{OwnerID: ownerID, EntityType: entityType}
		var body []byte
		if err := rows.Scan(&rec.ID, &rec.ClientKey, &body, &rec.ModifiedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		rec.Body = body
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

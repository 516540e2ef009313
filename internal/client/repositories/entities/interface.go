package entities

import (
	"context"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
)

// Record is one stored entity.
type Record struct {
	Type      models.EntityType
	LocalID   int64
	ServerID  *int64
	UpdatedAt string
	Status    models.SyncStatus
	Payload   []byte
}

// StatusCounts holds per-type, per-status row counts.
type StatusCounts map[models.EntityType]map[models.SyncStatus]int

type Repository interface {
	// GetUnsynced returns rows in PENDING_SYNC or SYNC_FAILED, oldest local id first.
	GetUnsynced(ctx context.Context, t models.EntityType) ([]Record, error)

	// GetByLocalID and GetByServerID return common.ErrorNotFound when absent.
	GetByLocalID(ctx context.Context, t models.EntityType, localID int64) (*Record, error)
	GetByServerID(ctx context.Context, t models.EntityType, serverID int64) (*Record, error)

	// Upsert inserts or fully replaces the row with rec.LocalID.
	Upsert(ctx context.Context, rec Record) error

	UpdateSyncStatus(ctx context.Context, t models.EntityType, localID int64, status models.SyncStatus) error

	// MarkSynced records serverID and moves the row to SYNCED if its updated_at
	// still equals pushedUpdatedAt. A row edited while the push was in flight
	// keeps its status. The resulting status is returned.
	MarkSynced(ctx context.Context, t models.EntityType, localID, serverID int64, pushedUpdatedAt string) (models.SyncStatus, error)

	List(ctx context.Context, t models.EntityType) ([]Record, error)
	MaxLocalID(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (StatusCounts, error)
}

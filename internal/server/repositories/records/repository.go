// Package records stores the synced entities of every account.
//
// A record belongs to one owner and one entity type. Its client key is unique
// per owner and type, which makes repeated creates return the first record.
// ModifiedAt is assigned by the store on every write and strictly increases,
// so it serves as the change-feed checkpoint.
package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/splitsync/internal/server/models"
)

type Repository interface {
	// NextID reserves a record id.
	NextID(ctx context.Context) (int64, error)
	// Create stores rec and reports created=true. When the owner already has
	// a record of that type and client key, the stored record is returned
	// unchanged with created=false. A zero rec.ID takes the next free id.
	Create(ctx context.Context, rec *models.Record) (stored *models.Record, created bool, err error)
	// Update replaces the body of the owner's record rec.ID, or returns
	// common.ErrorNotFound.
	Update(ctx context.Context, rec *models.Record) (*models.Record, error)
	// ListSince returns the owner's records of one type modified after since,
	// oldest first.
	ListSince(ctx context.Context, ownerID int64, entityType string, since time.Time) ([]*models.Record, error)
}

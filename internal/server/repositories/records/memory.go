package records

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/splitsync/internal/common"
	"github.com/dmitrijs2005/splitsync/internal/server/models"
)

type MemoryRepository struct {
	mu      sync.Mutex
	lastID  int64
	clock   time.Time
	byID    map[int64]*models.Record
	byKey   map[string]int64
	ordered []*models.Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: map[int64]*models.Record{}, byKey: map[string]int64{}}
}

func clientKey(ownerID int64, entityType, key string) string {
	return strconv.FormatInt(ownerID, 10) + "/" + entityType + "/" + key
}

// tick returns the next modification time. Times are truncated to
// microseconds like PostgreSQL timestamps and never repeat.
func (r *MemoryRepository) tick() time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(r.clock) {
		now = r.clock.Add(time.Microsecond)
	}
	r.clock = now
	return now
}

func (r *MemoryRepository) NextID(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	return r.lastID, nil
}

func (r *MemoryRepository) Create(ctx context.Context, rec *models.Record) (*models.Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := clientKey(rec.OwnerID, rec.EntityType, rec.ClientKey)
	if id, ok := r.byKey[k]; ok {
		stored := *r.byID[id]
		return &stored, false, nil
	}

	if rec.ID == 0 {
		r.lastID++
		rec.ID = r.lastID
	} else if rec.ID > r.lastID {
		r.lastID = rec.ID
	}
	rec.ModifiedAt = r.tick()

	stored := *rec
	r.byID[rec.ID] = &stored
	r.byKey[k] = rec.ID
	r.ordered = append(r.ordered, &stored)
	return rec, true, nil
}

func (r *MemoryRepository) Update(ctx context.Context, rec *models.Record) (*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[rec.ID]
	if !ok || stored.OwnerID != rec.OwnerID || stored.EntityType != rec.EntityType {
		return nil, common.ErrorNotFound
	}
	stored.Body = rec.Body
	stored.ModifiedAt = r.tick()

	// keep ordered sorted by modification time
	r.ordered = slices.DeleteFunc(r.ordered, func(x *models.Record) bool { return x.ID == stored.ID })
	r.ordered = append(r.ordered, stored)

	out := *stored
	return &out, nil
}

func (r *MemoryRepository) ListSince(ctx context.Context, ownerID int64, entityType string, since time.Time) ([]*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Record
	for _, rec := range r.ordered {
		if rec.OwnerID == ownerID && rec.EntityType == entityType && rec.ModifiedAt.After(since) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

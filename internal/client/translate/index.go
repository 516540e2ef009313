package translate

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
	"github.com/dmitrijs2005/splitsync/internal/client/repositories/idmap"
	"github.com/dmitrijs2005/splitsync/internal/dbx"
)

// Lookup answers id questions in both directions for one entity type.
type Lookup interface {
	ServerID(t models.EntityType, localID int64) (int64, bool)
	LocalID(t models.EntityType, serverID int64) (int64, bool)
}

type key struct {
	t  models.EntityType
	id int64
}

// Index is the id_map table fronted by an in-memory copy.
//
// Remember writes a pair inside the caller's transaction; Learn publishes it
// to lookups and must only be called once that transaction has committed.
type Index struct {
	mu       sync.RWMutex
	toServer map[key]int64
	toLocal  map[key]int64
}

// NewIndex loads every stored pair from db.
func NewIndex(ctx context.Context, db dbx.DBTX) (*Index, error) {
	all, err := idmap.NewSQLiteRepository(db).All(ctx)
	if err != nil {
		return nil, err
	}
	x := &Index{
		toServer: make(map[key]int64, len(all)),
		toLocal:  make(map[key]int64, len(all)),
	}
	for _, m := range all {
		x.toServer[key{m.Type, m.LocalID}] = m.ServerID
		x.toLocal[key{m.Type, m.ServerID}] = m.LocalID
	}
	return x, nil
}

func (x *Index) ServerID(t models.EntityType, localID int64) (int64, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	id, ok := x.toServer[key{t, localID}]
	return id, ok
}

func (x *Index) LocalID(t models.EntityType, serverID int64) (int64, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	id, ok := x.toLocal[key{t, serverID}]
	return id, ok
}

// Remember persists localID ↔ serverID through tx.
func (x *Index) Remember(ctx context.Context, tx dbx.DBTX, t models.EntityType, localID, serverID int64) error {
	x.mu.RLock()
	known, hasLocal := x.toServer[key{t, localID}]
	owner, hasServer := x.toLocal[key{t, serverID}]
	x.mu.RUnlock()

	if hasLocal && known != serverID {
		return fmt.Errorf("%s local id %d is already mapped to server id %d", t, localID, known)
	}
	if hasServer && owner != localID {
		return fmt.Errorf("%s server id %d is already mapped to local id %d", t, serverID, owner)
	}
	if hasLocal && hasServer {
		return nil
	}
	return idmap.NewSQLiteRepository(tx).Put(ctx, idmap.Mapping{Type: t, LocalID: localID, ServerID: serverID})
}

// Learn makes a committed pair visible to lookups.
func (x *Index) Learn(t models.EntityType, localID, serverID int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.toServer[key{t, localID}] = serverID
	x.toLocal[key{t, serverID}] = localID
}

// Len returns the number of known pairs.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.toServer)
}

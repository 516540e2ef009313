package syncer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/splitsync/internal/client/client"
	"github.com/dmitrijs2005/splitsync/internal/client/localid"
	"github.com/dmitrijs2005/splitsync/internal/client/migrations"
	"github.com/dmitrijs2005/splitsync/internal/client/models"
	"github.com/dmitrijs2005/splitsync/internal/client/repositories/entities"
	"github.com/dmitrijs2005/splitsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/splitsync/internal/client/translate"
	"github.com/dmitrijs2005/splitsync/internal/common"

	_ "modernc.org/sqlite"
)

type fakeRecord struct {
	id       int64
	modified int64
	fields   map[string]json.RawMessage
}

// fakeRemote keeps records per type and stamps every write with a logical
// clock; the clock value is the checkpoint it hands out.
type fakeRemote struct {
	mu      sync.Mutex
	nextID  int64
	clock   int64
	records map[models.EntityType][]*fakeRecord
	keys    map[string]int64

	creates int
	updates int
	lists   int

	// createHook runs before a create is stored; a non-nil error fails it.
	createHook func(t models.EntityType, fields map[string]json.RawMessage) error
	// dropResponse stores the create but reports ErrUnavailable.
	dropResponse bool
	listErr      error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		nextID:  1000,
		records: map[models.EntityType][]*fakeRecord{},
		keys:    map[string]int64{},
	}
}

func (f *fakeRemote) Create(ctx context.Context, t models.EntityType, key string, payload []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	if f.createHook != nil {
		if err := f.createHook(t, fields); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++

	if id, ok := f.keys[string(t)+"/"+key]; ok {
		return f.find(t, id).body(), nil
	}
	f.nextID++
	f.clock++
	rec := &fakeRecord{id: f.nextID, modified: f.clock, fields: fields}
	rec.fields["id"] = json.RawMessage(strconv.FormatInt(rec.id, 10))
	rec.fields["client_key"] = json.RawMessage(strconv.Quote(key))
	f.records[t] = append(f.records[t], rec)
	f.keys[string(t)+"/"+key] = rec.id

	if f.dropResponse {
		f.dropResponse = false
		return nil, errUnavailable
	}
	return rec.body(), nil
}

func (f *fakeRemote) Update(ctx context.Context, t models.EntityType, id int64, payload []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++

	rec := f.find(t, id)
	if rec == nil {
		return nil, common.ErrorNotFound
	}
	f.clock++
	rec.modified = f.clock
	if key, ok := rec.fields["client_key"]; ok {
		fields["client_key"] = key
	}
	rec.fields = fields
	rec.fields["id"] = json.RawMessage(strconv.FormatInt(id, 10))
	return rec.body(), nil
}

func (f *fakeRemote) ListSince(ctx context.Context, t models.EntityType, since string, userID int64) ([][]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++

	if f.listErr != nil {
		return nil, "", f.listErr
	}
	var from int64
	if since != "" {
		from, _ = strconv.ParseInt(since, 10, 64)
	}
	var out [][]byte
	for _, rec := range f.records[t] {
		if rec.modified > from {
			out = append(out, rec.body())
		}
	}
	return out, strconv.FormatInt(f.clock, 10), nil
}

// seed stores a record as if another device had created it.
func (f *fakeRemote) seed(t models.EntityType, id int64, e any) {
	raw, _ := json.Marshal(e)
	var fields map[string]json.RawMessage
	_ = json.Unmarshal(raw, &fields)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock++
	fields["id"] = json.RawMessage(strconv.FormatInt(id, 10))
	f.records[t] = append(f.records[t], &fakeRecord{id: id, modified: f.clock, fields: fields})
}

func (f *fakeRemote) find(t models.EntityType, id int64) *fakeRecord {
	for _, rec := range f.records[t] {
		if rec.id == id {
			return rec
		}
	}
	return nil
}

func (f *fakeRemote) field(t models.EntityType, id int64, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.find(t, id)
	if rec == nil {
		return ""
	}
	return string(rec.fields[name])
}

func (f *fakeRemote) count(t models.EntityType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records[t])
}

func (r *fakeRecord) body() []byte {
	b, _ := json.Marshal(r.fields)
	return b
}

var errUnavailable = fmt.Errorf("connection refused: %w", client.ErrUnavailable)

type harness struct {
	db     *sql.DB
	remote *fakeRemote
	ids    *localid.Generator
	index  *translate.Index
	deps   Deps
	env    Env
	now    time.Time
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db := setupDB(t)

	meta := metadata.NewSQLiteRepository(db)
	ids, err := localid.New(ctx, meta, 0)
	require.NoError(t, err)
	ix, err := translate.NewIndex(ctx, db)
	require.NoError(t, err)

	h := &harness{
		db:     db,
		remote: newFakeRemote(),
		ids:    ids,
		index:  ix,
		env:    Env{UserID: 7, DeviceID: "dev-a"},
		now:    time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
	}
	h.deps = Deps{
		DB:          db,
		Remote:      h.remote,
		Index:       ix,
		IDs:         ids,
		Checkpoints: NewMetadataCheckpoints(meta),
		Now:         func() time.Time { return h.now },
	}
	return h
}

// put stores e as a fresh local edit and returns its local id.
func (h *harness) put(t *testing.T, typ models.EntityType, e models.Entity) int64 {
	t.Helper()
	ctx := context.Background()
	meta := e.Meta()
	if meta.LocalID == 0 {
		id, err := h.ids.Next(ctx)
		require.NoError(t, err)
		meta.LocalID = id
	}
	meta.Touch(h.now)
	rec, err := entities.Encode(typ, e)
	require.NoError(t, err)
	require.NoError(t, entities.NewSQLiteRepository(h.db).Upsert(ctx, rec))
	return meta.LocalID
}

func (h *harness) record(t *testing.T, typ models.EntityType, localID int64) entities.Record {
	t.Helper()
	rec, err := entities.NewSQLiteRepository(h.db).GetByLocalID(context.Background(), typ, localID)
	require.NoError(t, err)
	return *rec
}

func (h *harness) all(t *testing.T, typ models.EntityType) []entities.Record {
	t.Helper()
	recs, err := entities.NewSQLiteRepository(h.db).List(context.Background(), typ)
	require.NoError(t, err)
	return recs
}

func (h *harness) orchestrator() *Orchestrator {
	o := NewOrchestrator(nil, nil, nil)
	o.Register(NewManagers(Options{BatchSize: 2, Workers: 2, CallTimeout: time.Second}, h.deps)...)
	return o
}

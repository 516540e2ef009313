package syncer

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/splitsync/internal/client/conflict"
	"github.com/dmitrijs2005/splitsync/internal/client/models"
	"github.com/dmitrijs2005/splitsync/internal/client/repositories/entities"
	"github.com/dmitrijs2005/splitsync/internal/client/translate"
	"github.com/dmitrijs2005/splitsync/internal/common"
	"github.com/dmitrijs2005/splitsync/internal/dbx"
	"github.com/dmitrijs2005/splitsync/internal/logging"
)

const (
	DefaultBatchSize   = 50
	DefaultWorkers     = 4
	DefaultCallTimeout = 15 * time.Second
)

var ErrMissingServerID = errors.New("server entity has no id")

type Options struct {
	EntityType models.EntityType
	// Priority orders managers; lower runs first. Parents must not have a
	// higher priority than their children.
	Priority    int
	BatchSize   int
	Workers     int
	CallTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	return o
}

// Deps are shared by every Manager of one replica.
type Deps struct {
	DB          *sql.DB
	Remote      Remote
	Index       *translate.Index
	IDs         IDSource
	Checkpoints CheckpointStore
	Logger      logging.Logger
	Metrics     *Metrics
	Now         func() time.Time
}

// Manager synchronizes entities of one type.
type Manager[T any, P interface {
	*T
	models.Entity
}] struct {
	opts Options
	deps Deps
	log  logging.Logger
}

func NewManager[T any, P interface {
	*T
	models.Entity
}](opts Options, deps Deps) *Manager[T, P] {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	return &Manager[T, P]{
		opts: opts.withDefaults(),
		deps: deps,
		log:  deps.Logger.With("entity_type", string(opts.EntityType)),
	}
}

func (m *Manager[T, P]) EntityType() models.EntityType { return m.opts.EntityType }

func (m *Manager[T, P]) Priority() int { return m.opts.Priority }

// GetLocalChanges returns entities in PENDING_SYNC or SYNC_FAILED.
func (m *Manager[T, P]) GetLocalChanges(ctx context.Context) ([]P, error) {
	recs, err := entities.NewSQLiteRepository(m.deps.DB).GetUnsynced(ctx, m.opts.EntityType)
	if err != nil {
		return nil, err
	}
	return entities.DecodeAll[T, P](recs)
}

// SyncToServer pushes one entity: a create when it has no server id, an
// update otherwise. On success the stored row gets the server id and moves to
// SYNCED unless it was edited meanwhile.
//
// An unresolved foreign key returns an *translate.IDResolutionError and
// leaves the row untouched. Any other failure marks the row SYNC_FAILED.
func (m *Manager[T, P]) SyncToServer(ctx context.Context, env Env, e P) (P, error) {
	t := m.opts.EntityType
	meta := e.Meta()

	if _, err := meta.SyncStatus.Transition(models.EventPushSucceeded); err != nil {
		return nil, fmt.Errorf("push %s local_id=%d: %w", t, meta.LocalID, err)
	}

	wire, err := translate.ToServer[T, P](m.deps.Index, t, e)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s local_id=%d: %w", t, meta.LocalID, err)
	}

	resp, err := m.send(ctx, env, meta, payload)
	if err == nil {
		var serverID int64
		serverID, err = responseID(resp, meta.ServerID)
		if err == nil {
			return m.commitPush(ctx, e, serverID)
		}
	}

	if ferr := m.markFailed(ctx, meta); ferr != nil {
		err = errors.Join(err, ferr)
	}
	return nil, fmt.Errorf("push %s local_id=%d: %w", t, meta.LocalID, err)
}

func (m *Manager[T, P]) send(ctx context.Context, env Env, meta *models.SyncMeta, payload []byte) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()

	if meta.ServerID == nil {
		return m.deps.Remote.Create(callCtx, m.opts.EntityType, IdempotencyKey(env.DeviceID, meta.LocalID), payload)
	}
	return m.deps.Remote.Update(callCtx, m.opts.EntityType, *meta.ServerID, payload)
}

func responseID(resp []byte, known *int64) (int64, error) {
	var body struct {
		ID *int64 `json:"id"`
	}
	if len(resp) > 0 {
		if err := json.Unmarshal(resp, &body); err != nil {
			return 0, fmt.Errorf("failed to decode server response: %w", err)
		}
	}
	switch {
	case known != nil && body.ID != nil && *known != *body.ID:
		return 0, fmt.Errorf("server returned id %d for record %d", *body.ID, *known)
	case known != nil:
		return *known, nil
	case body.ID == nil || *body.ID <= 0:
		return 0, ErrMissingServerID
	default:
		return *body.ID, nil
	}
}

func (m *Manager[T, P]) commitPush(ctx context.Context, e P, serverID int64) (P, error) {
	t := m.opts.EntityType
	meta := e.Meta()

	var status models.SyncStatus
	err := dbx.WithTx(ctx, m.deps.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		s, err := entities.NewSQLiteRepository(tx).MarkSynced(ctx, t, meta.LocalID, serverID, meta.UpdatedAt)
		if err != nil {
			return err
		}
		status = s
		return m.deps.Index.Remember(ctx, tx, t, meta.LocalID, serverID)
	})
	if err != nil {
		return nil, fmt.Errorf("push %s local_id=%d: failed to record server id %d: %w", t, meta.LocalID, serverID, err)
	}
	m.deps.Index.Learn(t, meta.LocalID, serverID)

	out := models.Clone(e)
	out.Meta().ServerID = models.Int64Ptr(serverID)
	out.Meta().SyncStatus = status
	return out, nil
}

func (m *Manager[T, P]) markFailed(ctx context.Context, meta *models.SyncMeta) error {
	next, err := meta.SyncStatus.Transition(models.EventPushFailed)
	if err != nil {
		return err
	}
	return entities.NewSQLiteRepository(m.deps.DB).UpdateSyncStatus(ctx, m.opts.EntityType, meta.LocalID, next)
}

// GetServerChanges fetches entities of this type changed after since. The
// returned server time is the checkpoint to store once they are applied.
func (m *Manager[T, P]) GetServerChanges(ctx context.Context, env Env, since string) ([]P, string, error) {
	changes, serverTime, err := m.fetch(ctx, env, since)
	if err != nil {
		return nil, "", err
	}
	out := make([]P, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.entity)
	}
	return out, serverTime, nil
}

type serverChange[P any] struct {
	entity P
	// clientKey is the idempotency key the record was created with.
	clientKey string
}

func (m *Manager[T, P]) fetch(ctx context.Context, env Env, since string) ([]serverChange[P], string, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()

	payloads, serverTime, err := m.deps.Remote.ListSince(callCtx, m.opts.EntityType, since, env.UserID)
	if err != nil {
		return nil, "", err
	}

	out := make([]serverChange[P], 0, len(payloads))
	for _, raw := range payloads {
		var v T
		p := P(&v)
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, "", fmt.Errorf("failed to decode server %s: %w", m.opts.EntityType, err)
		}
		var key struct {
			ClientKey string `json:"client_key"`
		}
		_ = json.Unmarshal(raw, &key)
		out = append(out, serverChange[P]{entity: p, clientKey: key.ClientKey})
	}
	return out, serverTime, nil
}

// ApplyServerChange merges one server entity into the local store.
//
// An unknown entity is inserted as SYNCED under a fresh local id. A known one
// goes through conflict resolution: the server version overwrites the row as
// SYNCED, or the local version stays and is marked PENDING_SYNC so that it is
// pushed again. A server version that won but took local flags in the merge
// is also left PENDING_SYNC.
func (m *Manager[T, P]) ApplyServerChange(ctx context.Context, s P) (Outcome, error) {
	return m.apply(ctx, Env{}, serverChange[P]{entity: s})
}

func (m *Manager[T, P]) apply(ctx context.Context, env Env, c serverChange[P]) (Outcome, error) {
	t := m.opts.EntityType
	s := c.entity
	if s.Meta().ServerID == nil {
		return 0, ErrMissingServerID
	}
	serverID := *s.Meta().ServerID

	existing, err := m.findLocal(ctx, serverID, ownLocalID(env, c.clientKey))
	if err != nil {
		return 0, err
	}

	incoming, err := translate.FromServer[T, P](m.deps.Index, t, s, existing)
	if err != nil {
		return 0, err
	}

	if existing == nil {
		localID, err := m.deps.IDs.Next(ctx)
		if err != nil {
			return 0, err
		}
		meta := incoming.Meta()
		meta.LocalID = localID
		meta.ServerID = models.Int64Ptr(serverID)
		if meta.SyncStatus, err = models.StatusSynced.Transition(models.EventServerApplied); err != nil {
			return 0, err
		}
		if err := m.store(ctx, incoming, true); err != nil {
			return 0, err
		}
		return OutcomeInserted, nil
	}

	res := conflict.Resolve[T, P](existing, incoming, true)
	won := res.Entity.Meta()
	won.LocalID = existing.Meta().LocalID
	won.ServerID = models.Int64Ptr(serverID)

	event, outcome := models.EventServerApplied, OutcomeServerWins
	switch {
	case res.Winner == conflict.LocalWins:
		event, outcome = models.EventLocalWinsConflict, OutcomeLocalWins
	case !sameOnWire(res.Entity, incoming):
		// merged local flags the server lacks; push them back
		event = models.EventLocalWinsConflict
	}
	if won.SyncStatus, err = existing.Meta().SyncStatus.Transition(event); err != nil {
		return 0, err
	}
	if err := m.store(ctx, res.Entity, existing.Meta().ServerID == nil); err != nil {
		return 0, err
	}
	return outcome, nil
}

func sameOnWire(a, b any) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

// findLocal returns the local counterpart of serverID, or nil. ownID is the
// local id this device created the record under, or 0; it finds rows whose
// create succeeded on the server but whose response never arrived.
func (m *Manager[T, P]) findLocal(ctx context.Context, serverID, ownID int64) (P, error) {
	t := m.opts.EntityType
	repo := entities.NewSQLiteRepository(m.deps.DB)

	rec, err := repo.GetByServerID(ctx, t, serverID)
	if errors.Is(err, common.ErrorNotFound) {
		localID, ok := m.deps.Index.LocalID(t, serverID)
		if !ok {
			localID = ownID
		}
		if localID == 0 {
			return nil, nil
		}
		rec, err = repo.GetByLocalID(ctx, t, localID)
		if errors.Is(err, common.ErrorNotFound) || (err == nil && rec.ServerID != nil) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return entities.Decode[T, P](*rec)
}

// ownLocalID extracts the local id from an idempotency key issued by this
// device.
func ownLocalID(env Env, key string) int64 {
	if env.DeviceID == "" {
		return 0
	}
	rest, ok := strings.CutPrefix(key, env.DeviceID+":")
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (m *Manager[T, P]) store(ctx context.Context, e P, remember bool) error {
	t := m.opts.EntityType
	rec, err := entities.Encode(t, e)
	if err != nil {
		return err
	}
	localID, serverID := e.Meta().LocalID, models.ServerIDOf(e)

	err = dbx.WithTx(ctx, m.deps.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := entities.NewSQLiteRepository(tx).Upsert(ctx, rec); err != nil {
			return err
		}
		if remember {
			return m.deps.Index.Remember(ctx, tx, t, localID, serverID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply %s id=%d: %w", t, serverID, err)
	}
	if remember {
		m.deps.Index.Learn(t, localID, serverID)
	}
	return nil
}

// Sync runs one push phase followed by one pull phase.
//
// Per-entity problems end up in the Result. The returned error is set when
// the phase as a whole could not run: loading local changes failed, the
// server listing failed, or ctx was cancelled.
func (m *Manager[T, P]) Sync(ctx context.Context, env Env) (Result, error) {
	started := m.deps.Now()
	res := Result{EntityType: m.opts.EntityType}

	if err := m.push(ctx, env, &res); err != nil {
		return res, err
	}
	if err := m.pull(ctx, env, &res, started); err != nil {
		return res, err
	}

	m.log.Debug(ctx, "sync done", "result", res.String())
	return res, nil
}

func (m *Manager[T, P]) push(ctx context.Context, env Env, res *Result) error {
	changes, err := m.GetLocalChanges(ctx)
	if err != nil {
		return fmt.Errorf("push %s: %w", m.opts.EntityType, err)
	}

	var mu sync.Mutex
	for start := 0; start < len(changes); start += m.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := changes[start:min(start+m.opts.BatchSize, len(changes))]

		var g errgroup.Group
		g.SetLimit(m.opts.Workers)
		for _, e := range batch {
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				created := !e.Meta().HasServerID()
				_, err := m.SyncToServer(ctx, env, e)

				mu.Lock()
				defer mu.Unlock()
				m.recordPush(ctx, res, e.Meta(), created, err)
				return nil
			})
		}
		_ = g.Wait()
	}
	return ctx.Err()
}

func (m *Manager[T, P]) recordPush(ctx context.Context, res *Result, meta *models.SyncMeta, created bool, err error) {
	t := m.opts.EntityType
	switch {
	case err == nil && created:
		res.Pushed++
		res.Created++
		m.deps.Metrics.push(t, "created")
	case err == nil:
		res.Pushed++
		res.Updated++
		m.deps.Metrics.push(t, "updated")
	case errors.Is(err, translate.ErrUnresolved):
		res.Deferred++
		m.deps.Metrics.push(t, "deferred")
		m.log.Debug(ctx, "push deferred", "local_id", meta.LocalID, "reason", err)
	default:
		res.Failed++
		res.Failures = append(res.Failures, Failure{LocalID: meta.LocalID, ServerID: serverIDOf(meta), Err: err})
		m.deps.Metrics.push(t, "failed")
		m.log.Warn(ctx, "push failed", "local_id", meta.LocalID, "error", err)
	}
}

func (m *Manager[T, P]) pull(ctx context.Context, env Env, res *Result, started time.Time) error {
	t := m.opts.EntityType

	since, err := m.deps.Checkpoints.Get(ctx, t)
	if err != nil {
		return fmt.Errorf("pull %s: failed to read checkpoint: %w", t, err)
	}
	res.Checkpoint = since

	items, serverTime, err := m.fetch(ctx, env, since)
	if err != nil {
		return fmt.Errorf("pull %s: %w", t, err)
	}
	res.Pulled = len(items)

	holdBack := false
	for _, c := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := c.entity
		outcome, err := m.apply(ctx, env, c)
		switch {
		case err == nil:
			m.recordApply(res, outcome)
		case errors.Is(err, translate.ErrUnresolved):
			holdBack = true
			res.PullDeferred++
			m.deps.Metrics.apply(t, "deferred")
			m.log.Debug(ctx, "apply deferred", "server_id", models.ServerIDOf(item), "reason", err)
		default:
			res.ApplyFailed++
			res.Failures = append(res.Failures, Failure{ServerID: models.ServerIDOf(item), Err: err})
			m.deps.Metrics.apply(t, "failed")
			m.log.Warn(ctx, "apply failed", "server_id", models.ServerIDOf(item), "error", err)
		}
	}

	if holdBack {
		m.log.Info(ctx, "checkpoint held back", "checkpoint", since)
		return nil
	}

	next := serverTime
	if next == "" && len(items) > 0 {
		next = models.Timestamp(started)
	}
	if next == "" || next == since {
		return nil
	}
	if err := m.deps.Checkpoints.Set(ctx, t, next); err != nil {
		return fmt.Errorf("pull %s: failed to store checkpoint: %w", t, err)
	}
	res.Checkpoint = next
	res.CheckpointAdvanced = true
	return nil
}

func (m *Manager[T, P]) recordApply(res *Result, o Outcome) {
	switch o {
	case OutcomeInserted:
		res.Inserted++
	case OutcomeServerWins:
		res.ServerWins++
	case OutcomeLocalWins:
		res.LocalWins++
	}
	m.deps.Metrics.apply(m.opts.EntityType, o.String())
}

func serverIDOf(meta *models.SyncMeta) int64 {
	if meta.ServerID == nil {
		return 0
	}
	return *meta.ServerID
}

// Package localid issues provisional identifiers for entities created on
// this device.
//
// Ids are unique for the lifetime of the local store and never decrease.
// The generator reserves ids in blocks and persists the top of the current
// block before handing out any id from it, so a restart resumes above every
// id that may already be in use. Ids left unused in a block are skipped.
package localid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// HighWaterMarkKey is the metadata key holding the highest reserved id.
const HighWaterMarkKey = "local_id_hwm"

const DefaultBlockSize = 64

var ErrPersist = errors.New("failed to persist local id high-water mark")

// Store is the metadata subset the generator needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

type Generator struct {
	mu        sync.Mutex
	store     Store
	blockSize int64
	next      int64
	limit     int64
}

type Option func(*Generator)

// WithBlockSize sets how many ids one persisted reservation covers.
func WithBlockSize(n int64) Option {
	return func(g *Generator) {
		if n > 0 {
			g.blockSize = n
		}
	}
}

// New restores the generator from store. floor is the largest local id known
// to be in use; the generator never issues an id at or below it.
func New(ctx context.Context, store Store, floor int64, opts ...Option) (*Generator, error) {
	g := &Generator{store: store, blockSize: DefaultBlockSize}
	for _, opt := range opts {
		opt(g)
	}

	hwm, err := g.load(ctx)
	if err != nil {
		return nil, err
	}
	g.limit = max(hwm, floor)
	g.next = g.limit + 1
	return g, nil
}

func (g *Generator) load(ctx context.Context) (int64, error) {
	raw, err := g.store.Get(ctx, HighWaterMarkKey)
	if err != nil {
		return 0, fmt.Errorf("failed to load local id high-water mark: %w", err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	hwm, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt local id high-water mark %q: %w", raw, err)
	}
	return hwm, nil
}

// Next returns a fresh id. When a new block has to be reserved and the
// reservation cannot be persisted, no id is returned.
func (g *Generator) Next(ctx context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.next > g.limit {
		limit := g.next + g.blockSize - 1
		if err := g.store.Set(ctx, HighWaterMarkKey, []byte(strconv.FormatInt(limit, 10))); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrPersist, err)
		}
		g.limit = limit
	}

	id := g.next
	g.next++
	return id, nil
}

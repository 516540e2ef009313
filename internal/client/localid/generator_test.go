package localid

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	values map[string][]byte
	sets   int
	setErr error
	getErr error
}

func newMemStore() *memStore { return &memStore{values: map[string][]byte{}} }

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], m.getErr
}

func (m *memStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.values[key] = value
	return nil
}

func TestNext_MonotonicAndPersistsPerBlock(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	g, err := New(ctx, store, 0, WithBlockSize(4))
	require.NoError(t, err)

	var got []int64
	for range 6 {
		id, err := g.Next(ctx)
		require.NoError(t, err)
		got = append(got, id)
	}
	require.Equal(t, []int64{1, 2, 3, 4, 5, 6}, got)
	require.Equal(t, 2, store.sets)
	require.Equal(t, "8", string(store.values[HighWaterMarkKey]))
}

func TestNew_ResumesAboveReservedBlock(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	g, err := New(ctx, store, 0, WithBlockSize(10))
	require.NoError(t, err)
	_, err = g.Next(ctx)
	require.NoError(t, err)

	restarted, err := New(ctx, store, 0, WithBlockSize(10))
	require.NoError(t, err)
	id, err := restarted.Next(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 11, id)
}

func TestNew_RespectsFloor(t *testing.T) {
	store := newMemStore()
	store.values[HighWaterMarkKey] = []byte("3")

	g, err := New(context.Background(), store, 500)
	require.NoError(t, err)
	id, err := g.Next(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 501, id)
}

func TestNext_PersistFailureIsSurfaced(t *testing.T) {
	store := newMemStore()
	store.setErr = errors.New("disk full")
	ctx := context.Background()

	g, err := New(ctx, store, 0)
	require.NoError(t, err)

	_, err = g.Next(ctx)
	require.ErrorIs(t, err, ErrPersist)

	store.setErr = nil
	id, err := g.Next(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, id)
}

func TestNew_CorruptOrUnreadableMark(t *testing.T) {
	store := newMemStore()
	store.values[HighWaterMarkKey] = []byte("abc")
	_, err := New(context.Background(), store, 0)
	require.Error(t, err)

	store = newMemStore()
	store.getErr = errors.New("io")
	_, err = New(context.Background(), store, 0)
	require.Error(t, err)
}

func TestNext_ConcurrentCallersGetDistinctIDs(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	g, err := New(ctx, store, 0, WithBlockSize(3))
	require.NoError(t, err)

	const n = 200
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := g.Next(ctx)
			if err == nil {
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	require.Len(t, seen, n)
}

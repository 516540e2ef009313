package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
)

type stubSyncer struct {
	typ      models.EntityType
	priority int
	err      error

	mu    *sync.Mutex
	calls *[]models.EntityType

	started chan struct{}
	release chan struct{}
}

func (s *stubSyncer) EntityType() models.EntityType { return s.typ }
func (s *stubSyncer) Priority() int                 { return s.priority }

func (s *stubSyncer) Sync(ctx context.Context, env Env) (Result, error) {
	if s.started != nil {
		close(s.started)
		<-s.release
	}
	if s.calls != nil {
		s.mu.Lock()
		*s.calls = append(*s.calls, s.typ)
		s.mu.Unlock()
	}
	return Result{EntityType: s.typ}, s.err
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

var env = Env{UserID: 1, DeviceID: "dev"}

func recorder() (*sync.Mutex, *[]models.EntityType) {
	return &sync.Mutex{}, &[]models.EntityType{}
}

func TestOrchestrator_RunsInPriorityOrder(t *testing.T) {
	mu, calls := recorder()
	o := NewOrchestrator(nil, nil, nil)
	o.Register(
		&stubSyncer{typ: models.TypePayment, priority: 4, mu: mu, calls: calls},
		&stubSyncer{typ: models.TypeGroup, priority: 1, mu: mu, calls: calls},
		&stubSyncer{typ: models.TypeArchive, priority: 6, mu: mu, calls: calls},
		&stubSyncer{typ: models.TypeUser, priority: 1, mu: mu, calls: calls},
	)

	report, err := o.Run(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, []models.EntityType{
		models.TypeGroup, models.TypeUser, models.TypePayment, models.TypeArchive,
	}, *calls)
	require.Len(t, report.Results, 4)
	require.Empty(t, report.Skipped)
}

func TestOrchestrator_DefaultOrderRespectsForeignKeys(t *testing.T) {
	h := newHarness(t)
	order := typesOf(h.orchestrator().Order())
	pos := map[models.EntityType]int{}
	for i, typ := range order {
		pos[typ] = i
	}

	parents := map[models.EntityType][]models.EntityType{
		models.TypeGroup:        {models.TypeUser},
		models.TypeGroupMember:  {models.TypeGroup, models.TypeUser},
		models.TypeRequisition:  {models.TypeUser},
		models.TypeBankAccount:  {models.TypeUser},
		models.TypePayment:      {models.TypeGroup, models.TypeUser},
		models.TypePaymentSplit: {models.TypePayment, models.TypeUser},
		models.TypeTransaction:  {models.TypeUser, models.TypeBankAccount, models.TypePayment},
		models.TypeArchive:      {models.TypeUser, models.TypeGroup},
	}
	for child, ps := range parents {
		for _, p := range ps {
			require.Less(t, pos[p], pos[child], "%s must run before %s", p, child)
		}
	}
}

func TestOrchestrator_ErrorOfOneTypeDoesNotStopOthers(t *testing.T) {
	mu, calls := recorder()
	broken := errors.New("decode failed")
	o := NewOrchestrator(nil, nil, nil)
	o.Register(
		&stubSyncer{typ: models.TypeUser, priority: 1, err: broken, mu: mu, calls: calls},
		&stubSyncer{typ: models.TypeGroup, priority: 2, mu: mu, calls: calls},
	)

	report, err := o.Run(context.Background(), env)
	require.ErrorIs(t, err, broken)
	require.Equal(t, []models.EntityType{models.TypeUser, models.TypeGroup}, *calls)
	require.Empty(t, report.Skipped)
}

func TestOrchestrator_NetworkErrorStopsPass(t *testing.T) {
	mu, calls := recorder()
	o := NewOrchestrator(nil, nil, nil)
	o.Register(
		&stubSyncer{typ: models.TypeUser, priority: 1, err: errUnavailable, mu: mu, calls: calls},
		&stubSyncer{typ: models.TypeGroup, priority: 2, mu: mu, calls: calls},
		&stubSyncer{typ: models.TypePayment, priority: 3, mu: mu, calls: calls},
	)

	report, err := o.Run(context.Background(), env)
	require.ErrorIs(t, err, errUnavailable)
	require.Equal(t, []models.EntityType{models.TypeUser}, *calls)
	require.Equal(t, []models.EntityType{models.TypeGroup, models.TypePayment}, report.Skipped)
}

func TestOrchestrator_Preconditions(t *testing.T) {
	t.Run("no user", func(t *testing.T) {
		o := NewOrchestrator(nil, nil, nil)
		_, err := o.Run(context.Background(), Env{DeviceID: "dev"})
		require.ErrorIs(t, err, ErrNoUser)
	})

	t.Run("offline", func(t *testing.T) {
		mu, calls := recorder()
		o := NewOrchestrator(pingerFunc(func(context.Context) error { return errUnavailable }), nil, nil)
		o.Register(&stubSyncer{typ: models.TypeUser, priority: 1, mu: mu, calls: calls})

		_, err := o.Run(context.Background(), env)
		require.ErrorIs(t, err, ErrOffline)
		require.ErrorIs(t, err, errUnavailable)
		require.Empty(t, *calls)
	})
}

func TestOrchestrator_SinglePassAtATime(t *testing.T) {
	blocker := &stubSyncer{
		typ:      models.TypeUser,
		priority: 1,
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	o := NewOrchestrator(nil, nil, nil)
	o.Register(blocker)

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(context.Background(), env)
		done <- err
	}()
	<-blocker.started

	_, err := o.Run(context.Background(), env)
	require.ErrorIs(t, err, ErrSyncInProgress)

	close(blocker.release)
	require.NoError(t, <-done)
}

func TestOrchestrator_CancelledContextSkipsRemaining(t *testing.T) {
	mu, calls := recorder()
	o := NewOrchestrator(nil, nil, nil)
	o.Register(
		&stubSyncer{typ: models.TypeUser, priority: 1, mu: mu, calls: calls},
		&stubSyncer{typ: models.TypeGroup, priority: 2, mu: mu, calls: calls},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := o.Run(ctx, env)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, *calls)
	require.Equal(t, []models.EntityType{models.TypeUser, models.TypeGroup}, report.Skipped)
}

func TestOrchestrator_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	o := NewOrchestrator(nil, nil, m)
	o.Register(&stubSyncer{typ: models.TypeUser, priority: 1})
	_, err := o.Run(context.Background(), env)
	require.NoError(t, err)
	_, err = o.Run(context.Background(), Env{})
	require.ErrorIs(t, err, ErrNoUser)

	require.InDelta(t, 1, testutil.ToFloat64(m.passes.WithLabelValues("ok")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.passes.WithLabelValues("no_user")), 0)
}

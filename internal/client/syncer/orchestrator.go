package syncer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
	"github.com/dmitrijs2005/splitsync/internal/logging"
)

const DefaultPingTimeout = 5 * time.Second

// TypeSyncer is one per-type participant of a pass. *Manager implements it.
type TypeSyncer interface {
	EntityType() models.EntityType
	Priority() int
	Sync(ctx context.Context, env Env) (Result, error)
}

// Report summarises one orchestrated pass.
type Report struct {
	StartedAt time.Time
	Duration  time.Duration
	Results   []Result
	// Skipped lists types not attempted because the pass stopped early.
	Skipped []models.EntityType
	Err     error
}

func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		n += res.Failed + res.ApplyFailed
	}
	return n
}

func (r *Report) String() string {
	var b strings.Builder
	for _, res := range r.Results {
		b.WriteString(res.String())
		b.WriteByte('\n')
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&b, "skipped: %v\n", r.Skipped)
	}
	return b.String()
}

// Orchestrator runs the registered syncers one after another in priority
// order. Only one pass runs at a time.
type Orchestrator struct {
	gate    sync.Mutex
	mu      sync.Mutex
	syncers []TypeSyncer

	pinger      Pinger
	pingTimeout time.Duration
	log         logging.Logger
	metrics     *Metrics
}

func NewOrchestrator(pinger Pinger, log logging.Logger, metrics *Metrics) *Orchestrator {
	if log == nil {
		log = logging.Nop()
	}
	return &Orchestrator{
		pinger:      pinger,
		pingTimeout: DefaultPingTimeout,
		log:         log,
		metrics:     metrics,
	}
}

func (o *Orchestrator) Register(s ...TypeSyncer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.syncers = append(o.syncers, s...)
}

// Order returns the registered syncers sorted by priority. Syncers with equal
// priority keep their registration order.
func (o *Orchestrator) Order() []TypeSyncer {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := slices.Clone(o.syncers)
	slices.SortStableFunc(out, func(a, b TypeSyncer) int { return a.Priority() - b.Priority() })
	return out
}

// Run performs one full pass.
//
// It fails fast with ErrSyncInProgress when another pass is running, ErrNoUser
// without a signed-in account and ErrOffline when the server does not answer
// a ping. Once started, an error of one type is recorded and the pass moves on
// to the next type, except for network errors which stop it. The joined
// errors are returned along with the report.
func (o *Orchestrator) Run(ctx context.Context, env Env) (*Report, error) {
	if !o.gate.TryLock() {
		o.metrics.pass("busy", 0)
		return nil, ErrSyncInProgress
	}
	defer o.gate.Unlock()

	if env.UserID == 0 {
		o.metrics.pass("no_user", 0)
		return nil, ErrNoUser
	}

	if o.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, o.pingTimeout)
		err := o.pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			o.metrics.pass("offline", 0)
			return nil, fmt.Errorf("%w: %w", ErrOffline, err)
		}
	}

	report := &Report{StartedAt: time.Now()}
	var errs []error

	ordered := o.Order()
	for i, s := range ordered {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			report.Skipped = typesOf(ordered[i:])
			break
		}

		res, err := s.Sync(ctx, env)
		report.Results = append(report.Results, res)
		if err == nil {
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", s.EntityType(), err))
		if IsNetworkError(err) {
			report.Skipped = typesOf(ordered[i+1:])
			o.log.Warn(ctx, "sync stopped", "entity_type", s.EntityType(), "error", err)
			break
		}
		o.log.Error(ctx, "sync of type failed", "entity_type", s.EntityType(), "error", err)
	}

	report.Duration = time.Since(report.StartedAt)
	report.Err = errors.Join(errs...)

	result := "ok"
	if report.Err != nil {
		result = "error"
	}
	o.metrics.pass(result, report.Duration.Seconds())
	o.log.Info(ctx, "sync pass finished", "duration", report.Duration, "failed", report.Failed(), "skipped", len(report.Skipped))

	return report, report.Err
}

func typesOf(s []TypeSyncer) []models.EntityType {
	out := make([]models.EntityType, 0, len(s))
	for _, x := range s {
		out = append(out, x.EntityType())
	}
	return out
}

package broker

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/retz/retz/internal/planner"
	"github.com/retz/retz/internal/store"
)

// Reference is a self-contained Interface implementation for Retz's demo
// mode (spec §4.D's "demo" non-goal carve-out — SPEC_FULL.md adds it back
// as a supplemented feature so `retzd demo` has something to schedule
// against without a real cluster). It advertises a fixed slave pool on a
// timer and reports every launch as STARTED a moment later, then FINISHED
// shortly after that.
type Reference struct {
	mu       sync.Mutex
	slaves   []store.Resources
	interval time.Duration
	logger   *log.Logger

	handler EventHandler
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ReferenceOption configures a Reference broker.
type ReferenceOption func(*Reference)

// WithSlaves overrides the default single-slave pool.
func WithSlaves(slaves []store.Resources) ReferenceOption {
	return func(r *Reference) { r.slaves = slaves }
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) ReferenceOption {
	return func(r *Reference) { r.logger = l }
}

// NewReference returns a demo-mode broker that emits an offer cycle every
// interval.
func NewReference(interval time.Duration, opts ...ReferenceOption) *Reference {
	r := &Reference{
		interval: interval,
		slaves:   []store.Resources{{CPU: 4, MemMB: 8192, Ports: 100}},
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reference) Register(ctx context.Context, handler EventHandler) (string, error) {
	r.mu.Lock()
	r.handler = handler
	r.mu.Unlock()

	frameworkID := newULID()

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	go r.run(runCtx)

	return frameworkID, nil
}

func (r *Reference) run(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.emitOfferCycle()
		}
	}
}

func (r *Reference) emitOfferCycle() {
	r.mu.Lock()
	handler := r.handler
	slaves := r.slaves
	r.mu.Unlock()
	if handler == nil {
		return
	}

	offers := make([]planner.Offer, len(slaves))
	for i, res := range slaves {
		offers[i] = planner.Offer{ID: newULID(), SlaveID: fmt.Sprintf("slave-%d", i), Resources: res}
	}
	handler.OnOffers(offers)
}

func (r *Reference) Launch(_ context.Context, _ string, job store.Job) (string, error) {
	taskID := newULID()
	r.logf("reference broker: launching job %d as task %s", job.ID, taskID)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		time.Sleep(50 * time.Millisecond)
		r.mu.Lock()
		handler := r.handler
		r.mu.Unlock()
		if handler == nil {
			return
		}
		handler.OnStatusUpdate(taskID, store.JobStarted, nil)

		time.Sleep(200 * time.Millisecond)
		finishedAt := time.Now().UTC().Format(time.RFC3339)
		handler.OnStatusUpdate(taskID, store.JobFinished, &finishedAt)
	}()

	return taskID, nil
}

func (r *Reference) Kill(_ context.Context, taskID string) error {
	r.logf("reference broker: kill requested for task %s", taskID)
	return nil
}

func (r *Reference) Decline(_ context.Context, offerID string) error {
	r.logf("reference broker: declining offer %s", offerID)
	return nil
}

// Reconcile is a no-op: Reference never drops a status update (its
// callbacks fire from a goroutine it owns, not an external connection),
// so there's nothing to redeliver.
func (r *Reference) Reconcile(_ context.Context, taskIDs []string) error {
	r.logf("reference broker: reconcile requested for %d task(s)", len(taskIDs))
	return nil
}

func (r *Reference) Stop(_ context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	return nil
}

func (r *Reference) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

func newULID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

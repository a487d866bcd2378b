// Package dispatcher is Retz's event loop: it reacts to broker callbacks
// (spec §4.D) by consulting the Planner and driving the Store through the
// Job lifecycle.
package dispatcher

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/retz/retz/internal/broker"
	"github.com/retz/retz/internal/events"
	"github.com/retz/retz/internal/jobstate"
	"github.com/retz/retz/internal/metrics"
	"github.com/retz/retz/internal/planner"
	"github.com/retz/retz/internal/store"
)

// Dispatcher implements broker.EventHandler, translating broker events
// into Store mutations chosen by a Planner.
type Dispatcher struct {
	store   *store.Store
	broker  broker.Interface
	plan    planner.Planner
	orderBy string
	logger  *log.Logger
	events  *events.Bus
	metrics *metrics.Collector

	mu           sync.Mutex
	connected    bool
	offersServed int
	launchedAt   map[string]time.Time
}

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithEvents attaches an events.Bus; every Job transition and offer-cycle
// outcome the Dispatcher applies is published to it. Optional: a
// Dispatcher with no Bus attached simply doesn't publish.
func WithEvents(b *events.Bus) Option {
	return func(d *Dispatcher) { d.events = b }
}

// WithMetrics attaches a metrics.Collector; launch/finish/kill/retry
// counters are incremented as the Dispatcher observes them. Optional.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) { d.metrics = c }
}

// publish is a no-op if no events.Bus was configured.
func (d *Dispatcher) publish(e events.Event) {
	if d.events != nil {
		d.events.Publish(e)
	}
}

// withMetrics is a no-op if no metrics.Collector was configured.
func (d *Dispatcher) withMetrics(fn func(*metrics.Collector)) {
	if d.metrics != nil {
		fn(d.metrics)
	}
}

// New builds a Dispatcher wired to st, a broker.Interface, and the given
// Planner strategy. orderBy must match the Planner ("fifo" or "priority")
// so Queued jobs are fetched in the order the Planner expects.
func New(st *store.Store, br broker.Interface, pl planner.Planner, orderBy string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:      st,
		broker:     br,
		plan:       pl,
		orderBy:    orderBy,
		logger:     log.Default(),
		launchedAt: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run registers with the broker and blocks until ctx is cancelled or
// registration fails. The broker delivers every subsequent event to this
// Dispatcher's EventHandler methods.
func (d *Dispatcher) Run(ctx context.Context) error {
	frameworkID, err := d.broker.Register(ctx, d)
	if err != nil {
		return fmt.Errorf("dispatcher: register: %w", err)
	}

	inserted, err := d.store.SetFrameworkID(frameworkID)
	if err != nil {
		return fmt.Errorf("dispatcher: persist framework id: %w", err)
	}
	if inserted {
		d.logf("registered with new framework id %s", frameworkID)
	} else {
		d.logf("reconnected with existing framework id %s", frameworkID)
	}
	d.publish(events.New(events.FrameworkRegistered).WithPayload(frameworkID))

	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()

	<-ctx.Done()
	return d.broker.Stop(context.Background())
}

// OnOffers implements broker.EventHandler: it fetches the current queue,
// asks the Planner for a Plan, and applies it — marking each launched Job
// STARTING before asking the broker to launch it, and compensating back to
// QUEUED if the broker rejects the launch outright (spec §4.D).
func (d *Dispatcher) OnOffers(offers []planner.Offer) {
	d.mu.Lock()
	d.offersServed++
	d.mu.Unlock()

	d.withMetrics(func(c *metrics.Collector) { c.RecordOfferCycle() })

	var total store.Resources
	for _, o := range offers {
		total = total.Add(o.Resources)
	}
	totalCPU, totalMem := total.CPU, total.MemMB
	d.withMetrics(func(c *metrics.Collector) {
		c.SetTotalOffered(float64(total.CPU), float64(total.MemMB), float64(total.GPU), float64(total.Disk))
	})

	// Store.FindFit is the planner's primitive query (spec §4.A/§4.C): the
	// strict prefix of QUEUED jobs whose cumulative cpu/mem fits the total
	// offered. The Planner only has to bin-pack that prefix across the
	// individual offers, never re-derive the cap itself.
	queued, err := d.store.FindFit(d.orderBy, totalCPU, totalMem)
	if err != nil {
		d.logf("OnOffers: fetch queue: %v", err)
		return
	}
	d.withMetrics(func(c *metrics.Collector) {
		if n, err := d.store.CountByState(store.JobQueued); err == nil {
			c.SetQueueLength(n)
		} else {
			d.logf("OnOffers: count queued: %v", err)
		}
	})
	if len(queued) == 0 {
		d.declineAll(offers)
		return
	}

	result := d.plan.Plan(offers, queued)

	d.applyLaunches(result.Launches)

	for _, offerID := range result.Decline {
		if err := d.broker.Decline(context.Background(), offerID); err != nil {
			d.logf("OnOffers: decline %s: %v", offerID, err)
		}
		d.publish(events.New(events.OfferDeclined).WithPayload(offerID))
	}
}

func (d *Dispatcher) declineAll(offers []planner.Offer) {
	for _, o := range offers {
		if err := d.broker.Decline(context.Background(), o.ID); err != nil {
			d.logf("declineAll: decline %s: %v", o.ID, err)
		}
		d.publish(events.New(events.OfferDeclined).WithPayload(o.ID))
	}
}

// applyLaunches marks every planned launch's Job STARTING in one
// transaction (spec §4.D step 3: the whole sweep commits or none of it
// does), then asks the broker to launch each one that made it into the
// batch. A launch whose Job lost the race for QUEUED since the Planner
// read it is dropped and its offer declined rather than launched.
func (d *Dispatcher) applyLaunches(launches []planner.Launch) {
	if len(launches) == 0 {
		return
	}

	starting := make([]store.Job, len(launches))
	for i, l := range launches {
		j := l.Job
		j.State = store.JobStarting
		starting[i] = j
	}
	skipped, err := d.store.UpdateJobs(starting)
	if err != nil {
		d.logf("applyLaunches: mark batch STARTING: %v", err)
		for _, l := range launches {
			if derr := d.broker.Decline(context.Background(), l.OfferID); derr != nil {
				d.logf("applyLaunches: decline %s after batch failure: %v", l.OfferID, derr)
			}
		}
		return
	}
	lost := make(map[int64]bool, len(skipped))
	for _, id := range skipped {
		lost[id] = true
	}

	for _, launch := range launches {
		if lost[launch.Job.ID] {
			if err := d.broker.Decline(context.Background(), launch.OfferID); err != nil {
				d.logf("applyLaunches: decline %s after lost race: %v", launch.OfferID, err)
			}
			continue
		}
		d.applyLaunch(launch)
	}
}

// applyLaunch asks the broker to launch a Job already marked STARTING by
// applyLaunches' batch update. If the broker launch itself fails
// synchronously, applyLaunch compensates by rolling the Job back to
// QUEUED so it's reconsidered next cycle.
func (d *Dispatcher) applyLaunch(launch planner.Launch) {
	taskID, err := d.broker.Launch(context.Background(), launch.OfferID, launch.Job)
	if err != nil {
		d.logf("applyLaunch: broker rejected launch of job %d: %v", launch.Job.ID, err)
		if _, rbErr := d.store.RollbackLaunch(launch.Job.ID); rbErr != nil {
			d.logf("applyLaunch: rollback job %d: %v", launch.Job.ID, rbErr)
		}
		d.publish(events.New(events.LaunchRejected).ForJob(launch.Job.ID).WithError(err))
		return
	}

	if _, err := d.store.SetTaskID(launch.Job.ID, taskID); err != nil {
		d.logf("applyLaunch: record taskId for job %d: %v", launch.Job.ID, err)
	}

	d.mu.Lock()
	d.launchedAt[taskID] = time.Now()
	d.mu.Unlock()

	d.withMetrics(func(c *metrics.Collector) { c.RecordLaunched() })
	d.publish(events.New(events.JobStarting).ForJob(launch.Job.ID).WithTaskID(taskID))
}

// OnStatusUpdate implements broker.EventHandler: it looks up the Job by
// taskId and attempts the reported transition. An update that doesn't
// match a legal edge from the Job's current state is dropped silently —
// duplicate or stale broker callbacks are expected, not exceptional
// (spec §4.B).
func (d *Dispatcher) OnStatusUpdate(taskID string, to store.JobState, finishedAt *string) {
	job, ok, err := d.store.GetJobByTaskID(taskID)
	if err != nil {
		d.logf("OnStatusUpdate: lookup taskId %s: %v", taskID, err)
		return
	}
	if !ok {
		d.logf("OnStatusUpdate: unknown taskId %s (stale callback?)", taskID)
		return
	}
	if !jobstate.Allowed(jobstate.OriginBroker, job.State, to) {
		d.logf("OnStatusUpdate: dropping illegal %s -> %s for job %d", job.State, to, job.ID)
		return
	}

	applied, err := d.store.TransitionJob(job.ID, to, nil, finishedAt)
	if err != nil {
		d.logf("OnStatusUpdate: transition job %d: %v", job.ID, err)
		return
	}
	if !applied {
		d.logf("OnStatusUpdate: job %d state changed concurrently, dropping %s -> %s", job.ID, job.State, to)
		return
	}

	switch to {
	case store.JobStarted:
		d.publish(events.New(events.JobStarted).ForJob(job.ID).WithTaskID(taskID))
	case store.JobFinished:
		d.recordTurnaround(taskID)
		d.withMetrics(func(c *metrics.Collector) { c.RecordFinished() })
		d.publish(events.New(events.JobFinished).ForJob(job.ID).WithTaskID(taskID))
	case store.JobKilled:
		d.recordTurnaround(taskID)
		d.withMetrics(func(c *metrics.Collector) { c.RecordKilled() })
		d.publish(events.New(events.JobKilled).ForJob(job.ID).WithTaskID(taskID))
	case store.JobQueued:
		d.withMetrics(func(c *metrics.Collector) { c.RecordRetried() })
		d.publish(events.New(events.JobRetried).ForJob(job.ID))
	}
}

// recordTurnaround observes the wall-clock time since taskID's launch, if
// this Dispatcher is the one that launched it (a retry re-launches under
// a new taskId, so there's always at most one pending entry per task).
func (d *Dispatcher) recordTurnaround(taskID string) {
	d.mu.Lock()
	launchedAt, ok := d.launchedAt[taskID]
	if ok {
		delete(d.launchedAt, taskID)
	}
	d.mu.Unlock()
	if !ok {
		return
	}
	d.withMetrics(func(c *metrics.Collector) { c.ObserveTurnaround(time.Since(launchedAt).Seconds()) })
}

// OnDisconnected implements broker.EventHandler.
func (d *Dispatcher) OnDisconnected() {
	d.mu.Lock()
	d.connected = false
	d.mu.Unlock()
	d.logf("disconnected from broker")
	d.publish(events.New(events.Disconnected))
}

// OnReregistered implements broker.EventHandler: it verifies the broker's
// framework id still matches what Retz has on record (which
// SetFrameworkID enforces as an InvariantViolation on mismatch), then
// asks the broker to reconcile status for every Job Retz still believes
// is STARTING or STARTED — a reconnect can have dropped status updates
// for those tasks while Retz wasn't listening (spec §4.D, §6).
func (d *Dispatcher) OnReregistered(frameworkID string) {
	if _, err := d.store.SetFrameworkID(frameworkID); err != nil {
		d.logger.Panicf("OnReregistered: %v", err)
	}
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	d.logf("reregistered with framework id %s", frameworkID)
	d.publish(events.New(events.Reregistered))

	running, err := d.store.Running()
	if err != nil {
		d.logf("OnReregistered: fetch running jobs for reconcile: %v", err)
		return
	}
	var taskIDs []string
	for _, j := range running {
		if j.TaskID != nil {
			taskIDs = append(taskIDs, *j.TaskID)
		}
	}
	if len(taskIDs) == 0 {
		return
	}
	if err := d.broker.Reconcile(context.Background(), taskIDs); err != nil {
		d.logf("OnReregistered: reconcile: %v", err)
	}
}

// Connected reports whether the Dispatcher currently believes it has a
// live broker session.
func (d *Dispatcher) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// OffersServed returns the number of OnOffers calls handled so far, used
// by the Status reporter (spec §4.E).
func (d *Dispatcher) OffersServed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offersServed
}

func (d *Dispatcher) logf(format string, args ...any) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}

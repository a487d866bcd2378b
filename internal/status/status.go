// Package status is Retz's Status reporter (spec §4.E): a point-in-time
// snapshot of queue depth, running jobs, resource usage, and offer-cycle
// throughput, served over the operator-facing status endpoint.
package status

import (
	"sync"

	"github.com/retz/retz/internal/dispatcher"
	"github.com/retz/retz/internal/metrics"
	"github.com/retz/retz/internal/planner"
	"github.com/retz/retz/internal/store"
)

// Report is one Status reporter snapshot.
type Report struct {
	Version       string
	Connected     bool
	QueueLength   int
	RunningLength int
	TotalUsed     store.Resources
	NumSlaves     int
	OffersServed  int
	TotalOffered  store.Resources
}

// Reporter computes Reports from a Store and the Dispatcher's connection
// state, tracking the most recent offer cycle's shape separately since
// that information only exists transiently as it passes through the
// Dispatcher.
type Reporter struct {
	store      *store.Store
	dispatcher *dispatcher.Dispatcher
	version    string
	metrics    *metrics.Collector

	mu           sync.Mutex
	numSlaves    int
	totalOffered store.Resources
}

// Option configures a Reporter at construction time.
type Option func(*Reporter)

// WithMetrics attaches a metrics.Collector; every Snapshot also pushes its
// running-length, slave-count, and resource-usage gauges there. Optional.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Reporter) { r.metrics = c }
}

// New builds a Reporter.
func New(st *store.Store, dp *dispatcher.Dispatcher, version string, opts ...Option) *Reporter {
	r := &Reporter{store: st, dispatcher: dp, version: version}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordOfferCycle should be called once per offer cycle (alongside
// Dispatcher.OnOffers) so the next Snapshot reflects what was just
// advertised.
func (r *Reporter) RecordOfferCycle(offers []planner.Offer) {
	slaves := make(map[string]bool, len(offers))
	var total store.Resources
	for _, o := range offers {
		slaves[o.SlaveID] = true
		total = total.Add(o.Resources)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.numSlaves = len(slaves)
	r.totalOffered = total
}

// Snapshot returns the current Report.
func (r *Reporter) Snapshot() (Report, error) {
	queueLength, err := r.store.CountByState(store.JobQueued)
	if err != nil {
		return Report{}, err
	}

	running, err := r.store.Running()
	if err != nil {
		return Report{}, err
	}
	var totalUsed store.Resources
	for _, j := range running {
		totalUsed = totalUsed.Add(j.Resources)
	}

	r.mu.Lock()
	numSlaves := r.numSlaves
	totalOffered := r.totalOffered
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetRunningLength(len(running))
		r.metrics.SetNumSlaves(numSlaves)
		r.metrics.SetTotalUsed(float64(totalUsed.CPU), float64(totalUsed.MemMB), float64(totalUsed.GPU), float64(totalUsed.Disk))
	}

	return Report{
		Version:       r.version,
		Connected:     r.dispatcher.Connected(),
		QueueLength:   queueLength,
		RunningLength: len(running),
		TotalUsed:     totalUsed,
		NumSlaves:     numSlaves,
		OffersServed:  r.dispatcher.OffersServed(),
		TotalOffered:  totalOffered,
	}, nil
}

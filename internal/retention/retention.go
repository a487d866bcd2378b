// Package retention implements Retz's retention GC (spec §4.F): a
// periodic sweep that deletes FINISHED/KILLED jobs older than the
// configured leeway window, so the jobs table doesn't grow unbounded.
package retention

import (
	"context"
	"log"
	"time"

	"github.com/retz/retz/internal/events"
	"github.com/retz/retz/internal/store"
)

// GC periodically removes terminal jobs finished more than Leeway ago.
type GC struct {
	store    *store.Store
	interval time.Duration
	leeway   time.Duration
	logger   *log.Logger
	now      func() time.Time
	events   *events.Bus
}

// Option configures a GC at construction time.
type Option func(*GC)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(g *GC) { g.logger = l }
}

// WithEvents attaches an events.Bus; each completed Sweep publishes a
// RetentionSwept event carrying the deleted count. Optional.
func WithEvents(b *events.Bus) Option {
	return func(g *GC) { g.events = b }
}

// withClock overrides the time source; used by tests to avoid depending
// on wall-clock timing for cutoff computation.
func withClock(now func() time.Time) Option {
	return func(g *GC) { g.now = now }
}

// New builds a GC that sweeps st every interval, deleting terminal jobs
// whose Finished timestamp is older than leeway.
func New(st *store.Store, interval, leeway time.Duration, opts ...Option) *GC {
	g := &GC{
		store:    st,
		interval: interval,
		leeway:   leeway,
		logger:   log.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (g *GC) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.Sweep(); err != nil {
				g.logf("retention sweep failed: %v", err)
			}
		}
	}
}

// Sweep runs one deletion pass immediately. The number of jobs removed is
// logged and, when an event bus is attached, published as a RetentionSwept
// event; only an error is returned.
func (g *GC) Sweep() error {
	cutoff := g.now().Add(-g.leeway).UTC().Format(time.RFC3339)
	n, err := g.store.DeleteOldJobs(cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		g.logf("retention: deleted %d job(s) finished before %s", n, cutoff)
	}
	if g.events != nil {
		g.events.Publish(events.New(events.RetentionSwept).WithPayload(map[string]any{"deleted": n, "cutoff": cutoff}))
	}
	return nil
}

func (g *GC) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}

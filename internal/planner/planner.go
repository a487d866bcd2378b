// Package planner implements Retz's two bin-packing strategies (spec
// §4.C): a pure function from a set of broker Offers and the currently
// QUEUED Jobs to a Plan of what to launch against which offer.
package planner

import "github.com/retz/retz/internal/store"

// Offer is a resource grant advertised by the ResourceBroker for one
// slave/agent in one offer cycle.
type Offer struct {
	ID        string
	SlaveID   string
	Resources store.Resources
}

// Launch pairs a Job with the Offer it will run against.
type Launch struct {
	Job     store.Job
	OfferID string
}

// Plan is the Planner's decision for one offer cycle: which jobs to
// launch against which offers, and which outstanding offers have nothing
// that fits and should be declined.
type Plan struct {
	Launches []Launch
	Decline  []string
}

// Planner maps offers and the queue to a Plan. Implementations must be
// pure: no I/O, no mutation of the inputs, identical output for identical
// input (spec §4.C's "pure function over (offers, queued jobs)").
type Planner interface {
	Plan(offers []Offer, queued []store.Job) Plan
}

// orderBy identifies the ordering a strategy imposes on the queue before
// matching it against offers.
type orderBy string

const (
	orderByFIFO     orderBy = "fifo"
	orderByPriority orderBy = "priority"
)

// strategyPlanner is shared by FIFO and Priority: they differ only in how
// the queue is ordered before the match loop runs.
type strategyPlanner struct {
	order orderBy
}

// FIFO returns the submission-order planner: jobs are matched to offers in
// the order they were queued.
func FIFO() Planner { return strategyPlanner{order: orderByFIFO} }

// Priority returns the priority planner: jobs are matched lowest-priority-
// number-first, ties broken by submission order.
func Priority() Planner { return strategyPlanner{order: orderByPriority} }

func (p strategyPlanner) Plan(offers []Offer, queued []store.Job) Plan {
	ordered := orderQueue(p.order, queued)
	remaining := make([]store.Resources, len(offers))
	for i, o := range offers {
		remaining[i] = o.Resources
	}

	var plan Plan
	matched := make(map[int64]bool, len(ordered))

	// findFit per offer: for each offer in turn, walk the ordered queue and
	// take the strict head-of-line job that fits (the Open Question
	// decision recorded in SPEC_FULL.md — no skipping ahead to a smaller
	// job further back in the queue).
	for oi, off := range offers {
		for _, job := range ordered {
			if matched[job.ID] {
				continue
			}
			if !job.Resources.Fits(remaining[oi]) {
				break
			}
			plan.Launches = append(plan.Launches, Launch{Job: job, OfferID: off.ID})
			remaining[oi] = subtract(remaining[oi], job.Resources)
			matched[job.ID] = true
		}
	}

	for _, off := range offers {
		used := false
		for _, l := range plan.Launches {
			if l.OfferID == off.ID {
				used = true
				break
			}
		}
		if !used {
			plan.Decline = append(plan.Decline, off.ID)
		}
	}

	return plan
}

func orderQueue(order orderBy, queued []store.Job) []store.Job {
	out := make([]store.Job, len(queued))
	copy(out, queued)
	if order != orderByPriority {
		return out // callers already hand jobs in submission (id) order
	}
	// Stable insertion sort by priority ascending, ties keep submission
	// order — queued is small enough per offer cycle that O(n^2) is fine
	// and keeps the tie-break trivially stable.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority < out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func subtract(r, o store.Resources) store.Resources {
	return store.Resources{
		CPU:   r.CPU - o.CPU,
		MemMB: r.MemMB - o.MemMB,
		GPU:   r.GPU - o.GPU,
		Ports: r.Ports - o.Ports,
		Disk:  r.Disk - o.Disk,
	}
}

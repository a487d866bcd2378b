// Package broker is Retz's abstraction over the external resource-offering
// collaborator (spec §4.D): whatever system grants CPU/mem/ports/disk and
// reports task status back. Retz never talks to it directly — every
// component built against Interface, with production wiring supplied by
// whichever concrete implementation the deployment chooses.
package broker

import (
	"context"

	"github.com/retz/retz/internal/planner"
	"github.com/retz/retz/internal/store"
)

// EventHandler receives broker-originated events. The Dispatcher is the
// production implementation; tests may supply their own to assert on
// exactly what the broker delivered.
type EventHandler interface {
	// OnOffers is called once per offer cycle with the offers currently
	// outstanding.
	OnOffers(offers []planner.Offer)
	// OnStatusUpdate reports a taskId's new state, as observed by the
	// broker. to is always a state the broker itself can produce: STARTED,
	// FINISHED, or KILLED. finishedAt is non-nil only for terminal states.
	OnStatusUpdate(taskID string, to store.JobState, finishedAt *string)
	// OnDisconnected fires when the broker connection is lost. Any offers
	// outstanding at that point are implicitly void.
	OnDisconnected()
	// OnReregistered fires when a lost connection is reestablished,
	// carrying the framework id the broker knows Retz by. If it disagrees
	// with the framework id Retz has on record, that's an invariant
	// violation (spec §4.D, §7).
	OnReregistered(frameworkID string)
}

// Interface is the collaborator Retz schedules against. Implementations
// must deliver every event to the EventHandler supplied at Register time;
// Retz's own concurrency model (spec §5) assumes events arrive
// serialized, one at a time.
type Interface interface {
	// Register establishes the session and returns the framework id the
	// broker assigns (or confirms, on reconnect).
	Register(ctx context.Context, handler EventHandler) (frameworkID string, err error)
	// Launch accepts offerID and asks the broker to start job on it,
	// returning the broker-assigned taskId. The caller has already
	// verified job.Resources fits within the offer.
	Launch(ctx context.Context, offerID string, job store.Job) (taskID string, err error)
	// Kill asks the broker to terminate a running task.
	Kill(ctx context.Context, taskID string) error
	// Decline tells the broker an offer will not be used this cycle.
	Decline(ctx context.Context, offerID string) error
	// Reconcile asks the broker to redeliver its authoritative status for
	// each of taskIDs, via the normal OnStatusUpdate callback. Retz calls
	// this after OnReregistered: a reconnect can have silently dropped
	// status updates for tasks still in STARTING/STARTED, and Retz must
	// not trust its own view of those rows until the broker confirms it
	// (spec §4.D, §6).
	Reconcile(ctx context.Context, taskIDs []string) error
	// Stop tears down the session.
	Stop(ctx context.Context) error
}

package broker

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/retz/retz/internal/planner"
	"github.com/retz/retz/internal/store"
)

// Fake is a deterministic, in-process Interface implementation for tests:
// offers and status updates are pushed explicitly by the test rather than
// generated on a timer, so assertions never race a clock.
type Fake struct {
	mu          sync.Mutex
	frameworkID string
	handler     EventHandler
	launched    []Launched
	killed      []string
	declined    []string
	reconciled  []string
	entropy     *ulid.MonotonicEntropy
}

// Launched records one Launch call the test can assert against.
type Launched struct {
	OfferID string
	Job     store.Job
	TaskID  string
}

// NewFake returns a Fake that will report frameworkID on Register.
func NewFake(frameworkID string) *Fake {
	return &Fake{frameworkID: frameworkID, entropy: ulid.Monotonic(ulidEntropySource{}, 0)}
}

func (f *Fake) Register(_ context.Context, handler EventHandler) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return f.frameworkID, nil
}

func (f *Fake) Launch(_ context.Context, offerID string, job store.Job) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	taskID := ulid.MustNew(ulid.Now(), f.entropy).String()
	f.launched = append(f.launched, Launched{OfferID: offerID, Job: job, TaskID: taskID})
	return taskID, nil
}

func (f *Fake) Kill(_ context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, taskID)
	return nil
}

func (f *Fake) Decline(_ context.Context, offerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declined = append(f.declined, offerID)
	return nil
}

// Reconcile records the requested taskIDs; tests assert against them via
// Reconciled rather than the Fake manufacturing status updates on its own,
// since only the test knows what state to report.
func (f *Fake) Reconcile(_ context.Context, taskIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciled = append(f.reconciled, taskIDs...)
	return nil
}

func (f *Fake) Stop(_ context.Context) error { return nil }

// PushOffers delivers offers to the registered handler, as if a real
// broker had advertised them this cycle.
func (f *Fake) PushOffers(offers []planner.Offer) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h.OnOffers(offers)
	}
}

// PushStatusUpdate delivers a status update to the registered handler.
func (f *Fake) PushStatusUpdate(taskID string, to store.JobState, finishedAt *string) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h.OnStatusUpdate(taskID, to, finishedAt)
	}
}

// PushDisconnected delivers a disconnection event.
func (f *Fake) PushDisconnected() {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h.OnDisconnected()
	}
}

// PushReregistered delivers a reregistration event.
func (f *Fake) PushReregistered(frameworkID string) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h.OnReregistered(frameworkID)
	}
}

// Launches returns every Launch call recorded so far.
func (f *Fake) Launches() []Launched {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Launched, len(f.launched))
	copy(out, f.launched)
	return out
}

// Killed returns every taskId passed to Kill so far.
func (f *Fake) Killed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.killed))
	copy(out, f.killed)
	return out
}

// Declined returns every offerId passed to Decline so far.
func (f *Fake) Declined() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.declined))
	copy(out, f.declined)
	return out
}

// Reconciled returns every taskId passed to Reconcile so far.
func (f *Fake) Reconciled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.reconciled))
	copy(out, f.reconciled)
	return out
}

// ulidEntropySource is a fixed, non-cryptographic entropy source: the Fake
// only needs distinct ids, not unpredictable ones.
type ulidEntropySource struct{}

func (ulidEntropySource) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(i)
	}
	return len(p), nil
}

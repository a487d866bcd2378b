package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/retz/retz/internal/planner"
	"github.com/retz/retz/internal/store"
)

type syncHandler struct {
	mu     sync.Mutex
	offers [][]planner.Offer
}

func (h *syncHandler) OnOffers(offers []planner.Offer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offers = append(h.offers, offers)
}

func (h *syncHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.offers)
}

func (h *syncHandler) OnStatusUpdate(string, store.JobState, *string) {}
func (h *syncHandler) OnDisconnected()                                {}
func (h *syncHandler) OnReregistered(string)                          {}

func TestReferenceEmitsOfferCycles(t *testing.T) {
	r := NewReference(20 * time.Millisecond)
	h := &syncHandler{}

	if _, err := r.Register(context.Background(), h); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	defer r.Stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for h.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if h.count() == 0 {
		t.Fatal("expected at least one offer cycle within the deadline")
	}
}

func TestReferenceLaunchEventuallyFinishes(t *testing.T) {
	r := NewReference(time.Hour) // no offer cycles needed for this test
	var mu sync.Mutex
	var updates []store.JobState

	h := &statusCollector{onUpdate: func(state store.JobState) {
		mu.Lock()
		updates = append(updates, state)
		mu.Unlock()
	}}
	if _, err := r.Register(context.Background(), h); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	defer r.Stop(context.Background())

	if _, err := r.Launch(context.Background(), "offer-1", store.Job{ID: 1}); err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(updates)
		mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 2 {
		t.Fatalf("expected STARTED then FINISHED, got %v", updates)
	}
	if updates[0] != store.JobStarted || updates[1] != store.JobFinished {
		t.Errorf("expected [STARTED FINISHED], got %v", updates)
	}
}

type statusCollector struct {
	onUpdate func(store.JobState)
}

func (h *statusCollector) OnOffers([]planner.Offer) {}
func (h *statusCollector) OnStatusUpdate(_ string, to store.JobState, _ *string) {
	h.onUpdate(to)
}
func (h *statusCollector) OnDisconnected()       {}
func (h *statusCollector) OnReregistered(string) {}

package broker

import (
	"context"
	"testing"

	"github.com/retz/retz/internal/planner"
	"github.com/retz/retz/internal/store"
)

type recordingHandler struct {
	offers        [][]planner.Offer
	statusUpdates []statusUpdate
	disconnects   int
	reregistered  []string
}

type statusUpdate struct {
	taskID     string
	to         store.JobState
	finishedAt *string
}

func (h *recordingHandler) OnOffers(offers []planner.Offer) {
	h.offers = append(h.offers, offers)
}

func (h *recordingHandler) OnStatusUpdate(taskID string, to store.JobState, finishedAt *string) {
	h.statusUpdates = append(h.statusUpdates, statusUpdate{taskID: taskID, to: to, finishedAt: finishedAt})
}

func (h *recordingHandler) OnDisconnected() { h.disconnects++ }

func (h *recordingHandler) OnReregistered(frameworkID string) {
	h.reregistered = append(h.reregistered, frameworkID)
}

func TestFakeRegisterReturnsFrameworkID(t *testing.T) {
	f := NewFake("fw-1")
	id, err := f.Register(context.Background(), &recordingHandler{})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if id != "fw-1" {
		t.Errorf("expected fw-1, got %s", id)
	}
}

func TestFakeLaunchRecordsCall(t *testing.T) {
	f := NewFake("fw-1")
	if _, err := f.Register(context.Background(), &recordingHandler{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	j := store.Job{ID: 42, Name: "job"}
	taskID, err := f.Launch(context.Background(), "offer-1", j)
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if taskID == "" {
		t.Error("expected a non-empty taskId")
	}

	launches := f.Launches()
	if len(launches) != 1 {
		t.Fatalf("expected 1 recorded launch, got %d", len(launches))
	}
	if launches[0].OfferID != "offer-1" || launches[0].Job.ID != 42 {
		t.Errorf("unexpected recorded launch: %+v", launches[0])
	}
}

func TestFakePushOffersReachesHandler(t *testing.T) {
	f := NewFake("fw-1")
	h := &recordingHandler{}
	if _, err := f.Register(context.Background(), h); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	offers := []planner.Offer{{ID: "o1", Resources: store.Resources{CPU: 2}}}
	f.PushOffers(offers)

	if len(h.offers) != 1 || len(h.offers[0]) != 1 || h.offers[0][0].ID != "o1" {
		t.Errorf("expected handler to receive the pushed offers, got %+v", h.offers)
	}
}

func TestFakePushStatusUpdateReachesHandler(t *testing.T) {
	f := NewFake("fw-1")
	h := &recordingHandler{}
	if _, err := f.Register(context.Background(), h); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	finishedAt := "2026-07-29T00:00:00Z"
	f.PushStatusUpdate("task-1", store.JobFinished, &finishedAt)

	if len(h.statusUpdates) != 1 {
		t.Fatalf("expected 1 status update, got %d", len(h.statusUpdates))
	}
	got := h.statusUpdates[0]
	if got.taskID != "task-1" || got.to != store.JobFinished || got.finishedAt == nil || *got.finishedAt != finishedAt {
		t.Errorf("unexpected status update: %+v", got)
	}
}

func TestFakePushDisconnectedAndReregistered(t *testing.T) {
	f := NewFake("fw-1")
	h := &recordingHandler{}
	if _, err := f.Register(context.Background(), h); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	f.PushDisconnected()
	f.PushReregistered("fw-1")

	if h.disconnects != 1 {
		t.Errorf("expected 1 disconnect event, got %d", h.disconnects)
	}
	if len(h.reregistered) != 1 || h.reregistered[0] != "fw-1" {
		t.Errorf("expected reregistration with fw-1, got %v", h.reregistered)
	}
}

func TestFakeKillAndDecline(t *testing.T) {
	f := NewFake("fw-1")
	if _, err := f.Register(context.Background(), &recordingHandler{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := f.Kill(context.Background(), "task-1"); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}
	if err := f.Decline(context.Background(), "offer-1"); err != nil {
		t.Fatalf("Decline failed: %v", err)
	}

	if got := f.Killed(); len(got) != 1 || got[0] != "task-1" {
		t.Errorf("expected Killed() to record task-1, got %v", got)
	}
	if got := f.Declined(); len(got) != 1 || got[0] != "offer-1" {
		t.Errorf("expected Declined() to record offer-1, got %v", got)
	}
}

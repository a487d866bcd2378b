package jobstate

import (
	"testing"

	"github.com/retz/retz/internal/store"
)

func TestCanTransitionValid(t *testing.T) {
	for from, targets := range ValidTransitions {
		for _, to := range targets {
			if !CanTransition(from, to) {
				t.Errorf("expected %s -> %s to be valid", from, to)
			}
		}
	}
}

func TestCanTransitionInvalid(t *testing.T) {
	if CanTransition(store.JobQueued, store.JobFinished) {
		t.Error("expected QUEUED -> FINISHED to be invalid (must pass through STARTING)")
	}
	if CanTransition(store.JobQueued, store.JobStarted) {
		t.Error("expected QUEUED -> STARTED to be invalid (must pass through STARTING)")
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []store.JobState{store.JobFinished, store.JobKilled} {
		if !IsTerminal(s) {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []store.JobState{store.JobQueued, store.JobStarting, store.JobStarted} {
		if IsTerminal(s) {
			t.Errorf("expected %s to not be terminal", s)
		}
	}
}

func TestIsActive(t *testing.T) {
	for _, s := range []store.JobState{store.JobStarting, store.JobStarted} {
		if !IsActive(s) {
			t.Errorf("expected %s to be active", s)
		}
	}
	for _, s := range []store.JobState{store.JobQueued, store.JobFinished, store.JobKilled} {
		if IsActive(s) {
			t.Errorf("expected %s to not be active", s)
		}
	}
}

func TestAllowedBrokerMatchesGraph(t *testing.T) {
	for from, targets := range ValidTransitions {
		for _, to := range targets {
			if !Allowed(OriginBroker, from, to) {
				t.Errorf("expected broker-originated %s -> %s to be allowed", from, to)
			}
		}
	}
}

func TestAllowedClientCannotStart(t *testing.T) {
	if Allowed(OriginClient, store.JobQueued, store.JobStarting) {
		t.Error("expected a client-originated QUEUED -> STARTING to be rejected: only the dispatcher drives that edge")
	}
}

func TestAllowedClientCanKill(t *testing.T) {
	if !Allowed(OriginClient, store.JobStarted, store.JobKilled) {
		t.Error("expected a client-originated STARTED -> KILLED (kill) to be allowed")
	}
}

func TestAllowedClientCanRetry(t *testing.T) {
	if !Allowed(OriginClient, store.JobFinished, store.JobQueued) {
		t.Error("expected a client-originated FINISHED -> QUEUED (retry) to be allowed")
	}
}

// Package jobstate is Retz's Job lifecycle state machine (spec §4.B): the
// single source of truth for which transitions are legal, consulted by the
// Dispatcher before it asks the Store to persist a new state.
package jobstate

import "github.com/retz/retz/internal/store"

// ValidTransitions enumerates, for each state, the states a Job in that
// state may legally move to. QUEUED reappears as a target of FINISHED and
// KILLED: that's retry(), the only edge that re-enters the graph after a
// terminal state.
var ValidTransitions = map[store.JobState][]store.JobState{
	store.JobQueued:   {store.JobStarting, store.JobKilled},
	store.JobStarting: {store.JobStarted, store.JobFinished, store.JobKilled},
	store.JobStarted:  {store.JobFinished, store.JobKilled},
	store.JobFinished: {store.JobQueued},
	store.JobKilled:   {store.JobQueued},
}

// CanTransition reports whether moving a Job from -> to is a legal edge in
// the lifecycle graph.
func CanTransition(from, to store.JobState) bool {
	targets, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether state has no outgoing edge except retry().
func IsTerminal(state store.JobState) bool {
	return state == store.JobFinished || state == store.JobKilled
}

// IsActive reports whether a Job in state is occupying broker-granted
// resources (spec §4.C's accounting: STARTING reserves, STARTED holds).
func IsActive(state store.JobState) bool {
	return state == store.JobStarting || state == store.JobStarted
}

// Origin classifies who is allowed to request a transition. Broker
// callbacks (onStatusUpdate) may report any edge the graph allows;
// client-originated mutations (kill, retry) are restricted to a subset
// the REST surface exposes deliberately (spec §4.B, §7).
type Origin int

const (
	// OriginBroker is a transition reported by the ResourceBroker via a
	// status update. An illegal broker-originated transition is expected
	// during races (duplicate or stale callbacks) and must be dropped
	// silently rather than surfaced as an error.
	OriginBroker Origin = iota
	// OriginClient is a transition requested through Retz's own API (kill,
	// retry). An illegal client-originated transition is a user error and
	// must be surfaced.
	OriginClient
)

// ClientTransitions lists the edges a client may request directly. Clients
// never drive a Job into STARTING or STARTED themselves — only the
// Dispatcher does that in response to broker offers — so those edges are
// broker-only even though the graph permits them.
var ClientTransitions = map[store.JobState][]store.JobState{
	store.JobQueued:   {store.JobKilled},
	store.JobStarting: {store.JobKilled},
	store.JobStarted:  {store.JobKilled},
	store.JobFinished: {store.JobQueued},
	store.JobKilled:   {store.JobQueued},
}

// Allowed reports whether a transition is legal for the given origin.
func Allowed(origin Origin, from, to store.JobState) bool {
	if origin == OriginBroker {
		return CanTransition(from, to)
	}
	targets, ok := ClientTransitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// Package events is Retz's structured lifecycle log: the Dispatcher and
// retention GC publish one Event per state change onto a Bus, and any
// number of Handlers (an audit log, a test assertion) subscribe without
// the publisher knowing who's listening.
package events

import (
	"fmt"
	"strings"
	"time"
)

// Event is a single scheduler occurrence.
type Event struct {
	// Time is when the event occurred (stamped by Bus.Publish if zero).
	Time time.Time `json:"time"`

	// Type identifies what happened.
	Type EventType `json:"type"`

	// JobID is the Job this event concerns, nil for scheduler-wide events
	// (framework registration, retention sweeps).
	JobID *int64 `json:"jobId,omitempty"`

	// AppID is the Application this event concerns, if any.
	AppID string `json:"appid,omitempty"`

	// TaskID is the broker-assigned task identifier, if one exists yet.
	TaskID string `json:"taskId,omitempty"`

	// Payload carries event-specific data (e.g. a launch count, a Plan
	// summary). Its shape varies by Type.
	Payload any `json:"payload,omitempty"`

	// Error is set for failure events.
	Error string `json:"error,omitempty"`
}

// EventType identifies an event's category.
type EventType string

// Job lifecycle events, one per internal/jobstate transition the
// Dispatcher actually applies.
const (
	JobQueued   EventType = "job.queued"
	JobStarting EventType = "job.starting"
	JobStarted  EventType = "job.started"
	JobFinished EventType = "job.finished"
	JobKilled   EventType = "job.killed"
	JobRetried  EventType = "job.retried"
)

// Offer-cycle events. Dispatcher.OnOffers publishes OfferDeclined once per
// declined offer and LaunchRejected once per launch the broker refuses;
// nothing in the module publishes OfferCycleStarted.
const (
	OfferCycleStarted EventType = "offer.cycle.started"
	OfferDeclined     EventType = "offer.declined"
	LaunchRejected    EventType = "launch.rejected"
)

// Scheduler-wide events.
const (
	FrameworkRegistered EventType = "framework.registered"
	Disconnected        EventType = "broker.disconnected"
	Reregistered        EventType = "broker.reregistered"
	RetentionSwept      EventType = "retention.swept"
)

// Application/User events.
const (
	ApplicationAdded    EventType = "application.added"
	ApplicationReplaced EventType = "application.replaced"
	ApplicationDeleted  EventType = "application.deleted"
	UserEnabled         EventType = "user.enabled"
	UserDisabled        EventType = "user.disabled"
)

// New builds an Event of the given type. Time is left zero; Bus.Publish
// stamps it so every subscriber sees the same instant.
func New(t EventType) Event {
	return Event{Type: t}
}

// ForJob returns a copy of e scoped to jobID.
func (e Event) ForJob(jobID int64) Event {
	e.JobID = &jobID
	return e
}

// WithApp returns a copy of e carrying appID.
func (e Event) WithApp(appID string) Event {
	e.AppID = appID
	return e
}

// WithTaskID returns a copy of e carrying taskID.
func (e Event) WithTaskID(taskID string) Event {
	e.TaskID = taskID
	return e
}

// WithPayload returns a copy of e carrying payload.
func (e Event) WithPayload(payload any) Event {
	e.Payload = payload
	return e
}

// WithError returns a copy of e carrying err's message, if err is non-nil.
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// IsFailure reports whether e represents a failure.
func (e Event) IsFailure() bool {
	return e.Error != "" || strings.HasSuffix(string(e.Type), ".rejected")
}

// String returns a one-line human-readable rendering of e.
func (e Event) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Type))

	if e.JobID != nil {
		parts = append(parts, fmt.Sprintf("job=%d", *e.JobID))
	}
	if e.AppID != "" {
		parts = append(parts, fmt.Sprintf("app=%s", e.AppID))
	}
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.Error != "" {
		parts = append(parts, fmt.Sprintf("error=%q", e.Error))
	}

	return strings.Join(parts, " ")
}

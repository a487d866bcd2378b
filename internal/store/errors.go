package store

import "fmt"

// StoreError wraps a database failure with the name of the operation that
// failed. Callers should never see a bare *sql.Error; every Store method
// that talks to the database wraps its failure in one of these.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// JobNotFound is returned by TransitionJob, SetTaskID and RollbackLaunch
// when the requested Job id does not exist.
type JobNotFound struct {
	ID int64
}

func (e *JobNotFound) Error() string {
	return fmt.Sprintf("store: job %d not found", e.ID)
}

// UserNotFound is returned by EnableUser when the requested keyId does not
// exist.
type UserNotFound struct {
	KeyID string
}

func (e *UserNotFound) Error() string {
	return fmt.Sprintf("store: user %q not found", e.KeyID)
}

// IllegalTransition describes a client-requested mutation that would move
// a Job's state along an edge not present in the state machine graph. No
// Store method returns it: TransitionJob reports such an edge as ok=false.
type IllegalTransition struct {
	From, To JobState
}

func (e *IllegalTransition) Error() string {
	return fmt.Sprintf("store: illegal transition %s -> %s", e.From, e.To)
}

// ApplicationInUse is returned by DeleteApplication when a non-finished
// Job still references the appid.
type ApplicationInUse struct {
	AppID string
}

func (e *ApplicationInUse) Error() string {
	return fmt.Sprintf("store: application %q still referenced by active jobs", e.AppID)
}

// UnknownApplication is returned by AddJob when the Job names an appid
// with no matching Application row. This is an ordinary caller error
// (the submitter got the appid wrong), not the integrity failure
// InvariantViolation signals.
type UnknownApplication struct {
	AppID string
}

func (e *UnknownApplication) Error() string {
	return fmt.Sprintf("store: no such application %q", e.AppID)
}

// SchemaPartial is a fatal startup error: some but not all of the four
// tables already exist, meaning the database is in an unknown, possibly
// half-migrated state. Retz refuses to guess.
type SchemaPartial struct {
	Present []string
	Missing []string
}

func (e *SchemaPartial) Error() string {
	return fmt.Sprintf("store: partial schema: present=%v missing=%v", e.Present, e.Missing)
}

// IsolationUnsupported is a fatal startup error: the backend does not
// advertise SERIALIZABLE isolation.
type IsolationUnsupported struct {
	Driver string
}

func (e *IsolationUnsupported) Error() string {
	return fmt.Sprintf("store: driver %q does not support SERIALIZABLE isolation", e.Driver)
}

// InvariantViolation signals that a persisted row's indexed columns
// disagree with its JSON blob, or that a reregistered framework id does
// not match the one already on record. Both are integrity failures the
// spec treats as fatal; Retz panics rather than silently trusting either
// view of the data.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("store: invariant violation: %s", e.Reason)
}

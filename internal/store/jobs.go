package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// AddJob inserts j as a new QUEUED job and returns it with ID populated.
// Any State/TaskID/Finished the caller set are ignored: a freshly added Job
// always starts QUEUED with retry count 0 (spec §4.B's single entry point
// into the state machine).
func (s *Store) AddJob(j Job) (Job, error) {
	j.State = JobQueued
	j.TaskID = nil
	j.Finished = nil
	j.Retry = 0

	err := s.withTx("AddJob", func(tx *sql.Tx) error {
		var appExists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM applications WHERE appid = ?`, j.AppID).Scan(&appExists); err != nil {
			return err
		}
		if appExists == 0 {
			return &UnknownApplication{AppID: j.AppID}
		}

		blob, err := json.Marshal(&j)
		if err != nil {
			return err
		}
		res, err := tx.Exec(
			`INSERT INTO jobs (name, appid, cmd, priority, taskid, state, finished, json) VALUES (?, ?, ?, ?, NULL, ?, NULL, ?)`,
			j.Name, j.AppID, j.Cmd, j.Priority, string(j.State), string(blob),
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		j.ID = id

		// The id wasn't known until insert, so the json column's embedded id
		// lagged by one write; fix it up so the two views agree (spec §6).
		blob, err = json.Marshal(&j)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE jobs SET json = ? WHERE id = ?`, string(blob), id)
		return err
	})
	if _, ok := err.(*UnknownApplication); ok {
		return Job{}, err
	}
	if err != nil {
		return Job{}, wrapErr("AddJob", err)
	}
	return j, nil
}

func scanJobRow(raw string) (Job, error) {
	var j Job
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return Job{}, err
	}
	return j, nil
}

// GetJob looks up a Job by id.
func (s *Store) GetJob(id int64) (Job, bool, error) {
	var raw string
	err := s.conn.QueryRow(`SELECT json FROM jobs WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, wrapErr("GetJob", err)
	}
	j, err := scanJobRow(raw)
	if err != nil {
		return Job{}, false, wrapErr("GetJob", err)
	}
	return j, true, nil
}

// GetJobByTaskID looks up a Job by its broker-assigned taskId.
func (s *Store) GetJobByTaskID(taskID string) (Job, bool, error) {
	var raw string
	err := s.conn.QueryRow(`SELECT json FROM jobs WHERE taskid = ?`, taskID).Scan(&raw)
	if err == sql.ErrNoRows {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, wrapErr("GetJobByTaskID", err)
	}
	j, err := scanJobRow(raw)
	if err != nil {
		return Job{}, false, wrapErr("GetJobByTaskID", err)
	}
	return j, true, nil
}

// JobsByApp returns every Job belonging to appID, oldest first.
func (s *Store) JobsByApp(appID string) ([]Job, error) {
	return s.queryJobs(`SELECT json FROM jobs WHERE appid = ? ORDER BY id`, appID)
}

// GetAppJob looks up a Job by id together with the Application that owns
// it (spec §4.A's getAppJob), the joined view the status/describe surface
// needs without a second round trip. Returns ok=false if the Job itself
// doesn't exist; a Job whose Application has since been deleted still
// can't happen (DeleteApplication refuses while a Job references it), so
// that case surfaces as an error rather than a silent zero value.
func (s *Store) GetAppJob(id int64) (Application, Job, bool, error) {
	job, ok, err := s.GetJob(id)
	if err != nil || !ok {
		return Application{}, Job{}, ok, err
	}
	app, ok, err := s.GetApplication(job.AppID)
	if err != nil {
		return Application{}, Job{}, false, err
	}
	if !ok {
		return Application{}, Job{}, false, &InvariantViolation{Reason: fmt.Sprintf("job %d references application %q that no longer exists", job.ID, job.AppID)}
	}
	return app, job, true, nil
}

// ListJobs returns Jobs matching the given filters, most recent first
// (spec §4.A's listJobs(owner, state, tag?, limit)). owner and state are
// applied in SQL; owner == "" or state == "" skips that filter. tag is
// applied after hydration since tags live inside the JSON blob, not an
// indexed column. limit <= 0 means unbounded.
func (s *Store) ListJobs(owner string, state JobState, tag string, limit int) ([]Job, error) {
	query := `SELECT jobs.json FROM jobs`
	var conditions []string
	var args []any

	if owner != "" {
		query += ` JOIN applications ON applications.appid = jobs.appid`
		conditions = append(conditions, `applications.owner = ?`)
		args = append(args, owner)
	}
	if state != "" {
		conditions = append(conditions, `jobs.state = ?`)
		args = append(args, string(state))
	}
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, ` AND `)
	}
	query += ` ORDER BY jobs.id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	jobs, err := s.queryJobs(query, args...)
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return jobs, nil
	}
	filtered := jobs[:0]
	for _, j := range jobs {
		if j.HasTag(tag) {
			filtered = append(filtered, j)
		}
	}
	return filtered, nil
}

// orderByColumn maps a Planner's ordering strategy to a SQL ORDER BY
// fragment. "priority" implements the Priority planner (lowest number =
// highest priority, ties broken by submission order); "fifo" implements the
// FIFO planner.
func orderByColumn(orderBy string) string {
	if orderBy == "priority" {
		return "priority ASC, id ASC"
	}
	return "id ASC"
}

// queuedOrderedBy returns QUEUED jobs ordered per orderBy ("fifo" or
// "priority"), unbounded. This is FindFit's internal primitive: it needs
// the whole queue, in Planner order, to find the prefix that fits.
func (s *Store) queuedOrderedBy(orderBy string) ([]Job, error) {
	return s.queryJobs(`SELECT json FROM jobs WHERE state = ? ORDER BY `+orderByColumn(orderBy), string(JobQueued))
}

// Queued returns up to limit QUEUED jobs ordered by id ascending (spec
// §4.A's queued(limit)). limit <= 0, including 0, returns an empty slice
// rather than the whole queue — the boundary spec §8 tests directly.
func (s *Store) Queued(limit int) ([]Job, error) {
	if limit <= 0 {
		return []Job{}, nil
	}
	return s.queryJobs(`SELECT json FROM jobs WHERE state = ? ORDER BY id ASC LIMIT ?`, string(JobQueued), limit)
}

// Running returns jobs in STARTING or STARTED state.
func (s *Store) Running() ([]Job, error) {
	return s.queryJobs(`SELECT json FROM jobs WHERE state IN (?, ?) ORDER BY id`, string(JobStarting), string(JobStarted))
}

// FinishedJobs returns FINISHED or KILLED jobs whose Finished timestamp
// falls in the half-open interval [startTs, endTs) (spec §4.A's
// finishedJobs(startTs, endTs)), oldest first. Timestamps are ISO-8601
// strings, which sort lexicographically in chronological order.
func (s *Store) FinishedJobs(startTs, endTs string) ([]Job, error) {
	return s.queryJobs(
		`SELECT json FROM jobs WHERE state IN (?, ?) AND finished >= ? AND finished < ? ORDER BY finished ASC`,
		string(JobFinished), string(JobKilled), startTs, endTs,
	)
}

func (s *Store) queryJobs(query string, args ...any) ([]Job, error) {
	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, wrapErr("queryJobs", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, wrapErr("queryJobs", err)
		}
		j, err := scanJobRow(raw)
		if err != nil {
			return nil, wrapErr("queryJobs", err)
		}
		out = append(out, j)
	}
	return out, wrapErr("queryJobs", rows.Err())
}

// FindFit returns the longest prefix of QUEUED jobs, in orderBy order,
// whose cumulative cpu and memMB both remain within the given caps (spec
// §4.A, normatively resolved in §9: a strict prefix, no skipping ahead to
// a smaller job further down the queue). Iteration halts at the first job
// that would push either running total over its cap; everything after it
// is excluded even if it would individually fit.
func (s *Store) FindFit(orderBy string, cpu, memMB int) ([]Job, error) {
	queued, err := s.queuedOrderedBy(orderBy)
	if err != nil {
		return nil, err
	}

	var fit []Job
	var usedCPU, usedMem int
	for _, j := range queued {
		if usedCPU+j.Resources.CPU > cpu || usedMem+j.Resources.MemMB > memMB {
			break
		}
		usedCPU += j.Resources.CPU
		usedMem += j.Resources.MemMB
		fit = append(fit, j)
	}
	return fit, nil
}

// legalFrom lists, for each target state, the set of states a transition
// into it may originate from. Mirrors the graph internal/jobstate
// enforces at the decision layer; the store re-checks it at the write
// layer so a stale or duplicate broker callback can never corrupt state.
var legalFrom = map[JobState][]JobState{
	JobStarting: {JobQueued},
	JobStarted:  {JobStarting},
	JobFinished: {JobStarting, JobStarted},
	JobKilled:   {JobQueued, JobStarting, JobStarted},
	JobQueued:   {JobFinished, JobKilled}, // retry()
}

func isLegalFrom(from, to JobState) bool {
	for _, s := range legalFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

// TransitionJob moves job id from its current state to "to", atomically
// verifying the current state is a legal predecessor. If the row's current
// state is not among to's legal predecessors, TransitionJob returns
// (false, nil) rather than an error: broker callbacks racing a terminal
// state are expected and must be dropped silently (spec §4.B). Callers
// that need an error surfaced for illegal client-requested mutations
// should check the returned ok themselves and raise IllegalTransition.
func (s *Store) TransitionJob(id int64, to JobState, taskID *string, finishedAt *string) (bool, error) {
	var ok bool
	err := s.withTx("TransitionJob", func(tx *sql.Tx) error {
		var raw string
		if err := tx.QueryRow(`SELECT json FROM jobs WHERE id = ?`, id).Scan(&raw); err != nil {
			if err == sql.ErrNoRows {
				return &JobNotFound{ID: id}
			}
			return err
		}
		j, err := scanJobRow(raw)
		if err != nil {
			return err
		}

		if !isLegalFrom(j.State, to) {
			ok = false
			return nil
		}

		j.State = to
		if taskID != nil {
			j.TaskID = taskID
		}
		if finishedAt != nil {
			j.Finished = finishedAt
		}
		if to == JobQueued {
			j.Retry++
			j.TaskID = nil
			j.Finished = nil
		}

		blob, err := json.Marshal(&j)
		if err != nil {
			return err
		}
		var taskIDCol any
		if j.TaskID != nil {
			taskIDCol = *j.TaskID
		}
		var finishedCol any
		if j.Finished != nil {
			finishedCol = *j.Finished
		}
		_, err = tx.Exec(
			`UPDATE jobs SET state = ?, taskid = ?, finished = ?, json = ? WHERE id = ?`,
			string(to), taskIDCol, finishedCol, string(blob), id,
		)
		if err != nil {
			return err
		}
		ok = true
		return nil
	})
	if _, isNotFound := err.(*JobNotFound); isNotFound {
		return false, err
	}
	if err != nil {
		return false, wrapErr("TransitionJob", err)
	}
	return ok, nil
}

// UpdateJobs writes the target state carried by each Job in jobs within a
// single transaction (spec §4.A's updateJobs, spec §4.D step 3: a launch
// sweep marks every planned Job STARTING atomically, not one commit per
// job). Each row is re-checked against legalFrom exactly as TransitionJob
// does for a single job; an id whose on-disk state is no longer a legal
// predecessor is skipped rather than failing the whole batch, since a
// race against a broker callback on one job shouldn't roll back the rest
// of the plan. Returns the ids that were skipped.
func (s *Store) UpdateJobs(jobs []Job) ([]int64, error) {
	var skipped []int64
	err := s.withTx("UpdateJobs", func(tx *sql.Tx) error {
		for _, want := range jobs {
			var raw string
			if err := tx.QueryRow(`SELECT json FROM jobs WHERE id = ?`, want.ID).Scan(&raw); err != nil {
				if err == sql.ErrNoRows {
					skipped = append(skipped, want.ID)
					continue
				}
				return err
			}
			cur, err := scanJobRow(raw)
			if err != nil {
				return err
			}
			if !isLegalFrom(cur.State, want.State) {
				skipped = append(skipped, want.ID)
				continue
			}

			j := want
			blob, err := json.Marshal(&j)
			if err != nil {
				return err
			}
			var taskIDCol any
			if j.TaskID != nil {
				taskIDCol = *j.TaskID
			}
			var finishedCol any
			if j.Finished != nil {
				finishedCol = *j.Finished
			}
			if _, err := tx.Exec(
				`UPDATE jobs SET state = ?, taskid = ?, finished = ?, json = ? WHERE id = ?`,
				string(j.State), taskIDCol, finishedCol, string(blob), j.ID,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("UpdateJobs", err)
	}
	return skipped, nil
}

// RetryJobs re-enters every job in ids from a terminal state back to
// QUEUED, in a single transaction (spec §4.A's retryJobs). Mirrors the
// retry() bookkeeping TransitionJob applies for one job — Retry
// incremented, TaskID and Finished cleared. An id that's no longer
// terminal is skipped rather than failing the whole batch. Returns the
// ids that were skipped.
func (s *Store) RetryJobs(ids []int64) ([]int64, error) {
	var skipped []int64
	err := s.withTx("RetryJobs", func(tx *sql.Tx) error {
		for _, id := range ids {
			var raw string
			if err := tx.QueryRow(`SELECT json FROM jobs WHERE id = ?`, id).Scan(&raw); err != nil {
				if err == sql.ErrNoRows {
					skipped = append(skipped, id)
					continue
				}
				return err
			}
			j, err := scanJobRow(raw)
			if err != nil {
				return err
			}
			if !isLegalFrom(j.State, JobQueued) {
				skipped = append(skipped, id)
				continue
			}

			j.State = JobQueued
			j.Retry++
			j.TaskID = nil
			j.Finished = nil
			blob, err := json.Marshal(&j)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(
				`UPDATE jobs SET state = ?, taskid = NULL, finished = NULL, json = ? WHERE id = ?`,
				string(JobQueued), string(blob), id,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("RetryJobs", err)
	}
	return skipped, nil
}

// SetTaskID records the broker-assigned taskId for a Job already in the
// STARTING state. It does not change state — TransitionJob owns the state
// graph; this only fills in the id the broker handed back after
// accepting the launch (spec §4.D: state first, then taskId once known).
func (s *Store) SetTaskID(id int64, taskID string) (bool, error) {
	var ok bool
	err := s.withTx("SetTaskID", func(tx *sql.Tx) error {
		var raw string
		if err := tx.QueryRow(`SELECT json FROM jobs WHERE id = ?`, id).Scan(&raw); err != nil {
			if err == sql.ErrNoRows {
				return &JobNotFound{ID: id}
			}
			return err
		}
		j, err := scanJobRow(raw)
		if err != nil {
			return err
		}
		if j.State != JobStarting {
			ok = false
			return nil
		}
		j.TaskID = &taskID
		blob, err := json.Marshal(&j)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE jobs SET taskid = ?, json = ? WHERE id = ?`, taskID, string(blob), id)
		if err != nil {
			return err
		}
		ok = true
		return nil
	})
	if _, isNotFound := err.(*JobNotFound); isNotFound {
		return false, err
	}
	if err != nil {
		return false, wrapErr("SetTaskID", err)
	}
	return ok, nil
}

// RollbackLaunch reverts a Job from STARTING back to QUEUED when the
// Dispatcher marked it STARTING optimistically but the broker then
// rejected the launch itself (spec §4.D's compensating-rollback
// discipline). Unlike retry() this does not increment Retry or touch
// Finished — from the Job's perspective it never left the queue.
func (s *Store) RollbackLaunch(id int64) (bool, error) {
	var ok bool
	err := s.withTx("RollbackLaunch", func(tx *sql.Tx) error {
		var raw string
		if err := tx.QueryRow(`SELECT json FROM jobs WHERE id = ?`, id).Scan(&raw); err != nil {
			if err == sql.ErrNoRows {
				return &JobNotFound{ID: id}
			}
			return err
		}
		j, err := scanJobRow(raw)
		if err != nil {
			return err
		}
		if j.State != JobStarting {
			ok = false
			return nil
		}

		j.State = JobQueued
		j.TaskID = nil

		blob, err := json.Marshal(&j)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE jobs SET state = ?, taskid = NULL, json = ? WHERE id = ?`, string(JobQueued), string(blob), id)
		if err != nil {
			return err
		}
		ok = true
		return nil
	})
	if _, isNotFound := err.(*JobNotFound); isNotFound {
		return false, err
	}
	if err != nil {
		return false, wrapErr("RollbackLaunch", err)
	}
	return ok, nil
}

// CountByState returns the number of jobs currently in state.
func (s *Store) CountByState(state JobState) (int, error) {
	var n int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM jobs WHERE state = ?`, string(state)).Scan(&n)
	return n, wrapErr("CountByState", err)
}

// LatestJobID returns the highest assigned job id, or 0 if no jobs exist.
func (s *Store) LatestJobID() (int64, error) {
	var id sql.NullInt64
	err := s.conn.QueryRow(`SELECT MAX(id) FROM jobs`).Scan(&id)
	if err != nil {
		return 0, wrapErr("LatestJobID", err)
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}

// DeleteOldJobs removes FINISHED/KILLED jobs whose Finished timestamp is
// lexicographically less than cutoff (ISO-8601 strings sort chronologically)
// and returns the count removed. This backs the retention GC's leeway
// window (spec §4.F): cutoff is computed by the caller as now minus the
// configured leeway.
func (s *Store) DeleteOldJobs(cutoff string) (int64, error) {
	res, err := s.conn.Exec(
		`DELETE FROM jobs WHERE state IN (?, ?) AND finished IS NOT NULL AND finished < ?`,
		string(JobFinished), string(JobKilled), cutoff,
	)
	if err != nil {
		return 0, wrapErr("DeleteOldJobs", err)
	}
	n, err := res.RowsAffected()
	return n, wrapErr("DeleteOldJobs", err)
}

package store

import (
	"database/sql"
	"encoding/json"
)

// AllApplications returns every Application row, optionally restricted to
// one owner (spec §4.A's getAllApplications(owner?)). owner == "" returns
// every Application regardless of owner.
func (s *Store) AllApplications(owner string) ([]Application, error) {
	query := `SELECT json FROM applications`
	var args []any
	if owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY appid`

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, wrapErr("AllApplications", err)
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, wrapErr("AllApplications", err)
		}
		var a Application
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, wrapErr("AllApplications", err)
		}
		out = append(out, a)
	}
	return out, wrapErr("AllApplications", rows.Err())
}

// AddApplication inserts or replaces an Application row keyed by a.AppID.
// Per spec §3/§4.A: it returns (false, nil) — not an error — if a.Owner
// doesn't refer to an existing, enabled User; a resubmission with an
// appid that already exists atomically replaces the prior row (delete +
// insert in one transaction), making AddApplication idempotent on appid.
func (s *Store) AddApplication(a Application) (bool, error) {
	var added bool
	err := s.withTx("AddApplication", func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRow(`SELECT json FROM users WHERE key_id = ?`, a.Owner).Scan(&raw)
		if err == sql.ErrNoRows {
			added = false
			return nil
		}
		if err != nil {
			return err
		}
		var owner User
		if err := json.Unmarshal([]byte(raw), &owner); err != nil {
			return err
		}
		if !owner.Enabled {
			added = false
			return nil
		}

		if _, err := tx.Exec(`DELETE FROM applications WHERE appid = ?`, a.AppID); err != nil {
			return err
		}
		blob, err := json.Marshal(&a)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO applications (appid, owner, json) VALUES (?, ?, ?)`,
			a.AppID, a.Owner, string(blob),
		); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, wrapErr("AddApplication", err)
	}
	return added, nil
}

// GetApplication looks up an Application by appid. Returns
// (Application{}, false, nil) if absent.
func (s *Store) GetApplication(appID string) (Application, bool, error) {
	var raw string
	err := s.conn.QueryRow(`SELECT json FROM applications WHERE appid = ?`, appID).Scan(&raw)
	if err == sql.ErrNoRows {
		return Application{}, false, nil
	}
	if err != nil {
		return Application{}, false, wrapErr("GetApplication", err)
	}
	var a Application
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Application{}, false, wrapErr("GetApplication", err)
	}
	return a, true, nil
}

// DeleteApplication removes an Application, refusing (ApplicationInUse) if
// any Job still referencing it has not reached a terminal state. This is
// the Open Question #1 decision recorded in SPEC_FULL.md: "safe delete"
// means reject, not cascade.
func (s *Store) DeleteApplication(appID string) error {
	err := s.withTx("DeleteApplication", func(tx *sql.Tx) error {
		var active int
		err := tx.QueryRow(
			`SELECT COUNT(*) FROM jobs WHERE appid = ? AND state NOT IN (?, ?)`,
			appID, string(JobFinished), string(JobKilled),
		).Scan(&active)
		if err != nil {
			return err
		}
		if active > 0 {
			return &ApplicationInUse{AppID: appID}
		}

		res, err := tx.Exec(`DELETE FROM applications WHERE appid = ?`, appID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if _, ok := err.(*ApplicationInUse); ok {
		return err
	}
	if err == sql.ErrNoRows {
		return err
	}
	return wrapErr("DeleteApplication", err)
}

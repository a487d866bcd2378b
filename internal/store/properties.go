package store

import "database/sql"

// frameworkIDKey is the properties row holding the broker-assigned
// framework id (spec §4.D): Retz registers once, persists the id it's
// given, and must reuse it on every reconnect rather than re-registering.
const frameworkIDKey = "frameworkId"

// SetFrameworkID stores id the first time Retz registers with the broker.
// If a framework id is already on record, the stored value is left
// untouched: SetFrameworkID reports inserted=false when id matches it, and
// returns *InvariantViolation when id differs from it (the Open Question
// decision recorded in SPEC_FULL.md).
func (s *Store) SetFrameworkID(id string) (inserted bool, err error) {
	err = s.withTx("SetFrameworkID", func(tx *sql.Tx) error {
		var existing string
		scanErr := tx.QueryRow(`SELECT value FROM properties WHERE key = ?`, frameworkIDKey).Scan(&existing)
		if scanErr == nil {
			inserted = false
			if existing != id {
				return &InvariantViolation{Reason: "broker framework id " + id + " disagrees with stored " + existing}
			}
			return nil
		}
		if scanErr != sql.ErrNoRows {
			return scanErr
		}
		if _, err := tx.Exec(`INSERT INTO properties (key, value) VALUES (?, ?)`, frameworkIDKey, id); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if _, ok := err.(*InvariantViolation); ok {
		return false, err
	}
	if err != nil {
		return false, wrapErr("SetFrameworkID", err)
	}
	return inserted, nil
}

// GetFrameworkID returns the stored framework id, if any.
func (s *Store) GetFrameworkID() (string, bool, error) {
	var id string
	err := s.conn.QueryRow(`SELECT value FROM properties WHERE key = ?`, frameworkIDKey).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr("GetFrameworkID", err)
	}
	return id, true, nil
}

// DeleteAllProperties clears the properties table, including any recorded
// framework registration.
func (s *Store) DeleteAllProperties() error {
	_, err := s.conn.Exec(`DELETE FROM properties`)
	return wrapErr("DeleteAllProperties", err)
}

package store

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// hex32 returns a 32-character hex string, the shape spec §4.A requires
// for generated keyId/secret values. A v4 UUID's canonical form is 36
// characters including 4 dashes; stripping them leaves exactly 32 hex
// digits.
func hex32() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// AllUsers returns every User row.
func (s *Store) AllUsers() ([]User, error) {
	rows, err := s.conn.Query(`SELECT json FROM users ORDER BY key_id`)
	if err != nil {
		return nil, wrapErr("AllUsers", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, wrapErr("AllUsers", err)
		}
		var u User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, wrapErr("AllUsers", err)
		}
		out = append(out, u)
	}
	return out, wrapErr("AllUsers", rows.Err())
}

// AddUser inserts a User row, keyed by u.KeyID.
func (s *Store) AddUser(u User) error {
	return s.insertUser(u)
}

// CreateUser generates a fresh 32-hex keyId and secret, persists a new
// enabled User carrying info, and returns it.
func (s *Store) CreateUser(info string) (User, error) {
	u := User{
		KeyID:   hex32(),
		Secret:  hex32(),
		Enabled: true,
		Info:    info,
	}
	if err := s.insertUser(u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) insertUser(u User) error {
	blob, err := json.Marshal(&u)
	if err != nil {
		return wrapErr("CreateUser", err)
	}
	_, err = s.conn.Exec(
		`INSERT INTO users (key_id, secret, enabled, json) VALUES (?, ?, ?, ?)`,
		u.KeyID, u.Secret, u.Enabled, string(blob),
	)
	return wrapErr("CreateUser", err)
}

// GetUser looks up a User by keyId. Returns (User{}, false, nil) if absent.
func (s *Store) GetUser(keyID string) (User, bool, error) {
	var raw string
	err := s.conn.QueryRow(`SELECT json FROM users WHERE key_id = ?`, keyID).Scan(&raw)
	if err == sql.ErrNoRows {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, wrapErr("GetUser", err)
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return User{}, false, wrapErr("GetUser", err)
	}
	return u, true, nil
}

// EnableUser flips the enabled flag for keyId, updating both the indexed
// column and the JSON blob inside one transaction so the two views never
// drift (spec §9's "centralize the write path").
func (s *Store) EnableUser(keyID string, enabled bool) error {
	err := s.withTx("EnableUser", func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRow(`SELECT json FROM users WHERE key_id = ?`, keyID).Scan(&raw)
		if err == sql.ErrNoRows {
			return &UserNotFound{KeyID: keyID}
		}
		if err != nil {
			return err
		}
		var u User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return err
		}
		u.Enabled = enabled
		blob, err := json.Marshal(&u)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE users SET enabled = ?, json = ? WHERE key_id = ?`, enabled, string(blob), keyID)
		return err
	})
	if _, ok := err.(*UserNotFound); ok {
		return err
	}
	return wrapErr("EnableUser", err)
}

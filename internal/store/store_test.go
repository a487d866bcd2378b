package store

import "testing"

func TestOpen(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Stop()
}

func TestOpenWALMode(t *testing.T) {
	tmpDB := t.TempDir() + "/test.db"
	s, err := Open(tmpDB)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Stop()

	var mode string
	if err := s.conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("expected WAL mode, got %s", mode)
	}
}

func TestOpenForeignKeys(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Stop()

	var fk int
	if err := s.conn.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign keys enabled, got %d", fk)
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Stop()

	for _, table := range tableNames {
		var name string
		err := s.conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
		}
	}
}

func TestOpenReopenIsNoop(t *testing.T) {
	tmpDB := t.TempDir() + "/test.db"
	s1, err := Open(tmpDB)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := s1.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	s2, err := Open(tmpDB)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Stop()
}

func TestOpenPartialSchemaRejected(t *testing.T) {
	tmpDB := t.TempDir() + "/partial.db"
	s, err := Open(tmpDB)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.conn.Exec(`DROP TABLE properties`); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	_, err = Open(tmpDB)
	if err == nil {
		t.Fatal("expected SchemaPartial error reopening a partially-migrated database")
	}
	if _, ok := err.(*SchemaPartial); !ok {
		t.Errorf("expected *SchemaPartial, got %T: %v", err, err)
	}
}

func TestStop(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop returned error: %v", err)
	}
}

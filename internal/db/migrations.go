package db

import (
	"database/sql"
	"fmt"
	"strconv"
)

// schemaVersion returns the version recorded in the database, zero when the
// database predates the bookkeeping table.
func (db *DB) schemaVersion() (int, error) {
	var value string
	err := db.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		// Table might not exist yet.
		return 0, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", value, err)
	}
	return v, nil
}

func (db *DB) setSchemaVersion(version int) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)",
		strconv.Itoa(version),
	)
	return err
}

// runMigrations applies the base schema and any version steps. Each step
// must be idempotent; the recorded version only advances after its step
// completes.
func (db *DB) runMigrations() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("apply base schema: %w", err)
	}

	current, err := db.schemaVersion()
	if err != nil {
		return err
	}
	for v := current + 1; v <= SchemaVersion; v++ {
		if err := db.migrateTo(v); err != nil {
			return fmt.Errorf("migrate to version %d: %w", v, err)
		}
		if err := db.setSchemaVersion(v); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) migrateTo(version int) error {
	switch version {
	case 1:
		// Base schema; nothing beyond the CREATE statements.
		return nil
	default:
		return fmt.Errorf("unknown schema version %d", version)
	}
}

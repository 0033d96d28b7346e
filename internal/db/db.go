// Package db stores ingested datasets in a local sqlite database and serves
// the aggregate queries behind the dashboard's panels. All query methods
// accept a context so an in-flight query is abandoned the moment its fetch
// generation is superseded.
package db

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	dbFile   = "vantage.db"
	idPrefix = "ds-"
)

// timeLayout is how timestamps are stored; sqlite's date functions parse it
// natively.
const timeLayout = "2006-01-02 15:04:05"

// DB wraps the database connection.
type DB struct {
	conn *sql.DB
	dir  string
}

// Open opens an existing database and runs any pending migrations.
func Open(dir string) (*DB, error) {
	dbPath := filepath.Join(dir, dbFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: run 'vantage ingest' first")
	}
	return open(dbPath, dir)
}

// Initialize creates the database if needed and runs migrations.
func Initialize(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(filepath.Join(dir, dbFile), dir)
}

func open(dbPath, dir string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets panel reads proceed while an ingest writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	db := &DB{conn: conn, dir: dir}
	if err := db.runMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Dir returns the directory the database lives in.
func (db *DB) Dir() string {
	return db.dir
}

// newID returns a random dataset ID like ds-1a2b3c4d5e6f.
func newID() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return idPrefix + hex.EncodeToString(buf), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

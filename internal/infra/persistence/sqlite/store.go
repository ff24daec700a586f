// Package sqlite persists catalog records in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"somacore/internal/catalog/core"
	"somacore/internal/errors"
	"somacore/internal/infra/persistence/sqlstore"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var dialect = sqlstore.Dialect{
	Driver: core.DriverSQLite,
	CreateTable: `CREATE TABLE IF NOT EXISTS objects (
		uri TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`,
	Insert:          `INSERT INTO objects(uri, payload) VALUES(?, ?) ON CONFLICT(uri) DO NOTHING`,
	Select:          `SELECT payload FROM objects WHERE uri = ?`,
	SelectForUpdate: `SELECT payload FROM objects WHERE uri = ?`,
	Update:          `UPDATE objects SET payload = ?2 WHERE uri = ?1`,
}

// Store is a SQLite-backed catalog.
type Store struct {
	*sqlstore.Store
	path string
}

// New opens (creating if needed) the SQLite catalog at path.
func New(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "somacore.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, errors.Wrap(err, "create catalog directory")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// One connection keeps ":memory:" databases shared and sidesteps
	// SQLITE_BUSY between pooled writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "configure sqlite")
	}
	inner, err := sqlstore.New(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

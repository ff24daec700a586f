// Package postgres persists catalog records in a Postgres JSONB table.
package postgres

import (
	"context"
	"database/sql"
	"sync"

	"somacore/internal/catalog/core"
	"somacore/internal/errors"
	"somacore/internal/infra/persistence/sqlstore"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/somacore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var dialect = sqlstore.Dialect{
	Driver: core.DriverPostgres,
	CreateTable: `CREATE TABLE IF NOT EXISTS objects (
		uri TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`,
	Insert:          `INSERT INTO objects(uri, payload) VALUES($1, $2) ON CONFLICT(uri) DO NOTHING`,
	Select:          `SELECT payload FROM objects WHERE uri = $1`,
	SelectForUpdate: `SELECT payload FROM objects WHERE uri = $1 FOR UPDATE`,
	Update:          `UPDATE objects SET payload = $2 WHERE uri = $1`,
}

// Store is a Postgres-backed catalog.
type Store struct {
	*sqlstore.Store
}

// New opens a Postgres catalog using dsn (falls back to defaultDSN).
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	inner, err := sqlstore.New(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner}, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

// Package sqlstore implements the catalog over database/sql. Each record is
// a JSON payload keyed by URI in a single objects table; the sqlite and
// postgres packages supply the dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"somacore/internal/catalog/core"
	"somacore/internal/errors"
)

// Dialect holds the driver-specific statements. Every statement takes the
// URI as its first argument and, where present, the payload as its second.
type Dialect struct {
	Driver          core.Driver
	CreateTable     string
	Insert          string // must affect zero rows on URI conflict
	Select          string
	SelectForUpdate string
	Update          string
}

// Store is a Catalog backed by a *sql.DB.
type Store struct {
	db  *sql.DB
	d   Dialect
	mu  sync.Mutex
	now func() time.Time
}

// New ensures the objects table exists and returns a Store using db.
func New(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	if _, err := db.ExecContext(ctx, d.CreateTable); err != nil {
		return nil, errors.Wrap(err, "ensure objects table")
	}
	return &Store{db: db, d: d, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Driver() core.Driver { return s.d.Driver }

// DB exposes the underlying handle for integration tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Create(ctx context.Context, rec core.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	rec = rec.Clone()
	rec.Version = 0
	core.Stamp(&rec, s.now())
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "encode record %s", rec.URI)
	}
	res, err := s.db.ExecContext(ctx, s.d.Insert, rec.URI, string(payload))
	if err != nil {
		return errors.Wrapf(err, "insert record %s", rec.URI)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return core.AlreadyExists(rec.URI)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, uri string) (core.Record, error) {
	return scanRecord(s.db.QueryRowContext(ctx, s.d.Select, uri), uri)
}

// Update runs fn inside a transaction holding the row lock where the dialect
// supports one. The process-local mutex serializes writers on backends
// without row locks.
func (s *Store) Update(ctx context.Context, uri string, fn core.Mutator) (rec core.Record, retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Record{}, errors.Wrap(err, "begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	cur, err := scanRecord(tx.QueryRowContext(ctx, s.d.SelectForUpdate, uri), uri)
	if err != nil {
		return core.Record{}, err
	}
	next, err := core.Apply(cur, fn, s.now())
	if err != nil {
		return core.Record{}, err
	}
	payload, err := json.Marshal(next)
	if err != nil {
		return core.Record{}, errors.Wrapf(err, "encode record %s", uri)
	}
	if _, err := tx.ExecContext(ctx, s.d.Update, uri, string(payload)); err != nil {
		return core.Record{}, errors.Wrapf(err, "update record %s", uri)
	}
	if err := tx.Commit(); err != nil {
		return core.Record{}, errors.Wrap(err, "commit")
	}
	committed = true
	return next, nil
}

func (s *Store) Close() error { return s.db.Close() }

func scanRecord(row *sql.Row, uri string) (core.Record, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Record{}, core.NotFound(uri)
		}
		return core.Record{}, errors.Wrapf(err, "select record %s", uri)
	}
	var rec core.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return core.Record{}, errors.Wrapf(err, "decode record %s", uri)
	}
	return rec, nil
}

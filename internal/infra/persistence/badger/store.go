// Package badger persists catalog records in an embedded BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"somacore/internal/catalog/core"
	"somacore/internal/errors"
	"somacore/internal/logger"
)

const keyPrefix = "obj/"

// maxConflictRetries bounds optimistic transaction retries in Update.
const maxConflictRetries = 16

// Config selects an on-disk directory or in-memory mode.
type Config struct {
	Path       string
	InMemory   bool
	SyncWrites bool
}

// Store is a BadgerDB-backed catalog. Keys are "obj/<uri>", values are the
// JSON-encoded record.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// zapLogger adapts the component logger to badger's Logger interface.
type zapLogger struct{}

func (zapLogger) Errorf(format string, args ...interface{}) {
	logger.ComponentLogger("badger").Errorf(format, args...)
}

func (zapLogger) Warningf(format string, args ...interface{}) {
	logger.ComponentLogger("badger").Warnf(format, args...)
}

func (zapLogger) Infof(format string, args ...interface{}) {
	logger.ComponentLogger("badger").Debugf(format, args...)
}

func (zapLogger) Debugf(format string, args ...interface{}) {
	logger.ComponentLogger("badger").Debugf(format, args...)
}

// New opens a Badger catalog.
func New(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.InvalidArgumentf("badger catalog requires a path unless in-memory")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, errors.Wrapf(err, "create badger directory %s", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1).WithLogger(zapLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger database")
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverBadger }

func key(uri string) []byte { return []byte(keyPrefix + uri) }

func (s *Store) Create(_ context.Context, rec core.Record) error {
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
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(rec.URI)); err == nil {
			return core.AlreadyExists(rec.URI)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key(rec.URI), payload)
	})
	if errors.Is(err, badger.ErrConflict) {
		return core.AlreadyExists(rec.URI)
	}
	return err
}

func (s *Store) Load(_ context.Context, uri string) (core.Record, error) {
	var rec core.Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = read(txn, uri)
		return err
	})
	return rec, err
}

// Update retries on badger.ErrConflict; fn may therefore run more than once
// and must not have side effects outside the record.
func (s *Store) Update(ctx context.Context, uri string, fn core.Mutator) (core.Record, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return core.Record{}, err
		}
		var next core.Record
		err := s.db.Update(func(txn *badger.Txn) error {
			cur, err := read(txn, uri)
			if err != nil {
				return err
			}
			next, err = core.Apply(cur, fn, s.now())
			if err != nil {
				return err
			}
			payload, err := json.Marshal(next)
			if err != nil {
				return errors.Wrapf(err, "encode record %s", uri)
			}
			return txn.Set(key(uri), payload)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return core.Record{}, err
		}
		return next, nil
	}
	return core.Record{}, errors.Wrapf(badger.ErrConflict, "update %s", uri)
}

func (s *Store) Close() error { return s.db.Close() }

func read(txn *badger.Txn, uri string) (core.Record, error) {
	item, err := txn.Get(key(uri))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return core.Record{}, core.NotFound(uri)
	}
	if err != nil {
		return core.Record{}, errors.Wrapf(err, "get record %s", uri)
	}
	var rec core.Record
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return core.Record{}, errors.Wrapf(err, "decode record %s", uri)
	}
	return rec, nil
}

package catalog

import (
	"context"

	"somacore/internal/config"
	"somacore/internal/errors"
	badgerstore "somacore/internal/infra/persistence/badger"
	"somacore/internal/infra/persistence/memory"
	"somacore/internal/infra/persistence/postgres"
	"somacore/internal/infra/persistence/sqlite"
	"somacore/internal/logger"
)

// Open selects a Catalog implementation from the catalog configuration.
func Open(ctx context.Context, cfg config.CatalogConfig) (Catalog, error) {
	log := logger.ComponentLogger("catalog")
	switch cfg.Driver {
	case config.CatalogMemory:
		return memory.New(), nil
	case "", config.CatalogSQLite:
		log.Debugw("opening catalog", logger.FieldDriver, config.CatalogSQLite, "path", cfg.SQLitePath)
		return sqlite.New(ctx, cfg.SQLitePath)
	case config.CatalogPostgres:
		log.Debugw("opening catalog", logger.FieldDriver, config.CatalogPostgres)
		return postgres.New(ctx, cfg.PostgresDSN)
	case config.CatalogBadger:
		log.Debugw("opening catalog", logger.FieldDriver, config.CatalogBadger, "path", cfg.BadgerPath, "in_memory", cfg.BadgerInMemory)
		return badgerstore.New(badgerstore.Config{Path: cfg.BadgerPath, InMemory: cfg.BadgerInMemory})
	default:
		return nil, errors.InvalidArgumentf("unknown catalog driver %q", cfg.Driver)
	}
}

package soma

import (
	"context"
	"maps"
	"slices"

	"go.uber.org/zap"

	"somacore/internal/config"
	"somacore/internal/engine"
	"somacore/internal/errors"
	"somacore/internal/logger"
)

// Options are the defaults every entity created through a Platform uses.
type Options struct {
	// TileExtent is the dimension tile extent used by DataFrame.Write and
	// the upper bound for tensor dimensions.
	TileExtent int64
	// Capacity is the number of cells per stored fragment.
	Capacity int
	// ZstdLevel is the compression level of every column filter.
	ZstdLevel int
	// AllowDuplicates lets dataframes store repeated dimension values.
	AllowDuplicates bool
	// RejectDuplicateIDs makes Ingest fail with ErrDuplicateID when an id is
	// already stored or repeated within the ingested table. Off by default:
	// later writes of an id replace earlier ones.
	RejectDuplicateIDs bool
	// ASCIIColumns lists, per dataframe name, the columns stored as
	// fixed-width bytes so they can be used in Filter expressions.
	ASCIIColumns map[string][]string
}

// DefaultOptions returns the built-in defaults.
func DefaultOptions() Options {
	return Options{TileExtent: 2048, Capacity: 100000, ZstdLevel: -1}
}

// OptionsFromConfig converts the soma configuration section.
func OptionsFromConfig(c config.SomaConfig) Options {
	o := Options{
		TileExtent:         int64(c.TileExtent),
		Capacity:           c.Capacity,
		ZstdLevel:          c.ZstdLevel,
		AllowDuplicates:    c.AllowDuplicates,
		RejectDuplicateIDs: c.RejectDuplicateIDs,
		ASCIIColumns:       make(map[string][]string, len(c.ASCIIColumns)),
	}
	for name, cols := range c.ASCIIColumns {
		o.ASCIIColumns[name] = slices.Clone(cols)
	}
	return o
}

func (o Options) asciiColumns(entity string) []string {
	return o.ASCIIColumns[entity]
}

// Platform is the shared context passed explicitly to every handle: the
// storage engine, the options and a logger.
type Platform struct {
	Engine  *engine.Engine
	Options Options
	Log     *zap.SugaredLogger
}

// NewPlatform wraps an open engine.
func NewPlatform(e *engine.Engine, opts Options) *Platform {
	if opts.ASCIIColumns != nil {
		opts.ASCIIColumns = maps.Clone(opts.ASCIIColumns)
	}
	return &Platform{Engine: e, Options: opts, Log: logger.ComponentLogger("soma")}
}

// OpenPlatform opens the engine described by cfg.
func OpenPlatform(ctx context.Context, cfg *config.Config, engineOpts ...engine.Option) (*Platform, error) {
	if cfg == nil {
		return nil, errors.InvalidArgumentf("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e, err := engine.Open(ctx, cfg.Storage, cfg.Catalog, engineOpts...)
	if err != nil {
		return nil, err
	}
	return NewPlatform(e, OptionsFromConfig(cfg.Soma)), nil
}

// NewInMemoryPlatform returns a platform over an in-memory engine.
func NewInMemoryPlatform(opts Options, engineOpts ...engine.Option) (*Platform, error) {
	e, err := engine.NewInMemory(engineOpts...)
	if err != nil {
		return nil, err
	}
	return NewPlatform(e, opts), nil
}

// Close releases the engine.
func (p *Platform) Close() error { return p.Engine.Close() }

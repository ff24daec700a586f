package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"somacore/internal/errors"
)

// EnvPrefix is the environment variable prefix bound by Load.
const EnvPrefix = "SOMACORE"

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads configuration from path (optional) layered over defaults and
// environment variables, then validates it.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			v.SetConfigType("yaml")
		default:
			v.SetConfigType("toml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates configuration from v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in defaults without reading files or the environment.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate rejects unknown drivers and non-positive sizes.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageFilesystem, StorageMemory:
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.InvalidArgumentf("storage.s3.bucket required for s3 driver")
		}
	default:
		return errors.InvalidArgumentf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Catalog.Driver {
	case CatalogMemory, CatalogSQLite, CatalogBadger:
	case CatalogPostgres:
		if c.Catalog.PostgresDSN == "" {
			return errors.InvalidArgumentf("catalog.postgres_dsn required for postgres driver")
		}
	default:
		return errors.InvalidArgumentf("unknown catalog driver %q", c.Catalog.Driver)
	}
	if c.Soma.TileExtent <= 0 {
		return errors.InvalidArgumentf("soma.tile_extent must be positive, got %d", c.Soma.TileExtent)
	}
	if c.Soma.Capacity <= 0 {
		return errors.InvalidArgumentf("soma.capacity must be positive, got %d", c.Soma.Capacity)
	}
	return nil
}

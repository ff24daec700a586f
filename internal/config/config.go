// Package config loads somacore configuration with viper.
//
// Sources in increasing precedence: built-in defaults, an optional config
// file (TOML or YAML, chosen by extension), then SOMACORE_* environment
// variables where dots in keys become underscores
// (SOMACORE_CATALOG_DRIVER=sqlite, SOMACORE_STORAGE_S3_BUCKET=...).
package config

// Storage drivers for array fragments.
const (
	StorageFilesystem = "fs"
	StorageMemory     = "memory"
	StorageS3         = "s3"
)

// Catalog drivers for object records.
const (
	CatalogMemory   = "memory"
	CatalogSQLite   = "sqlite"
	CatalogPostgres = "postgres"
	CatalogBadger   = "badger"
)

// Config is the root configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Soma    SomaConfig    `mapstructure:"soma"`
	Log     LogConfig     `mapstructure:"log"`
}

// StorageConfig selects where array fragments are written.
type StorageConfig struct {
	Driver string   `mapstructure:"driver"`  // fs|memory|s3
	FSRoot string   `mapstructure:"fs_root"` // root directory for the fs driver
	S3     S3Config `mapstructure:"s3"`
}

// S3Config configures the S3 / MinIO driver.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"` // custom endpoint, e.g. MinIO
	PathStyle bool   `mapstructure:"path_style"`
}

// CatalogConfig selects where object records (type, schema, members,
// metadata, fragment list) are kept.
type CatalogConfig struct {
	Driver         string `mapstructure:"driver"` // memory|sqlite|postgres|badger
	SQLitePath     string `mapstructure:"sqlite_path"`
	PostgresDSN    string `mapstructure:"postgres_dsn"`
	BadgerPath     string `mapstructure:"badger_path"`
	BadgerInMemory bool   `mapstructure:"badger_in_memory"`
}

// SomaConfig holds object-model defaults passed down to every entity.
type SomaConfig struct {
	TileExtent         int                 `mapstructure:"tile_extent"`
	Capacity           int                 `mapstructure:"capacity"`
	ZstdLevel          int                 `mapstructure:"zstd_level"`
	AllowDuplicates    bool                `mapstructure:"allow_duplicates"`
	RejectDuplicateIDs bool                `mapstructure:"reject_duplicate_ids"`
	ASCIIColumns       map[string][]string `mapstructure:"ascii_columns"` // entity name -> columns stored as fixed-width bytes
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", StorageFilesystem)
	v.SetDefault("storage.fs_root", "./somadata")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.path_style", false)

	v.SetDefault("catalog.driver", CatalogSQLite)
	v.SetDefault("catalog.sqlite_path", "somacore.db")
	v.SetDefault("catalog.postgres_dsn", "postgres://localhost/somacore?sslmode=disable")
	v.SetDefault("catalog.badger_path", "./somacatalog")
	v.SetDefault("catalog.badger_in_memory", false)

	v.SetDefault("soma.tile_extent", 2048)
	v.SetDefault("soma.capacity", 100000)
	v.SetDefault("soma.zstd_level", -1)
	v.SetDefault("soma.allow_duplicates", false)
	v.SetDefault("soma.reject_duplicate_ids", false)

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

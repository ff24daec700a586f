package blob

import (
	"context"

	"somacore/internal/config"
	"somacore/internal/errors"
)

// Open selects a Store implementation from the storage configuration.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", config.StorageFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case config.StorageMemory:
		return NewMemory(), nil
	case config.StorageS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	default:
		return nil, errors.InvalidArgumentf("unknown blob driver %q", cfg.Driver)
	}
}

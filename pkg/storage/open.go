package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"storefront-client/config"
	infracache "storefront-client/internal/infrastructure/cache"
	"storefront-client/pkg/cache"
)

// Open builds the store selected by cfg.StorageDriver.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, error) {
	switch cfg.StorageDriver {
	case config.StorageFile:
		return NewFileStore(cfg.StorageDir, cfg.StorageWatchInterval, log)
	case config.StorageMemory:
		return NewMemoryStore(infracache.NewMemoryCache(cache.NoExpiration, time.Hour)), nil
	case config.StorageRedis:
		return NewRedisStore(ctx, RedisOptions{
			URL:      cfg.RedisURL,
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Channel:  cfg.RedisChannel,
		}, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Package driver opens the document store selected by configuration.
package driver

import (
	"context"
	"fmt"

	"github.com/makkenzo/keybind-service/internal/config"
	"github.com/makkenzo/keybind-service/internal/storage"
	"github.com/makkenzo/keybind-service/internal/storage/filestore"
	"github.com/makkenzo/keybind-service/internal/storage/postgres"
	redisstore "github.com/makkenzo/keybind-service/internal/storage/redis"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Opened is a ready document store plus the resources behind it.
type Opened struct {
	Store storage.DocumentStore
	Redis *goredis.Client
	close []func()
}

func (o *Opened) Close() {
	for i := len(o.close) - 1; i >= 0; i-- {
		o.close[i]()
	}
}

// Open connects the configured driver. The redis client is also opened when
// the worker is enabled, since asynq health is reported through it.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Opened, error) {
	opened := &Opened{}

	needRedis := cfg.Storage.Driver == config.StorageDriverRedis || cfg.Worker.Enabled
	if needRedis {
		client, err := redisstore.NewRedisClient(ctx, &cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		opened.Redis = client
		opened.close = append(opened.close, func() { client.Close() })
	}

	switch cfg.Storage.Driver {
	case config.StorageDriverFile, "":
		store, err := filestore.NewStore(cfg.Storage.Dir, logger)
		if err != nil {
			opened.Close()
			return nil, err
		}
		opened.Store = store
		logger.Info("Using file document store", zap.String("dir", cfg.Storage.Dir))

	case config.StorageDriverRedis:
		opened.Store = redisstore.NewStore(opened.Redis, cfg.Storage.KeyPrefix, logger)
		logger.Info("Using redis document store", zap.String("prefix", cfg.Storage.KeyPrefix))

	case config.StorageDriverPostgres:
		pool, err := postgres.NewPgxPool(ctx, &cfg.Database, logger)
		if err != nil {
			opened.Close()
			return nil, err
		}
		opened.close = append(opened.close, pool.Close)

		store := postgres.NewDocumentStore(pool, logger)
		if err := store.Migrate(ctx); err != nil {
			opened.Close()
			return nil, err
		}
		opened.Store = store
		logger.Info("Using postgres document store")

	default:
		opened.Close()
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	return opened, nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/makkenzo/keybind-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store keeps each document as a single string value, so a SET replaces it
// atomically.
type Store struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

func NewStore(client *redis.Client, prefix string, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		logger: logger.Named("RedisStore"),
	}
}

var _ storage.DocumentStore = (*Store)(nil)

func (s *Store) key(name string) string {
	return s.prefix + "doc:" + name
}

func (s *Store) Load(ctx context.Context, name string, dst any) (bool, error) {
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		s.logger.Error("Failed to load document from redis", zap.String("document", name), zap.Error(err))
		return false, fmt.Errorf("redis error loading document %s: %w", name, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("failed to decode document %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) Save(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", name, err)
	}

	if err := s.client.Set(ctx, s.key(name), data, 0).Err(); err != nil {
		s.logger.Error("Failed to save document to redis", zap.String("document", name), zap.Error(err))
		return fmt.Errorf("redis error saving document %s: %w", name, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

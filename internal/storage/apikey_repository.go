package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/keybind-service/internal/domain/apikey"
	"github.com/makkenzo/keybind-service/internal/ierr"
	"go.uber.org/zap"
)

type apiKeyDocument map[string]*apikey.APIKey

// APIKeyRepository stores relay API keys in the apikeys document, indexed by
// prefix.
type APIKeyRepository struct {
	store  DocumentStore
	logger *zap.Logger
	mu     sync.Mutex
}

func NewAPIKeyRepository(store DocumentStore, logger *zap.Logger) *APIKeyRepository {
	return &APIKeyRepository{
		store:  store,
		logger: logger.Named("APIKeyRepository"),
	}
}

var _ apikey.Repository = (*APIKeyRepository)(nil)

func (r *APIKeyRepository) load(ctx context.Context) (apiKeyDocument, error) {
	doc := make(apiKeyDocument)
	if _, err := r.store.Load(ctx, DocAPIKeys, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *APIKeyRepository) FindByPrefix(ctx context.Context, prefix string) (*apikey.APIKey, error) {
	doc, err := r.load(ctx)
	if err != nil {
		r.logger.Error("Failed to load api keys", zap.Error(err))
		return nil, fmt.Errorf("storage error on find api key: %w", err)
	}

	key, ok := doc[prefix]
	if !ok || !key.IsEnabled {
		return nil, ierr.ErrAPIKeyNotFound
	}
	keyCopy := *key
	return &keyCopy, nil
}

func (r *APIKeyRepository) Create(ctx context.Context, key *apikey.APIKey) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("storage error on create api key: %w", err)
	}
	if _, exists := doc[key.Prefix]; exists {
		return uuid.Nil, fmt.Errorf("api key prefix '%s' already exists", key.Prefix)
	}

	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	doc[key.Prefix] = key

	if err := r.store.Save(ctx, DocAPIKeys, doc); err != nil {
		r.logger.Error("Failed to save api keys", zap.Error(err))
		return uuid.Nil, fmt.Errorf("storage error on create api key: %w", err)
	}

	r.logger.Info("API key stored", zap.String("id", key.ID.String()), zap.String("prefix", key.Prefix))
	return key.ID, nil
}

func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, prefix string, lastUsed time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load(ctx)
	if err != nil {
		return fmt.Errorf("storage error on update api key: %w", err)
	}
	key, ok := doc[prefix]
	if !ok {
		return ierr.ErrAPIKeyNotFound
	}
	key.LastUsedAt = &lastUsed

	if err := r.store.Save(ctx, DocAPIKeys, doc); err != nil {
		return fmt.Errorf("storage error on update api key: %w", err)
	}
	return nil
}

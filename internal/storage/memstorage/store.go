package memstorage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/makkenzo/keybind-service/internal/storage"
)

// Store keeps documents as marshalled JSON in memory so callers observe the
// same copy semantics as the persistent drivers.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewStore() *Store {
	return &Store{
		docs: make(map[string][]byte),
	}
}

var _ storage.DocumentStore = (*Store)(nil)

func (s *Store) Load(ctx context.Context, name string, dst any) (bool, error) {
	s.mu.RLock()
	data, ok := s.docs[name]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("decode document %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) Save(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", name, err)
	}

	s.mu.Lock()
	s.docs[name] = data
	s.mu.Unlock()
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

// Raw returns the stored bytes of a document, for assertions in tests.
func (s *Store) Raw(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[name]
	return data, ok
}

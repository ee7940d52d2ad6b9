package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/makkenzo/keybind-service/internal/storage"
	"go.uber.org/zap"
)

// Store persists each document as <dir>/<name>.json.
type Store struct {
	dir    string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		logger: logger.Named("FileStore"),
		locks:  make(map[string]*sync.RWMutex),
	}, nil
}

var _ storage.DocumentStore = (*Store)(nil)

func (s *Store) lockFor(name string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[name] = l
	}
	return l
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *Store) Load(ctx context.Context, name string, dst any) (bool, error) {
	l := s.lockFor(name)
	l.RLock()
	defer l.RUnlock()

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("Document not found, using empty default", zap.String("document", name))
			return false, nil
		}
		return false, fmt.Errorf("failed to read document %s: %w", name, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Error("Failed to decode document", zap.String("document", name), zap.Error(err))
		return true, fmt.Errorf("failed to decode document %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) Save(ctx context.Context, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", name, err)
	}

	l := s.lockFor(name)
	l.Lock()
	defer l.Unlock()

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write document %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync document %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close document %s: %w", name, err)
	}

	if err := os.Rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace document %s: %w", name, err)
	}

	s.logger.Debug("Document saved", zap.String("document", name), zap.Int("bytes", len(data)))
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("storage directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage path %s is not a directory", s.dir)
	}
	return nil
}

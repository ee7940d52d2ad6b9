// Package storage defines the named-document store that backs every piece of
// keybind state, plus the API key repository layered on top of it.
package storage

import (
	"context"
	"sync"
)

// Document names.
const (
	DocKeys      = "keys"
	DocUsers     = "users"
	DocHWIDs     = "hwids"
	DocCooldowns = "cooldowns"
	DocUsedKeys  = "usedkeys"
	DocAPIKeys   = "apikeys"
)

// DocumentStore loads and saves whole JSON documents by name.
//
// Load reports found == false and leaves dst untouched when the document does
// not exist; that is not an error. Save replaces the document so that a
// concurrent Load sees either the old or the new value, never a partial one.
type DocumentStore interface {
	Load(ctx context.Context, name string, dst any) (found bool, err error)
	Save(ctx context.Context, name string, v any) error
	Ping(ctx context.Context) error
}

// Locker serializes read-modify-write cycles across documents inside one
// process. Stores give no cross-process guarantee: last write wins.
type Locker struct {
	mu sync.Mutex
}

func NewLocker() *Locker {
	return &Locker{}
}

func (l *Locker) Do(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}

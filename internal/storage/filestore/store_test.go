package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadMissingDocument(t *testing.T) {
	store, err := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	doc := map[string]string{"keep": "me"}
	found, err := store.Load(context.Background(), "users", &doc)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, map[string]string{"keep": "me"}, doc)
}

func TestSaveThenLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "usedkeys", []string{"1", "2"}))
	require.NoError(t, store.Save(ctx, "usedkeys", []string{"1", "2", "3"}))

	var used []string
	found, err := store.Load(ctx, "usedkeys", &used)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"1", "2", "3"}, used)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "usedkeys.json", entries[0].Name())
}

func TestLoadCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keys.json"), []byte("{not json"), 0o644))

	var doc map[string]any
	_, err = store.Load(context.Background(), "keys", &doc)
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nested"), zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
}

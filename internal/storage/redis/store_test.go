package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, "test:", zap.NewNop()), mr
}

func TestStoreSaveLoad(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	var missing map[string]float64
	found, err := store.Load(ctx, "cooldowns", &missing)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save(ctx, "cooldowns", map[string]float64{"U1": 1700000000}))

	raw, err := mr.Get("test:doc:cooldowns")
	require.NoError(t, err)
	assert.JSONEq(t, `{"U1": 1700000000}`, raw)

	var loaded map[string]float64
	found, err = store.Load(ctx, "cooldowns", &loaded)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, float64(1700000000), loaded["U1"])

	assert.NoError(t, store.Ping(ctx))
}

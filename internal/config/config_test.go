package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StorageDriverFile, cfg.Storage.Driver)
	assert.Equal(t, 10, cfg.Bot.BootstrapKeys)
	assert.Equal(t, 11, cfg.Bot.KeyLength)
	assert.Equal(t, 8, cfg.Bot.HWIDSuffixLength)
	assert.Equal(t, 24*time.Hour, cfg.Bot.ResetCooldown)
	assert.False(t, cfg.Worker.Enabled)
	assert.Equal(t, time.Hour, cfg.Worker.ResultRetention)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
storage:
  driver: redis
  keyPrefix: "test:"
bot:
  buyerRoleId: "111"
  adminRoleId: "222"
  resetCooldown: 1h
worker:
  enabled: true
  concurrency: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("BOT_TRUSTEDCONFIRMERID", "1273044266347663395")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, StorageDriverRedis, cfg.Storage.Driver)
	assert.Equal(t, "test:", cfg.Storage.KeyPrefix)
	assert.Equal(t, "111", cfg.Bot.BuyerRoleID)
	assert.Equal(t, "222", cfg.Bot.AdminRoleID)
	assert.Equal(t, "1273044266347663395", cfg.Bot.TrustedConfirmerID)
	assert.Equal(t, time.Hour, cfg.Bot.ResetCooldown)
	assert.True(t, cfg.Worker.Enabled)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
}

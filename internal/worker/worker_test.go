package worker

import (
	"context"
	"testing"

	"github.com/makkenzo/keybind-service/internal/config"
	"github.com/makkenzo/keybind-service/internal/metrics"
	"github.com/makkenzo/keybind-service/internal/service"
	"github.com/makkenzo/keybind-service/internal/storage"
	"github.com/makkenzo/keybind-service/internal/storage/memstorage"
	"github.com/makkenzo/keybind-service/internal/tasks"
	"github.com/makkenzo/keybind-service/internal/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestServeMuxRoutesTasks(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	codes := []string{"10000000001", "10000000002", "10000000003"}
	next := 0
	registry := service.NewKeyRegistry(memstorage.NewStore(), storage.NewLocker(), service.KeyRegistryOptions{
		Codes: util.GeneratorFunc(func() (string, error) {
			c := codes[next%len(codes)]
			next++
			return c, nil
		}),
	}, logger)
	require.NoError(t, registry.Bootstrap(ctx, 3))
	require.NoError(t, registry.RedeemUnconfirmed(ctx, "10000000002", "U1"))

	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New(prometheus.NewRegistry())
	mux := NewServeMux(Deps{
		Registry: registry,
		Workflow: service.NewBindingWorkflow(registry, service.NewTrustedConfirmer("bot", ""), logger),
		Notifier: LogNotifier{Logger: zap.New(core)},
		Metrics:  m,
	}, logger)

	stats, err := tasks.NewKeyStatsTask()
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(ctx, stats))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Keys.WithLabelValues("Unredeemed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Keys.WithLabelValues("PendingHWID")))

	malformed, err := tasks.NewHWIDConfirmTask(service.ConfirmationMessage{SenderID: "bot", Content: "no fields here"})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(ctx, malformed))
	assert.Zero(t, logs.FilterMessage("Confirmation reply").Len(), "an acknowledgement alone is not a follow-up")

	confirm, err := tasks.NewHWIDConfirmTask(service.ConfirmationMessage{
		SenderID: "bot",
		Content:  "User: u Client ID: CID-9 Script Key: 10000000002",
	})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(ctx, confirm))

	entries := logs.FilterMessage("Confirmation reply").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "applied", entries[0].ContextMap()["status"])
	assert.Equal(t, "HWID for key 10000000002 has been updated.", entries[0].ContextMap()["messages"])
}

func TestRedisConnOpt(t *testing.T) {
	opt := RedisConnOpt(&config.RedisConfig{Addr: "redis:6379", Password: "pw", DB: 2})
	assert.Equal(t, "redis:6379", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
}

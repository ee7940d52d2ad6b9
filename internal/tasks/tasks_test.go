package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/keybind-service/internal/domain/key"
	"github.com/makkenzo/keybind-service/internal/metrics"
	"github.com/makkenzo/keybind-service/internal/service"
	"github.com/makkenzo/keybind-service/internal/storage"
	"github.com/makkenzo/keybind-service/internal/storage/memstorage"
	"github.com/makkenzo/keybind-service/internal/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const trusted = "trusted-bot"

type recordingNotifier struct {
	results []*ConfirmationResult
}

func (n *recordingNotifier) Notify(ctx context.Context, msg service.ConfirmationMessage, res *ConfirmationResult) error {
	n.results = append(n.results, res)
	return nil
}

func newRegistry(t *testing.T) *service.KeyRegistry {
	t.Helper()
	codes := []string{"11111111111", "22222222222"}
	i := 0
	gen := util.GeneratorFunc(func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	})
	r := service.NewKeyRegistry(memstorage.NewStore(), storage.NewLocker(), service.KeyRegistryOptions{Codes: gen}, zap.NewNop())
	_, err := r.Generate(context.Background(), 2)
	require.NoError(t, err)
	return r
}

func TestHWIDConfirmTaskPayload(t *testing.T) {
	msg := service.ConfirmationMessage{SenderID: trusted, Content: "hello", Token: "tok"}
	task, err := NewHWIDConfirmTask(msg)
	require.NoError(t, err)
	assert.Equal(t, TypeHWIDConfirm, task.Type())

	var p HWIDConfirmPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, msg, p.Message())
}

func TestConfirmHWIDHandlerAppliesConfirmation(t *testing.T) {
	ctx := context.Background()
	registry := newRegistry(t)
	require.NoError(t, registry.RedeemUnconfirmed(ctx, "11111111111", "U1"))

	workflow := service.NewBindingWorkflow(registry, service.NewTrustedConfirmer(trusted, ""), zap.NewNop())
	notifier := &recordingNotifier{}
	m := metrics.New(prometheus.NewRegistry())
	h := NewConfirmHWIDHandler(workflow, notifier, m, zap.NewNop())

	task, err := NewHWIDConfirmTask(service.ConfirmationMessage{
		SenderID: trusted,
		Content:  "User: buyer Client ID: CID-1 Script Key: 11111111111",
	})
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(ctx, task))

	k, err := registry.Describe(ctx, "11111111111")
	require.NoError(t, err)
	assert.Equal(t, key.StateBound, k.State())
	require.Len(t, notifier.results, 1)
	assert.Equal(t, string(service.ConfirmationApplied), notifier.results[0].Status)
	assert.Equal(t, []string{"HWID for key 11111111111 has been updated."}, notifier.results[0].Messages)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Confirmations.WithLabelValues("applied")))
}

func TestConfirmHWIDHandlerSkipsUntrustedWithoutNotifying(t *testing.T) {
	registry := newRegistry(t)
	workflow := service.NewBindingWorkflow(registry, service.NewTrustedConfirmer(trusted, ""), zap.NewNop())
	notifier := &recordingNotifier{}
	h := NewConfirmHWIDHandler(workflow, notifier, nil, zap.NewNop())

	task, err := NewHWIDConfirmTask(service.ConfirmationMessage{SenderID: "someone", Content: "x"})
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Empty(t, notifier.results)
}

func TestConfirmHWIDHandlerRejectsBadPayload(t *testing.T) {
	h := NewConfirmHWIDHandler(nil, nil, nil, zap.NewNop())

	err := h.ProcessTask(context.Background(), asynq.NewTask(TypeHWIDConfirm, []byte("{")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = h.ProcessTask(context.Background(), asynq.NewTask(TypeKeyStats, nil))
	assert.Error(t, err)
}

func TestKeyStatsHandler(t *testing.T) {
	ctx := context.Background()
	registry := newRegistry(t)
	require.NoError(t, registry.RedeemUnconfirmed(ctx, "22222222222", "U2"))

	m := metrics.New(prometheus.NewRegistry())
	h := NewKeyStatsHandler(registry, m, zap.NewNop())

	task, err := NewKeyStatsTask()
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(ctx, task))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Keys.WithLabelValues(string(key.StateUnredeemed))))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Keys.WithLabelValues(string(key.StatePendingHWID))))
}

func TestKeyStatsHandlerWithoutMetrics(t *testing.T) {
	h := NewKeyStatsHandler(newRegistry(t), nil, zap.NewNop())

	task, err := NewKeyStatsTask()
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		assert.NoError(t, h.ProcessTask(context.Background(), task))
	})
}

func TestProcessOmitsAcknowledgement(t *testing.T) {
	ctx := context.Background()
	registry := newRegistry(t)
	require.NoError(t, registry.RedeemUnconfirmed(ctx, "11111111111", "U1"))
	workflow := service.NewBindingWorkflow(registry, service.NewTrustedConfirmer(trusted, ""), zap.NewNop())
	h := NewConfirmHWIDHandler(workflow, nil, nil, zap.NewNop())

	content := "User: buyer Client ID: CID-1 Script Key: 11111111111"
	res, err := h.Process(ctx, service.ConfirmationMessage{SenderID: trusted, Content: content})
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, []string{"HWID for key 11111111111 has been updated."}, res.Messages)

	res, err = h.Process(ctx, service.ConfirmationMessage{SenderID: trusted, Content: "no fields"})
	require.NoError(t, err)
	assert.Equal(t, string(service.ConfirmationMalformed), res.Status)
	assert.Empty(t, res.Messages)
	assert.NotNil(t, res.Messages)
}

func TestResultFromTaskInfo(t *testing.T) {
	stored, err := json.Marshal(ConfirmationResult{Status: "applied", Messages: []string{"HWID for key 1 has been updated."}})
	require.NoError(t, err)

	res, err := ResultFromTaskInfo(&asynq.TaskInfo{ID: "t1", State: asynq.TaskStateCompleted, Result: stored, CompletedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, "applied", res.Status)
	assert.Equal(t, []string{"HWID for key 1 has been updated."}, res.Messages)

	res, err = ResultFromTaskInfo(&asynq.TaskInfo{ID: "t2", State: asynq.TaskStatePending})
	require.NoError(t, err)
	assert.False(t, res.Done)
	assert.Equal(t, "pending", res.Status)
	assert.Empty(t, res.Messages)

	res, err = ResultFromTaskInfo(&asynq.TaskInfo{ID: "t3", State: asynq.TaskStateArchived, LastErr: "boom"})
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, "failed", res.Status)

	_, err = ResultFromTaskInfo(&asynq.TaskInfo{ID: "t4", State: asynq.TaskStateCompleted, Result: []byte("{")})
	assert.Error(t, err)
}

package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/keybind-service/internal/metrics"
	"github.com/makkenzo/keybind-service/internal/service"
	"go.uber.org/zap"
)

// KeyStatsHandler refreshes the per-state key gauge.
type KeyStatsHandler struct {
	registry *service.KeyRegistry
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewKeyStatsHandler(registry *service.KeyRegistry, m *metrics.Metrics, logger *zap.Logger) *KeyStatsHandler {
	return &KeyStatsHandler{
		registry: registry,
		metrics:  m,
		logger:   logger.Named("KeyStatsHandler"),
	}
}

func (h *KeyStatsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeKeyStats {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	counts, err := h.registry.Stats(ctx)
	if err != nil {
		h.logger.Error("Failed to collect key stats", zap.Error(err))
		return fmt.Errorf("registry error collecting stats: %w", err)
	}
	if h.metrics != nil {
		h.metrics.SetKeyCounts(counts)
	}

	h.logger.Debug("Key stats refreshed", zap.Any("counts", counts))
	return nil
}

package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/keybind-service/internal/metrics"
	"github.com/makkenzo/keybind-service/internal/service"
	"go.uber.org/zap"
)

// ConfirmationNotifier receives the follow-up replies of a processed
// confirmation in addition to the stored task result.
type ConfirmationNotifier interface {
	Notify(ctx context.Context, msg service.ConfirmationMessage, res *ConfirmationResult) error
}

type ConfirmHWIDHandler struct {
	workflow *service.BindingWorkflow
	notifier ConfirmationNotifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewConfirmHWIDHandler(workflow *service.BindingWorkflow, notifier ConfirmationNotifier, m *metrics.Metrics, logger *zap.Logger) *ConfirmHWIDHandler {
	return &ConfirmHWIDHandler{
		workflow: workflow,
		notifier: notifier,
		metrics:  m,
		logger:   logger.Named("ConfirmHWIDHandler"),
	}
}

func (h *ConfirmHWIDHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeHWIDConfirm {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p HWIDConfirmPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal payload for hwid confirmation task", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	res, err := h.Process(ctx, p.Message())
	if err != nil {
		return err
	}

	// Tasks built outside a server have no result writer.
	if w := t.ResultWriter(); w != nil {
		data, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("failed to encode confirmation result: %w", err)
		}
		// The binding is already applied; a retry would only report it as refused.
		if _, err := w.Write(data); err != nil {
			h.logger.Error("Failed to store confirmation result", zap.String("task_id", w.TaskID()), zap.Error(err))
		}
	}

	h.logger.Info("HWID confirmation task finished", zap.String("status", res.Status))
	return nil
}

// Process runs the binding workflow for one message and returns the replies
// that follow the acknowledgement.
func (h *ConfirmHWIDHandler) Process(ctx context.Context, msg service.ConfirmationMessage) (*ConfirmationResult, error) {
	out, err := h.workflow.HandleMessage(ctx, msg)
	if err != nil {
		h.logger.Error("Confirmation processing failed", zap.String("sender_id", msg.SenderID), zap.Error(err))
		return nil, fmt.Errorf("confirmation processing error: %w", err)
	}

	if h.metrics != nil {
		h.metrics.ObserveConfirmation(string(out.Status))
	}

	res := &ConfirmationResult{
		Status:   string(out.Status),
		Messages: append([]string{}, out.FollowUp()...),
		Done:     true,
	}

	if h.notifier != nil && len(res.Messages) > 0 {
		if err := h.notifier.Notify(ctx, msg, res); err != nil {
			h.logger.Warn("Failed to deliver confirmation reply", zap.Error(err))
		}
	}
	return res, nil
}

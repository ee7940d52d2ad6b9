package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/keybind-service/internal/handler/dto"
	"github.com/makkenzo/keybind-service/internal/handler/middleware"
	"github.com/makkenzo/keybind-service/internal/ierr"
	"github.com/makkenzo/keybind-service/internal/metrics"
	"github.com/makkenzo/keybind-service/internal/service"
	"github.com/makkenzo/keybind-service/internal/tasks"
	"go.uber.org/zap"
)

// ConfirmationQueue hands a trusted confirmation to the background worker
// instead of processing it inline, and reports the follow-up once done.
type ConfirmationQueue interface {
	EnqueueConfirmation(ctx context.Context, msg service.ConfirmationMessage) (taskID string, err error)
	ConfirmationResult(ctx context.Context, taskID string) (*tasks.ConfirmationResult, error)
}

type ConfirmationHandler struct {
	workflow *service.BindingWorkflow
	queue    ConfirmationQueue
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewConfirmationHandler builds the handler; queue may be nil.
func NewConfirmationHandler(workflow *service.BindingWorkflow, queue ConfirmationQueue, m *metrics.Metrics, logger *zap.Logger) *ConfirmationHandler {
	return &ConfirmationHandler{
		workflow: workflow,
		queue:    queue,
		metrics:  m,
		logger:   logger.Named("ConfirmationHandler"),
	}
}

func (h *ConfirmationHandler) Submit(c *gin.Context) {
	var req dto.ConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind confirmation request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %w", ierr.ErrValidation, err))
		return
	}

	requestID := middleware.GetRequestID(c)
	msg := req.Message()

	if h.queue != nil && h.workflow.TrustsSender(msg.SenderID) {
		taskID, err := h.queue.EnqueueConfirmation(c.Request.Context(), msg)
		if err != nil {
			h.logger.Error("Failed to enqueue confirmation", zap.String("request_id", requestID), zap.Error(err))
			_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrInternalServer, err))
			return
		}
		h.observe("queued")
		c.JSON(http.StatusAccepted, dto.ConfirmationResponse{
			RequestID: requestID,
			Status:    "queued",
			Messages:  []string{service.AckMessage},
			TaskID:    taskID,
		})
		return
	}

	out, err := h.workflow.HandleMessage(c.Request.Context(), msg)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.observe(string(out.Status))

	messages := out.Messages
	if messages == nil {
		messages = []string{}
	}
	c.JSON(http.StatusOK, dto.ConfirmationResponse{
		RequestID: requestID,
		Status:    string(out.Status),
		Messages:  messages,
	})
}

// Result returns the follow-up of a queued confirmation: 202 while the task
// is still in flight, 200 once it has finished.
func (h *ConfirmationHandler) Result(c *gin.Context) {
	taskID := c.Param("task_id")
	if h.queue == nil {
		_ = c.Error(fmt.Errorf("%w: confirmations are processed inline", ierr.ErrNotFound))
		return
	}

	res, err := h.queue.ConfirmationResult(c.Request.Context(), taskID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	status := http.StatusAccepted
	if res.Done {
		status = http.StatusOK
	}
	c.JSON(status, dto.ConfirmationResponse{
		RequestID: middleware.GetRequestID(c),
		Status:    res.Status,
		Messages:  res.Messages,
		TaskID:    taskID,
	})
}

func (h *ConfirmationHandler) observe(outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveConfirmation(outcome)
	}
}

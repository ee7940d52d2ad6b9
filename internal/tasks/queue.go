package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/makkenzo/keybind-service/internal/ierr"
	"github.com/makkenzo/keybind-service/internal/service"
	"go.uber.org/zap"
)

// Queue enqueues confirmation tasks for the worker and looks up their
// results.
type Queue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	retention time.Duration
	logger    *zap.Logger
}

// NewQueue keeps finished confirmation results for retention so the relay
// can fetch them.
func NewQueue(client *asynq.Client, inspector *asynq.Inspector, retention time.Duration, logger *zap.Logger) *Queue {
	if retention <= 0 {
		retention = time.Hour
	}
	return &Queue{
		client:    client,
		inspector: inspector,
		retention: retention,
		logger:    logger.Named("TaskQueue"),
	}
}

func (q *Queue) EnqueueConfirmation(ctx context.Context, msg service.ConfirmationMessage) (string, error) {
	task, err := NewHWIDConfirmTask(msg, asynq.TaskID(uuid.NewString()), asynq.Retention(q.retention))
	if err != nil {
		return "", fmt.Errorf("failed to build confirmation task: %w", err)
	}

	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue confirmation task: %w", err)
	}

	q.logger.Info("Confirmation task enqueued", zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return info.ID, nil
}

func (q *Queue) ConfirmationResult(ctx context.Context, taskID string) (*ConfirmationResult, error) {
	info, err := q.inspector.GetTaskInfo(QueueConfirmations, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("%w: confirmation task %s", ierr.ErrNotFound, taskID)
		}
		return nil, fmt.Errorf("failed to inspect confirmation task: %w", err)
	}
	if info.State == asynq.TaskStateArchived {
		q.logger.Warn("Confirmation task failed", zap.String("task_id", taskID), zap.String("last_err", info.LastErr))
	}
	return ResultFromTaskInfo(info)
}

func (q *Queue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close())
}

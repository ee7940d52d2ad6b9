package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/keybind-service/internal/config"
	"github.com/makkenzo/keybind-service/internal/metrics"
	"github.com/makkenzo/keybind-service/internal/service"
	"github.com/makkenzo/keybind-service/internal/tasks"
	"go.uber.org/zap"
)

type Deps struct {
	Registry *service.KeyRegistry
	Workflow *service.BindingWorkflow
	Notifier tasks.ConfirmationNotifier
	Metrics  *metrics.Metrics
}

func RedisConnOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewServeMux routes task types to their handlers.
func NewServeMux(deps Deps, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()

	confirmHandler := tasks.NewConfirmHWIDHandler(deps.Workflow, deps.Notifier, deps.Metrics, logger)
	mux.HandleFunc(tasks.TypeHWIDConfirm, confirmHandler.ProcessTask)

	statsHandler := tasks.NewKeyStatsHandler(deps.Registry, deps.Metrics, logger)
	mux.HandleFunc(tasks.TypeKeyStats, statsHandler.ProcessTask)

	return mux
}

// RunWorkers runs the asynq server and scheduler until ctx is cancelled.
func RunWorkers(ctx context.Context, cfg *config.Config, deps Deps, logger *zap.Logger) error {
	redisConnOpts := RedisConnOpt(&cfg.Redis)

	concurrency := cfg.Worker.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	srv := asynq.NewServer(
		redisConnOpts,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				tasks.QueueConfirmations: 6,
				tasks.QueueDefault:       1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log := logger.Named("AsynqServerErrorHandler")
				log.Error("Asynq task processing failed",
					zap.String("task_type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err),
				)
			}),
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqServer")),
		},
	)

	if err := srv.Start(NewServeMux(deps, logger)); err != nil {
		return fmt.Errorf("asynq server start error: %w", err)
	}
	logger.Info("Asynq Server started", zap.Int("concurrency", concurrency))

	scheduler := asynq.NewScheduler(
		redisConnOpts,
		&asynq.SchedulerOpts{
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqScheduler")),
		},
	)

	statsTask, err := tasks.NewKeyStatsTask()
	if err != nil {
		srv.Shutdown()
		return fmt.Errorf("scheduler task creation error: %w", err)
	}

	entryID, err := scheduler.Register(cfg.Worker.StatsInterval, statsTask)
	if err != nil {
		srv.Shutdown()
		return fmt.Errorf("scheduler registration error: %w", err)
	}
	logger.Info("Registered periodic key stats refresh", zap.String("entry_id", entryID), zap.String("schedule", cfg.Worker.StatsInterval))

	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("asynq scheduler start error: %w", err)
	}

	<-ctx.Done()

	logger.Info("Shutting down Asynq Scheduler...")
	scheduler.Shutdown()
	logger.Info("Shutting down Asynq Server...")
	srv.Shutdown()
	logger.Info("Asynq workers stopped.")
	return nil
}

// LogNotifier writes confirmation follow-ups to the log. The relay fetches
// the same replies from the stored task result.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(ctx context.Context, msg service.ConfirmationMessage, res *tasks.ConfirmationResult) error {
	n.Logger.Info("Confirmation reply",
		zap.String("sender_id", msg.SenderID),
		zap.String("status", res.Status),
		zap.String("messages", strings.Join(res.Messages, " | ")),
	)
	return nil
}

type asynqLoggerAdapter struct {
	logger *zap.Logger
}

func NewAsynqLoggerAdapter(logger *zap.Logger) *asynqLoggerAdapter {
	return &asynqLoggerAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (l *asynqLoggerAdapter) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/makkenzo/keybind-service/internal/command"
	"github.com/makkenzo/keybind-service/internal/config"
	"github.com/makkenzo/keybind-service/internal/handler"
	"github.com/makkenzo/keybind-service/internal/metrics"
	"github.com/makkenzo/keybind-service/internal/service"
	"github.com/makkenzo/keybind-service/internal/storage"
	"github.com/makkenzo/keybind-service/internal/storage/driver"
	"github.com/makkenzo/keybind-service/internal/tasks"
	"github.com/makkenzo/keybind-service/internal/util"
	"github.com/makkenzo/keybind-service/internal/worker"
	"github.com/makkenzo/keybind-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	sugarLogger := appLogger.Sugar()
	sugarLogger.Info("Starting keybind service...")

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opened, err := driver.Open(appCtx, cfg, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to open document store: %v", err)
	}
	defer opened.Close()

	if cfg.Bot.TrustedConfirmerID == "" {
		sugarLogger.Warn("bot.trustedConfirmerId is empty, HWID confirmations will be ignored")
	} else if cfg.Bot.ConfirmationSecret == "" {
		sugarLogger.Warn("Confirmations are trusted by sender ID alone; set bot.confirmationSecret to require signed tokens")
	}

	locker := storage.NewLocker()
	registry := service.NewKeyRegistry(opened.Store, locker, service.KeyRegistryOptions{
		Codes:       util.DigitCodes(cfg.Bot.KeyLength),
		UniqueCodes: cfg.Bot.UniqueCodes,
		Slots:       service.SingleSlot{},
	}, appLogger)
	cooldown := service.NewCooldownLedger(opened.Store, locker, cfg.Bot.ResetCooldown, appLogger)
	hwids := service.NewHWIDService(opened.Store, locker, registry, cooldown, util.HWIDSuffix(cfg.Bot.HWIDSuffixLength), nil, appLogger)
	workflow := service.NewBindingWorkflow(registry, service.NewTrustedConfirmer(cfg.Bot.TrustedConfirmerID, cfg.Bot.ConfirmationSecret), appLogger)
	apiKeyRepo := storage.NewAPIKeyRepository(opened.Store, appLogger)

	if err := registry.Bootstrap(appCtx, cfg.Bot.BootstrapKeys); err != nil {
		sugarLogger.Fatalf("Failed to bootstrap key store: %v", err)
	}

	appMetrics := metrics.New(prometheus.DefaultRegisterer)
	if counts, err := registry.Stats(appCtx); err == nil {
		appMetrics.SetKeyCounts(counts)
	}

	dispatcher := command.NewDispatcher(registry, hwids, cooldown, command.RoleMap{
		BuyerRoleID: cfg.Bot.BuyerRoleID,
		AdminRoleID: cfg.Bot.AdminRoleID,
	}, appMetrics, appLogger)

	var queue handler.ConfirmationQueue
	if cfg.Worker.Enabled {
		redisOpt := worker.RedisConnOpt(&cfg.Redis)
		q := tasks.NewQueue(asynq.NewClient(redisOpt), asynq.NewInspector(redisOpt), cfg.Worker.ResultRetention, appLogger)
		defer q.Close()
		queue = q
	}

	checks := map[string]handler.PingFunc{
		"storage": opened.Store.Ping,
	}
	if opened.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return opened.Redis.Ping(ctx).Err() }
	}

	router := handler.NewRouter(handler.RouterDeps{
		Health:        handler.NewHealthHandler(checks, appLogger),
		Commands:      handler.NewCommandHandler(dispatcher, appLogger),
		Confirmations: handler.NewConfirmationHandler(workflow, queue, appMetrics, appLogger),
		APIKeys:       apiKeyRepo,
		Metrics:       gin.WrapH(promhttp.Handler()),
		Origins:       cfg.Server.AllowedOrigins,
	}, appLogger)

	g, groupCtx := errgroup.WithContext(appCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		sugarLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugarLogger.Errorf("HTTP server ListenAndServe error: %v", err)
			return fmt.Errorf("http server failed: %w", err)
		}
		sugarLogger.Info("HTTP server stopped listening.")
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		sugarLogger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugarLogger.Errorf("HTTP server graceful shutdown failed: %v", err)
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		sugarLogger.Info("HTTP server shutdown complete.")
		return nil
	})

	if cfg.Worker.Enabled {
		g.Go(func() error {
			deps := worker.Deps{
				Registry: registry,
				Workflow: workflow,
				Notifier: worker.LogNotifier{Logger: appLogger.Named("ConfirmationReplies")},
				Metrics:  appMetrics,
			}
			if err := worker.RunWorkers(groupCtx, cfg, deps, appLogger); err != nil {
				sugarLogger.Errorf("Asynq worker failed: %v", err)
				return fmt.Errorf("asynq worker error: %w", err)
			}
			sugarLogger.Info("Asynq workers finished gracefully.")
			return nil
		})
	}

	sugarLogger.Info("Service started. Waiting for interrupt signal or component error...")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		sugarLogger.Errorf("Service shutdown finished with unexpected error: %v", err)
	}

	sugarLogger.Info("Service exiting now.")
}

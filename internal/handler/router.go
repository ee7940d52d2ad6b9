package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/makkenzo/keybind-service/internal/domain/apikey"
	"github.com/makkenzo/keybind-service/internal/handler/middleware"
	"github.com/makkenzo/keybind-service/internal/ierr"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Health        *HealthHandler
	Commands      *CommandHandler
	Confirmations *ConfirmationHandler
	APIKeys       apikey.Repository
	Metrics       gin.HandlerFunc
	Origins       []string
}

func NewRouter(deps RouterDeps, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.ErrorHandlerMiddleware(logger))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered", zap.Any("panic", recovered), zap.Stack("stack"))
		_ = c.Error(ierr.ErrInternalServer)
		c.Abort()
	}))

	if len(deps.Origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.Origins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-API-Key", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", deps.Health.Check)
	if deps.Metrics != nil {
		router.GET("/metrics", deps.Metrics)
	}

	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.APIKeyAuthMiddleware(deps.APIKeys, logger))
	{
		apiV1.POST("/commands", deps.Commands.Execute)
		apiV1.POST("/confirmations", deps.Confirmations.Submit)
		apiV1.GET("/confirmations/:task_id", deps.Confirmations.Result)
	}

	return router
}

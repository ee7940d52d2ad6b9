package handler

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PingFunc func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]PingFunc
	logger *zap.Logger
}

func NewHealthHandler(checks map[string]PingFunc, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		logger: logger.Named("HealthHandler"),
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	dependencies := gin.H{}
	for _, name := range names {
		status := "ok"
		if err := h.checks[name](c.Request.Context()); err != nil {
			status = "error"
			healthy = false
			h.logger.Error("Health check failed", zap.String("dependency", name), zap.Error(err))
		}
		dependencies[name] = status
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":       "unhealthy",
			"dependencies": dependencies,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"dependencies": dependencies,
	})
}

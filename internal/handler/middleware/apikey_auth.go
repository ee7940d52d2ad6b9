package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/makkenzo/keybind-service/internal/domain/apikey"
	"github.com/makkenzo/keybind-service/internal/ierr"
	"github.com/makkenzo/keybind-service/internal/util"
)

const (
	apiKeyHeader = "X-API-Key"
)

func APIKeyAuthMiddleware(apiKeyRepo apikey.Repository, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("APIKeyAuthMiddleware")
	return func(c *gin.Context) {
		apiKeyFromHeader := c.GetHeader(apiKeyHeader)
		if apiKeyFromHeader == "" {
			log.Debug("API Key header is missing", zap.String("header", apiKeyHeader))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		prefix, ok := util.ParseAPIKey(apiKeyFromHeader)
		if !ok {
			log.Warn("Invalid API key format received")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key format"})
			return
		}

		keyRecord, err := apiKeyRepo.FindByPrefix(c.Request.Context(), prefix)
		if err != nil {
			if errors.Is(err, ierr.ErrAPIKeyNotFound) {
				log.Warn("API key not found or disabled", zap.String("prefix", prefix))
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid or disabled API key"})
				return
			}

			log.Error("Failed to query API key repository", zap.String("prefix", prefix), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error during API key validation"})
			return
		}

		receivedKeyHash := util.HashAPIKey(apiKeyFromHeader)

		if subtle.ConstantTimeCompare([]byte(receivedKeyHash), []byte(keyRecord.KeyHash)) != 1 {
			log.Warn("API key hash mismatch", zap.String("prefix", prefix), zap.String("key_id", keyRecord.ID.String()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid or disabled API key"})
			return
		}

		go func(prefix string, repo apikey.Repository, l *zap.Logger) {
			ctxAsync, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			errUpdate := repo.UpdateLastUsed(ctxAsync, prefix, time.Now().UTC())
			if errUpdate != nil {
				l.Error("Failed to update API key last used time asynchronously", zap.String("prefix", prefix), zap.Error(errUpdate))
			}
		}(prefix, apiKeyRepo, log)

		log.Debug("API key validated", zap.String("prefix", prefix), zap.String("key_id", keyRecord.ID.String()))
		c.Next()
	}
}

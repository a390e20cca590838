// Package middleware holds the gin middleware shared by every route group.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

const (
	headerAPIKey      = "X-API-Key"
	headerAuth        = "Authorization"
	bearerPrefix      = "Bearer "
	unauthorizedError = "Unauthorized"
)

// APIKeyAuth guards job routes with static API keys.
type APIKeyAuth struct {
	apiKeys [][]byte
}

// NewAPIKeyAuth builds the middleware from the configured keys. Empty keys are ignored.
// With no keys configured the guarded routes are open.
func NewAPIKeyAuth(apiKeys []string) *APIKeyAuth {
	keys := make([][]byte, 0, len(apiKeys))
	seen := make(map[string]bool, len(apiKeys))
	for _, key := range apiKeys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, []byte(key))
	}

	if len(keys) == 0 {
		logger.L().Warn("No API keys configured; job routes are unauthenticated")
	}

	return &APIKeyAuth{apiKeys: keys}
}

// Enabled reports whether any key is configured.
func (a *APIKeyAuth) Enabled() bool {
	return len(a.apiKeys) > 0
}

// Handler checks X-API-Key first, then Authorization: Bearer <key>, and aborts with 401 on mismatch.
func (a *APIKeyAuth) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}

		if !a.isValidAPIKey(extractAPIKey(c.Request)) {
			logger.L().Warn("Unauthorized request - invalid or missing API key",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.String("clientIp", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Timestamp: time.Now(),
				Status:    http.StatusUnauthorized,
				Error:     unauthorizedError,
				Message:   "a valid API key is required",
				Path:      c.Request.URL.Path,
			})
			return
		}

		c.Next()
	}
}

func extractAPIKey(r *http.Request) string {
	if apiKey := r.Header.Get(headerAPIKey); apiKey != "" {
		return apiKey
	}

	authHeader := r.Header.Get(headerAuth)
	if strings.HasPrefix(authHeader, bearerPrefix) {
		return strings.TrimPrefix(authHeader, bearerPrefix)
	}

	return ""
}

// isValidAPIKey compares against every key in constant time.
func (a *APIKeyAuth) isValidAPIKey(providedKey string) bool {
	if providedKey == "" {
		return false
	}

	provided := []byte(providedKey)
	valid := false
	for _, key := range a.apiKeys {
		if subtle.ConstantTimeCompare(provided, key) == 1 {
			valid = true
		}
	}
	return valid
}

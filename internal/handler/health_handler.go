// Package handler provides HTTP request handlers for the application.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/events"
)

const serviceName = "youtube-trending-ingestion"

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store     Pinger
	publisher events.Publisher
	cache     Pinger
}

// NewHealthHandler creates a new HealthHandler instance. cache may be nil.
func NewHealthHandler(store Pinger, publisher events.Publisher, cache Pinger) *HealthHandler {
	return &HealthHandler{
		store:     store,
		publisher: publisher,
		cache:     cache,
	}
}

// Root reports that the API is running.
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
		"message": "YouTube trending ingestion API running",
	})
}

// Health is the plain status check kept for existing monitors.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// LivenessProbe checks if the application is running.
func (h *HealthHandler) LivenessProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"time":   time.Now(),
	})
}

// ReadinessProbe checks the store and the event publisher. The cache is reported but never fails readiness.
func (h *HealthHandler) ReadinessProbe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "DOWN",
				"store":  "unhealthy",
				"error":  err.Error(),
				"time":   time.Now(),
			})
			return
		}
	}

	if h.publisher != nil && !h.publisher.IsHealthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"events": "unhealthy",
			"time":   time.Now(),
		})
		return
	}

	cacheStatus := "disabled"
	if h.cache != nil {
		cacheStatus = "healthy"
		if err := h.cache.Ping(ctx); err != nil {
			cacheStatus = "unhealthy"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"store":  "healthy",
		"events": "healthy",
		"cache":  cacheStatus,
		"time":   time.Now(),
	})
}

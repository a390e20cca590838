package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/dashboard"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

// paramError is a rejected query parameter.
type paramError struct {
	Param   string
	Message string
}

func (e *paramError) Error() string {
	return e.Param + ": " + e.Message
}

// handleError maps pipeline errors onto HTTP statuses and writes an ErrorResponse.
func handleError(c *gin.Context, err error) {
	var (
		paramErr    *paramError
		configErr   *models.ConfigurationError
		upstreamErr *models.UpstreamError
		storeErr    *models.StoreError
	)

	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.As(err, &paramErr):
		status = http.StatusBadRequest
		message = err.Error()
		logger.L().Warn("Invalid request parameter", zap.Error(err), zap.String("path", c.Request.URL.Path))
	case errors.Is(err, dashboard.ErrNoData):
		status = http.StatusNotFound
		message = err.Error()
	case errors.As(err, &configErr):
		message = err.Error()
		logger.L().Error("Configuration error", zap.Error(err), zap.String("path", c.Request.URL.Path))
	case errors.As(err, &upstreamErr):
		status = http.StatusBadGateway
		message = err.Error()
		logger.L().Error("Upstream error", zap.Error(err), zap.String("path", c.Request.URL.Path))
	case errors.As(err, &storeErr):
		status = http.StatusServiceUnavailable
		message = "record store unavailable"
		logger.L().Error("Store error", zap.Error(err), zap.String("path", c.Request.URL.Path))
	default:
		logger.L().Error("Unexpected error", zap.Error(err), zap.String("path", c.Request.URL.Path))
	}

	c.JSON(status, models.ErrorResponse{
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}

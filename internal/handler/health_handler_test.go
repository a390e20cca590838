package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/events"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type unhealthyPublisher struct{ events.NoopPublisher }

func (unhealthyPublisher) IsHealthy() bool { return false }

var _ events.Publisher = unhealthyPublisher{}

func runProbe(t *testing.T, fn gin.HandlerFunc, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, path, nil)

	fn(c)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHealthHandler_LivenessProbe(t *testing.T) {
	h := NewHealthHandler(nil, nil, nil)

	w, body := runProbe(t, h.LivenessProbe, "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "UP", body["status"])
}

func TestHealthHandler_RootAndHealth(t *testing.T) {
	h := NewHealthHandler(nil, nil, nil)

	w, body := runProbe(t, h.Root, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, serviceName, body["service"])

	w, body = runProbe(t, h.Health, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestHealthHandler_ReadinessProbe(t *testing.T) {
	tests := []struct {
		name       string
		store      Pinger
		publisher  events.Publisher
		cache      Pinger
		wantStatus int
		wantKey    string
		wantValue  string
	}{
		{
			name:       "all healthy",
			store:      fakePinger{},
			publisher:  events.NoopPublisher{},
			wantStatus: http.StatusOK,
			wantKey:    "cache",
			wantValue:  "disabled",
		},
		{
			name:       "store down",
			store:      fakePinger{err: &models.StoreError{Op: "ping", Cause: errors.New("refused")}},
			publisher:  events.NoopPublisher{},
			wantStatus: http.StatusServiceUnavailable,
			wantKey:    "store",
			wantValue:  "unhealthy",
		},
		{
			name:       "publisher down",
			store:      fakePinger{},
			publisher:  unhealthyPublisher{},
			wantStatus: http.StatusServiceUnavailable,
			wantKey:    "events",
			wantValue:  "unhealthy",
		},
		{
			name:       "cache down stays ready",
			store:      fakePinger{},
			publisher:  events.NoopPublisher{},
			cache:      fakePinger{err: errors.New("redis down")},
			wantStatus: http.StatusOK,
			wantKey:    "cache",
			wantValue:  "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.store, tt.publisher, tt.cache)

			w, body := runProbe(t, h.ReadinessProbe, "/health/ready")
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantValue, body[tt.wantKey])
		})
	}
}

package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/dashboard"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/events"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/handler"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/middleware"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/store"
)

type stubIngester struct{}

func (stubIngester) RunJob(_ context.Context, region string, _ int) (*models.JobResult, error) {
	return &models.JobResult{Region: region}, nil
}

func (stubIngester) RunBatch(_ context.Context, regions []string, _ int) *models.BatchResult {
	b := &models.BatchResult{ID: uuid.New()}
	for _, r := range regions {
		b.Outcomes = append(b.Outcomes, models.RegionOutcome{Region: r, Result: &models.JobResult{Region: r}})
	}
	return b
}

func (stubIngester) EnsureIndexes(context.Context) error { return nil }

func setup(t *testing.T, keys []string, origins []string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	return Setup(Handlers{
		Health:    handler.NewHealthHandler(st, events.NoopPublisher{}, nil),
		Jobs:      handler.NewJobsHandler(stubIngester{}, nil),
		Dashboard: handler.NewDashboardHandler(dashboard.NewService(st, nil)),
		Auth:      middleware.NewAPIKeyAuth(keys),
	}, origins)
}

func do(r *gin.Engine, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetup_Routes(t *testing.T) {
	r := setup(t, nil, nil)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodPost, "/jobs/fetch-trending?region=US", http.StatusOK},
		{http.MethodPost, "/jobs/fetch-multi", http.StatusOK},
		{http.MethodGet, "/api/v1/regions", http.StatusOK},
		{http.MethodGet, "/api/v1/videos?region=US&date=2024-06-01", http.StatusOK},
		{http.MethodGet, "/api/v1/dashboard/summary?region=US&date=2024-06-01", http.StatusNotFound},
		{http.MethodGet, "/jobs/fetch-trending", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(r, tt.method, tt.path, nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSetup_JobRoutesRequireKey(t *testing.T) {
	r := setup(t, []string{"secret"}, nil)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/jobs/fetch-multi", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/jobs/fetch-multi", map[string]string{"X-API-Key": "secret"}).Code)

	// Read routes stay open.
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/regions", nil).Code)
}

func TestSetup_CORS(t *testing.T) {
	t.Run("any origin", func(t *testing.T) {
		r := setup(t, nil, []string{"*"})
		w := do(r, http.MethodGet, "/health", map[string]string{"Origin": "http://dash.example"})
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("listed origins", func(t *testing.T) {
		r := setup(t, nil, []string{"http://dash.example"})

		w := do(r, http.MethodGet, "/health", map[string]string{"Origin": "http://dash.example"})
		assert.Equal(t, "http://dash.example", w.Header().Get("Access-Control-Allow-Origin"))

		w = do(r, http.MethodGet, "/health", map[string]string{"Origin": "http://evil.example"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestSetup_MetricsExposeHTTPCounters(t *testing.T) {
	r := setup(t, nil, nil)
	do(r, http.MethodGet, "/health", nil)

	w := do(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "http_requests_total"))
}

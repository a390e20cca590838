package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/dashboard"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/store"
)

func setupDashboardRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	title, channel, category := "Song", "Label", "10"
	st := store.NewMemoryStore()
	_, err := st.UpsertRecords(context.Background(), []models.TrendingRecord{{
		VideoID:      "vid1",
		Title:        &title,
		ChannelTitle: &channel,
		CategoryID:   &category,
		Views:        100,
		Likes:        10,
		RegionCode:   "US",
		CapturedAt:   "2024-06-01T00:00:00.000000Z",
	}})
	require.NoError(t, err)

	h := NewDashboardHandler(dashboard.NewService(st, nil))
	r := gin.New()
	r.GET("/api/v1/regions", h.Regions)
	r.GET("/api/v1/videos", h.Videos)
	r.GET("/api/v1/dashboard/summary", h.Summary)
	return r
}

func get(r *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestDashboardHandler_Regions(t *testing.T) {
	w := get(setupDashboardRouter(t), "/api/v1/regions")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"regions":["US"]}`, w.Body.String())
}

func TestDashboardHandler_Videos(t *testing.T) {
	r := setupDashboardRouter(t)

	w := get(r, "/api/v1/videos?region=US&date=2024-06-01&limit=100")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count  int                     `json:"count"`
		Videos []models.TrendingRecord `json:"videos"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "vid1::2024-06-01::US", body.Videos[0].DocKey)

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/videos?date=06/01/2024").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/videos?limit=lots").Code)
}

func TestDashboardHandler_Summary(t *testing.T) {
	r := setupDashboardRouter(t)

	w := get(r, "/api/v1/dashboard/summary?region=US&date=2024-06-01")
	require.Equal(t, http.StatusOK, w.Code)

	var got dashboard.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Song", got.KPIs.TopVideo)
	assert.Equal(t, "Music", got.KPIs.TopCategory)
	assert.InDelta(t, 10.0, got.KPIs.AvgEngagementPct, 1e-9)

	w = get(r, "/api/v1/dashboard/summary?region=US&date=2023-01-01")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Message, "no data")
}

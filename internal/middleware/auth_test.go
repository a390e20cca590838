package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(auth *APIKeyAuth) *gin.Engine {
	r := gin.New()
	r.POST("/jobs/fetch-trending", auth.Handler(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func TestNewAPIKeyAuth(t *testing.T) {
	t.Parallel()

	t.Run("keeps configured keys", func(t *testing.T) {
		t.Parallel()

		auth := NewAPIKeyAuth([]string{"key1", "key2", "key3"})
		require.NotNil(t, auth)
		assert.Len(t, auth.apiKeys, 3)
		assert.True(t, auth.Enabled())
	})

	t.Run("filters out empty and duplicate keys", func(t *testing.T) {
		t.Parallel()

		auth := NewAPIKeyAuth([]string{"key1", "", "key2", "", "key1"})
		assert.Len(t, auth.apiKeys, 2)
	})

	t.Run("no keys disables the guard", func(t *testing.T) {
		t.Parallel()

		auth := NewAPIKeyAuth(nil)
		assert.False(t, auth.Enabled())
	})
}

func TestAPIKeyAuth_Handler_Success(t *testing.T) {
	t.Parallel()

	auth := NewAPIKeyAuth([]string{"valid-key-123", "another-key"})
	router := newTestRouter(auth)

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "X-API-Key header", headers: map[string]string{"X-API-Key": "valid-key-123"}},
		{name: "Bearer token", headers: map[string]string{"Authorization": "Bearer another-key"}},
		{name: "X-API-Key wins over a bad bearer", headers: map[string]string{"X-API-Key": "valid-key-123", "Authorization": "Bearer nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/jobs/fetch-trending", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestAPIKeyAuth_Handler_Unauthorized(t *testing.T) {
	t.Parallel()

	auth := NewAPIKeyAuth([]string{"valid-key-123"})
	router := newTestRouter(auth)

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "no credentials", headers: nil},
		{name: "wrong key", headers: map[string]string{"X-API-Key": "wrong"}},
		{name: "wrong bearer", headers: map[string]string{"Authorization": "Bearer wrong"}},
		{name: "basic scheme", headers: map[string]string{"Authorization": "Basic valid-key-123"}},
		{name: "bearer without space", headers: map[string]string{"Authorization": "Bearervalid-key-123"}},
		{name: "key prefix only", headers: map[string]string{"X-API-Key": "valid-key"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/jobs/fetch-trending", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, unauthorizedError, body.Error)
			assert.Equal(t, http.StatusUnauthorized, body.Status)
			assert.Equal(t, "/jobs/fetch-trending", body.Path)
		})
	}
}

func TestAPIKeyAuth_Handler_NoKeysConfigured(t *testing.T) {
	t.Parallel()

	router := newTestRouter(NewAPIKeyAuth([]string{""}))

	req := httptest.NewRequest(http.MethodPost, "/jobs/fetch-trending", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExtractAPIKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "x-api-key", headers: map[string]string{"X-API-Key": "abc"}, want: "abc"},
		{name: "bearer", headers: map[string]string{"Authorization": "Bearer xyz"}, want: "xyz"},
		{name: "both prefers x-api-key", headers: map[string]string{"X-API-Key": "abc", "Authorization": "Bearer xyz"}, want: "abc"},
		{name: "other scheme", headers: map[string]string{"Authorization": "Token xyz"}, want: ""},
		{name: "none", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractAPIKey(req))
		})
	}
}

func TestAPIKeyAuth_IsValidAPIKey(t *testing.T) {
	t.Parallel()

	auth := NewAPIKeyAuth([]string{"key-one", "key-two"})

	tests := []struct {
		key  string
		want bool
	}{
		{"key-one", true},
		{"key-two", true},
		{"key-three", false},
		{"KEY-ONE", false},
		{"key-one ", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, auth.isValidAPIKey(tt.key), "key %q", tt.key)
	}
}

package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/dashboard"
)

// DashboardHandler serves the read-side API.
type DashboardHandler struct {
	svc *dashboard.Service
}

func NewDashboardHandler(svc *dashboard.Service) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Regions handles GET /api/v1/regions.
func (h *DashboardHandler) Regions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"regions": h.svc.Regions(c.Request.Context())})
}

// Videos handles GET /api/v1/videos?region=US&date=2024-06-01&limit=500.
func (h *DashboardHandler) Videos(c *gin.Context) {
	q, err := dashboardQuery(c)
	if err != nil {
		handleError(c, err)
		return
	}

	records, err := h.svc.Records(c.Request.Context(), q.Region, q.Date, q.Limit)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(records),
		"videos": records,
	})
}

// Summary handles GET /api/v1/dashboard/summary?region=US&date=2024-06-01&channel=...&limit=500.
func (h *DashboardHandler) Summary(c *gin.Context) {
	q, err := dashboardQuery(c)
	if err != nil {
		handleError(c, err)
		return
	}

	summary, err := h.svc.Summary(c.Request.Context(), q)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func dashboardQuery(c *gin.Context) (dashboard.Query, error) {
	q := dashboard.Query{
		Region:  c.Query("region"),
		Date:    c.Query("date"),
		Channel: c.Query("channel"),
	}

	if q.Date != "" {
		if _, err := time.Parse("2006-01-02", q.Date); err != nil {
			return q, &paramError{Param: "date", Message: "must be YYYY-MM-DD"}
		}
	}

	if raw, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, &paramError{Param: "limit", Message: "must be an integer"}
		}
		q.Limit = n
	}

	return q, nil
}

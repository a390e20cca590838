package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/service"
)

const (
	defaultJobRegion     = "AU"
	defaultJobMaxResults = 20
	defaultBatchMax      = 50
	maxResultsUpper      = 50
)

// DefaultBatchRegions is used by fetch-multi when no regions are given.
var DefaultBatchRegions = []string{"AU", "IN", "US", "CA", "GB"}

// JobsHandler exposes the ingestion jobs over HTTP.
type JobsHandler struct {
	ingester       service.Ingester
	defaultRegions []string
}

// NewJobsHandler creates a JobsHandler. An empty defaultRegions falls back to DefaultBatchRegions.
func NewJobsHandler(ingester service.Ingester, defaultRegions []string) *JobsHandler {
	if len(defaultRegions) == 0 {
		defaultRegions = DefaultBatchRegions
	}
	return &JobsHandler{
		ingester:       ingester,
		defaultRegions: defaultRegions,
	}
}

// FetchTrending handles POST /jobs/fetch-trending?region=AU&max_results=20.
func (h *JobsHandler) FetchTrending(c *gin.Context) {
	region := c.DefaultQuery("region", defaultJobRegion)
	if strings.TrimSpace(region) == "" {
		handleError(c, &paramError{Param: "region", Message: "must not be empty"})
		return
	}

	maxResults, err := parseMaxResults(c, defaultJobMaxResults)
	if err != nil {
		handleError(c, err)
		return
	}

	result, err := h.ingester.RunJob(c.Request.Context(), region, maxResults)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// FetchMulti handles POST /jobs/fetch-multi?regions=AU&regions=IN&max_results=50.
// Regions may also be comma separated. Failed regions are listed under failures.
func (h *JobsHandler) FetchMulti(c *gin.Context) {
	regions := regionsParam(c.QueryArray("regions"))
	if len(regions) == 0 {
		regions = h.defaultRegions
	}

	maxResults, err := parseMaxResults(c, defaultBatchMax)
	if err != nil {
		handleError(c, err)
		return
	}

	batch := h.ingester.RunBatch(c.Request.Context(), regions, maxResults)

	failures := batch.Failures()
	if failures == nil {
		failures = []models.RegionFailure{}
	}

	c.JSON(http.StatusOK, models.BatchResponseDTO{
		BatchID:  batch.ID,
		Jobs:     batch.Jobs(),
		Failures: failures,
	})
}

func parseMaxResults(c *gin.Context, def int) (int, error) {
	raw, ok := c.GetQuery("max_results")
	if !ok {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &paramError{Param: "max_results", Message: "must be an integer"}
	}
	if n < 1 || n > maxResultsUpper {
		return 0, &paramError{Param: "max_results", Message: "must be between 1 and 50"}
	}
	return n, nil
}

func regionsParam(values []string) []string {
	var regions []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				regions = append(regions, trimmed)
			}
		}
	}
	return regions
}

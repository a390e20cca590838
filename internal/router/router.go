// Package router assembles the gin engine.
package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/handler"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/middleware"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Health    *handler.HealthHandler
	Jobs      *handler.JobsHandler
	Dashboard *handler.DashboardHandler
	Auth      *middleware.APIKeyAuth
}

// Setup builds the engine. corsOrigins of ["*"] or empty allows any origin.
func Setup(h Handlers, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(corsOrigins) == 0 || (len(corsOrigins) == 1 && corsOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = corsOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/", h.Health.Root)
	r.GET("/health", h.Health.Health)
	r.GET("/health/live", h.Health.LivenessProbe)
	r.GET("/health/ready", h.Health.ReadinessProbe)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jobs := r.Group("/jobs", h.Auth.Handler())
	jobs.POST("/fetch-trending", h.Jobs.FetchTrending)
	jobs.POST("/fetch-multi", h.Jobs.FetchMulti)

	api := r.Group("/api/v1")
	api.GET("/regions", h.Dashboard.Regions)
	api.GET("/videos", h.Dashboard.Videos)
	api.GET("/dashboard/summary", h.Dashboard.Summary)

	return r
}

package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pagebrief/api/handler"
	"github.com/use-agent/pagebrief/api/middleware"
	"github.com/use-agent/pagebrief/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if keys configured) → RateLimit
//
// The status and health endpoints are intentionally outside auth so
// monitoring probes always work.
func NewRouter(s handler.Summarizer, stats handler.StatsFunc, limiters *middleware.Limiters, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/", handler.Status(startTime))

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(cfg.Fetch.Mode, stats, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	protected.Use(middleware.RateLimit(limiters))

	protected.POST("/brief", handler.Brief(s))

	return r
}

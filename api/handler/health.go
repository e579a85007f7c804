package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pagebrief/config"
	"github.com/use-agent/pagebrief/models"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// StatsFunc reports the browser handle state. Nil when the fetch mode never
// uses the browser.
type StatsFunc func() models.BrowserStats

// Status returns a handler for GET /, the liveness probe.
func Status(startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.StatusResponse{
			Status:        "ok",
			Message:       "Page brief service is running!",
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when the mode is browser-only and the last browser was
// lost; the next brief request relaunches it.
func Health(mode config.FetchMode, stats StatsFunc, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var browser models.BrowserStats
		if stats != nil {
			browser = stats()
		}

		status := "healthy"
		if mode == config.ModeBrowser && browser.Launches > 0 && !browser.Connected {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			FetchMode: string(mode),
			Browser:   browser,
			Version:   Version,
		})
	}
}

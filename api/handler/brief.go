package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pagebrief/models"
)

// Summarizer builds a page brief. *pipeline.Pipeline satisfies it.
type Summarizer interface {
	Summarize(ctx context.Context, url string) ([]string, error)
}

// Brief returns a handler for POST /api/v1/brief.
//
//  1. Parse the request body.
//  2. Summarizer.Summarize → lines.
//  3. Respond with lines, the joined text and timing.
func Brief(s Summarizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.BriefRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.BriefResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		// ── 2. Summarize ────────────────────────────────────────────
		lines, err := s.Summarize(c.Request.Context(), req.URL)
		timing := models.TimingInfo{TotalMs: time.Since(start).Milliseconds()}
		if err != nil {
			respondError(c, err, timing)
			return
		}

		// ── 3. Respond ──────────────────────────────────────────────
		c.JSON(http.StatusOK, models.BriefResponse{
			Success: true,
			Lines:   lines,
			Text:    strings.Join(lines, "\n"),
			Timing:  timing,
		})
	}
}

// respondError maps an error to the correct HTTP status code and writes a
// structured JSON error response. The status follows the innermost error
// kind; the message is the one a user should see.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	code := models.CodeOf(err)
	c.JSON(mapErrorToStatus(code), models.BriefResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    code,
			Message: models.UserMessage(err),
		},
		Timing: timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(code string) int {
	switch code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeServiceFetch, models.ErrCodeNavigation, models.ErrCodeBrowserCrash:
		return http.StatusBadGateway // 502
	case models.ErrCodeExtraction:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}

// Package pipeline wires retrieval and extraction into the single operation
// every surface calls: URL in, page brief out.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/pagebrief/cleaner"
	"github.com/use-agent/pagebrief/engine"
	"github.com/use-agent/pagebrief/models"
)

// Pipeline is safe for concurrent use; each call is independent.
type Pipeline struct {
	dispatcher *engine.Dispatcher
	cleaner    *cleaner.Cleaner
}

// New creates a Pipeline.
func New(dispatcher *engine.Dispatcher, c *cleaner.Cleaner) *Pipeline {
	return &Pipeline{dispatcher: dispatcher, cleaner: c}
}

// Summarize retrieves rawURL and returns its brief as ordered lines.
//
// An empty URL is an INVALID_INPUT error and nothing is fetched. Every
// other failure is returned as a SCRAPE_FAILED error reading
// "Scraping failed: <cause>", wrapping the typed cause so callers can still
// classify it with models.CodeOf.
func (p *Pipeline) Summarize(ctx context.Context, rawURL string) ([]string, error) {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "Please provide a URL to scrape.", nil)
	}

	start := time.Now()
	result, err := p.dispatcher.Dispatch(ctx, &engine.FetchRequest{URL: target})
	if err != nil {
		slog.Warn("retrieval failed", "url", target, "error", err)
		return nil, scrapeFailed(err)
	}

	lines, err := p.cleaner.Summarize(result.HTML, target)
	if err != nil {
		slog.Warn("extraction failed", "url", target, "engine", result.EngineName, "error", err)
		return nil, scrapeFailed(err)
	}

	slog.Info("brief built",
		"url", target,
		"engine", result.EngineName,
		"lines", len(lines),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return lines, nil
}

func scrapeFailed(cause error) error {
	return models.NewScrapeError(models.ErrCodeScrape, "Scraping failed: "+models.UserMessage(cause), cause)
}

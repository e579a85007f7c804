package engine

import (
	"context"

	"github.com/use-agent/pagebrief/models"
)

// RodFetchFunc is the callback that runs a browser fetch. It is injected
// from main.go (scraper.Handle.Fetch) so engine/ never imports scraper/.
type RodFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine is the browser-based engine. It delegates to the shared browser
// handle via a callback function.
type RodEngine struct {
	fetchFunc RodFetchFunc
}

// NewRodEngine creates a RodEngine around fetchFunc.
func NewRodEngine(fetchFunc RodFetchFunc) *RodEngine {
	return &RodEngine{fetchFunc: fetchFunc}
}

func (e *RodEngine) Name() string { return "browser" }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.fetchFunc == nil {
		return nil, models.NewScrapeError(models.ErrCodeConfig, "browser fetcher is not configured", nil)
	}

	result, err := e.fetchFunc(ctx, req)
	if err != nil {
		return nil, err
	}

	result.EngineName = e.Name()
	return result, nil
}

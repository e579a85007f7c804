package engine

import (
	"context"
	"log/slog"

	"github.com/use-agent/pagebrief/config"
	"github.com/use-agent/pagebrief/models"
)

// Outcome is the typed result of one engine attempt.
type Outcome struct {
	Engine string
	Result *FetchResult
	Err    error
}

// OK reports whether the attempt produced HTML.
func (o Outcome) OK() bool { return o.Err == nil && o.Result != nil }

// Dispatcher tries its engines in order and returns the first success.
// Each engine gets exactly one attempt; there are no retries.
type Dispatcher struct {
	engines []Engine
}

// NewDispatcher creates a Dispatcher that tries engines in the given order.
func NewDispatcher(engines ...Engine) *Dispatcher {
	return &Dispatcher{engines: engines}
}

// Plan returns the ordered attempt list for a fetch mode.
//
//	service: [service]
//	browser: [browser]
//	hybrid:  [browser, service], or [service, browser] with service-first
//
// An unknown mode yields an empty plan, which Dispatch reports as a
// configuration error.
func Plan(fetch config.FetchConfig, service, browser Engine) []Engine {
	switch fetch.Mode {
	case config.ModeService:
		return []Engine{service}
	case config.ModeBrowser:
		return []Engine{browser}
	case config.ModeHybrid:
		if fetch.HybridOrder == config.OrderServiceFirst {
			return []Engine{service, browser}
		}
		return []Engine{browser, service}
	default:
		return nil
	}
}

// Names returns the engine names in attempt order.
func (d *Dispatcher) Names() []string {
	names := make([]string, len(d.engines))
	for i, eng := range d.engines {
		names[i] = eng.Name()
	}
	return names
}

// Dispatch runs the attempt list. On failure it falls back to the next
// engine; when every engine fails, the last failure is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeConfig,
			"No fetch mode enabled. Set SCRAPER_FETCH_MODE to service, browser, or hybrid.", nil)
	}

	var last Outcome
	for i, eng := range d.engines {
		last = attempt(ctx, eng, req)
		if last.OK() {
			if i > 0 {
				slog.Info("fallback engine succeeded", "engine", last.Engine, "url", req.URL)
			}
			return last.Result, nil
		}

		if i == len(d.engines)-1 {
			break
		}
		if ctx.Err() != nil {
			// The caller gave up; a fallback attempt could not finish either.
			break
		}
		slog.Warn("engine failed, falling back",
			"engine", last.Engine,
			"next", d.engines[i+1].Name(),
			"url", req.URL,
			"error", last.Err,
		)
	}

	slog.Debug("all engines failed", "url", req.URL, "error", last.Err)
	return nil, last.Err
}

func attempt(ctx context.Context, eng Engine, req *FetchRequest) Outcome {
	slog.Debug("engine starting", "engine", eng.Name(), "url", req.URL)
	result, err := eng.Fetch(ctx, req)
	if err == nil && result == nil {
		err = models.NewScrapeError(models.ErrCodeInternal, eng.Name()+" engine returned no result", nil)
	}
	return Outcome{Engine: eng.Name(), Result: result, Err: err}
}

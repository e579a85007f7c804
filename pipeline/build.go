package pipeline

import (
	"github.com/use-agent/pagebrief/cleaner"
	"github.com/use-agent/pagebrief/config"
	"github.com/use-agent/pagebrief/engine"
	"github.com/use-agent/pagebrief/scraper"
)

// FromConfig validates cfg and assembles the engines, dispatcher and
// cleaner into a Pipeline. The browser handle is nil when the fetch mode
// never uses the browser; otherwise the caller must Close it on shutdown.
// No browser is launched here.
func FromConfig(cfg *config.Config, opts ...scraper.Option) (*Pipeline, *scraper.Handle, error) {
	handle := scraper.NewHandle(cfg.Browser, cfg.Fetch, opts...)
	if err := cfg.Validate(handle.ResolveBin); err != nil {
		return nil, nil, err
	}

	service := engine.NewServiceEngine(cfg.Service, cfg.Fetch)

	browser := engine.NewRodEngine(nil)
	if cfg.Fetch.Mode.UsesBrowser() {
		browser = engine.NewRodEngine(handle.Fetch)
	} else {
		handle = nil
	}

	dispatcher := engine.NewDispatcher(engine.Plan(cfg.Fetch, service, browser)...)
	return New(dispatcher, cleaner.NewCleaner(cfg.Service.RenderJS)), handle, nil
}

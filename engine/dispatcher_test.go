package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/use-agent/pagebrief/config"
	"github.com/use-agent/pagebrief/models"
)

type fakeEngine struct {
	name  string
	html  string
	err   error
	calls atomic.Int32
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &FetchResult{HTML: f.html, EngineName: f.name}, nil
}

func hybrid(service, browser Engine) *Dispatcher {
	return NewDispatcher(Plan(config.FetchConfig{Mode: config.ModeHybrid, HybridOrder: config.OrderBrowserFirst}, service, browser)...)
}

func TestDispatch_HybridFallsBackToService(t *testing.T) {
	browser := &fakeEngine{name: "browser", err: models.NewScrapeError(models.ErrCodeTimeout, "navigation timed out", nil)}
	service := &fakeEngine{name: "service", html: "<html>service</html>"}

	res, err := hybrid(service, browser).Dispatch(context.Background(), &FetchRequest{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.HTML != "<html>service</html>" {
		t.Errorf("HTML = %q, want the service result", res.HTML)
	}
	if browser.calls.Load() != 1 || service.calls.Load() != 1 {
		t.Errorf("calls browser=%d service=%d, want 1/1", browser.calls.Load(), service.calls.Load())
	}
}

func TestDispatch_HybridBrowserSuccessSkipsService(t *testing.T) {
	browser := &fakeEngine{name: "browser", html: "<html>browser</html>"}
	service := &fakeEngine{name: "service", html: "<html>service</html>"}

	res, err := hybrid(service, browser).Dispatch(context.Background(), &FetchRequest{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.HTML != "<html>browser</html>" {
		t.Errorf("HTML = %q, want the browser result", res.HTML)
	}
	if service.calls.Load() != 0 {
		t.Error("service was called although the browser succeeded")
	}
}

func TestDispatch_HybridBothFailSurfacesServiceError(t *testing.T) {
	browserErr := models.NewScrapeError(models.ErrCodeNavigation, "browser broke", nil)
	serviceErr := models.NewScrapeError(models.ErrCodeServiceFetch, "service broke", nil)
	browser := &fakeEngine{name: "browser", err: browserErr}
	service := &fakeEngine{name: "service", err: serviceErr}

	_, err := hybrid(service, browser).Dispatch(context.Background(), &FetchRequest{URL: "https://example.com"})
	if !errors.Is(err, serviceErr) {
		t.Errorf("got %v, want the service error", err)
	}
	if browser.calls.Load() != 1 || service.calls.Load() != 1 {
		t.Errorf("calls browser=%d service=%d, want exactly one attempt each", browser.calls.Load(), service.calls.Load())
	}
}

func TestDispatch_SingleModesPropagateDirectly(t *testing.T) {
	wantErr := errors.New("boom")
	for _, mode := range []config.FetchMode{config.ModeService, config.ModeBrowser} {
		browser := &fakeEngine{name: "browser", err: wantErr}
		service := &fakeEngine{name: "service", err: wantErr}
		d := NewDispatcher(Plan(config.FetchConfig{Mode: mode}, service, browser)...)

		_, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://example.com"})
		if !errors.Is(err, wantErr) {
			t.Errorf("%s: got %v, want %v", mode, err, wantErr)
		}
		if got := browser.calls.Load() + service.calls.Load(); got != 1 {
			t.Errorf("%s: %d attempts, want 1", mode, got)
		}
		if mode == config.ModeService && browser.calls.Load() != 0 {
			t.Error("service mode touched the browser")
		}
		if mode == config.ModeBrowser && service.calls.Load() != 0 {
			t.Error("browser mode touched the service")
		}
	}
}

func TestDispatch_EmptyPlanIsConfigError(t *testing.T) {
	d := NewDispatcher(Plan(config.FetchConfig{Mode: "bogus"}, &fakeEngine{name: "service"}, &fakeEngine{name: "browser"})...)
	_, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://example.com"})
	if models.CodeOf(err) != models.ErrCodeConfig {
		t.Errorf("got %v, want CONFIG_ERROR", err)
	}
}

func TestDispatch_CanceledContextStopsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	browser := &fakeEngine{name: "browser", err: context.Canceled}
	service := &fakeEngine{name: "service", html: "x"}

	_, err := hybrid(service, browser).Dispatch(ctx, &FetchRequest{URL: "https://example.com"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if service.calls.Load() != 0 {
		t.Error("fallback ran after the caller canceled")
	}
}

func TestPlan(t *testing.T) {
	service := &fakeEngine{name: "service"}
	browser := &fakeEngine{name: "browser"}
	tests := []struct {
		fetch config.FetchConfig
		want  []string
	}{
		{config.FetchConfig{Mode: config.ModeService}, []string{"service"}},
		{config.FetchConfig{Mode: config.ModeBrowser}, []string{"browser"}},
		{config.FetchConfig{Mode: config.ModeHybrid, HybridOrder: config.OrderBrowserFirst}, []string{"browser", "service"}},
		{config.FetchConfig{Mode: config.ModeHybrid, HybridOrder: config.OrderServiceFirst}, []string{"service", "browser"}},
		{config.FetchConfig{Mode: config.ModeHybrid}, []string{"browser", "service"}},
	}
	for _, tt := range tests {
		got := NewDispatcher(Plan(tt.fetch, service, browser)...).Names()
		if len(got) != len(tt.want) {
			t.Errorf("%+v: got %v, want %v", tt.fetch, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%+v: got %v, want %v", tt.fetch, got, tt.want)
				break
			}
		}
	}
}

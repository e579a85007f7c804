package scraper

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/pagebrief/config"
	"github.com/use-agent/pagebrief/engine"
	"github.com/use-agent/pagebrief/models"
	"golang.org/x/sync/singleflight"
)

// htmlReadBudget bounds reading the rendered document after navigation.
const htmlReadBudget = 10 * time.Second

// ErrHandleClosed is returned by Fetch after Close.
var ErrHandleClosed = errors.New("browser handle closed")

// Option customises a Handle.
type Option func(*Handle)

// WithLauncher replaces the Rod launcher.
func WithLauncher(l Launcher) Option {
	return func(h *Handle) { h.launch = l }
}

// WithBinResolver replaces ResolveBin.
func WithBinResolver(r config.BinResolver) Option {
	return func(h *Handle) { h.resolveBin = r }
}

// Handle owns the shared browser. The browser is launched on first use;
// concurrent first requests share one launch. When the browser disconnects
// the handle forgets it and the next request launches a fresh one.
// It is safe for concurrent use.
type Handle struct {
	cfg        config.BrowserConfig
	userAgent  string
	timeout    time.Duration
	wait       WaitStrategy
	launch     Launcher
	resolveBin config.BinResolver

	group singleflight.Group

	mu      sync.Mutex
	browser Browser
	closed  bool

	launches    atomic.Int32
	activePages atomic.Int32
}

// NewHandle creates a Handle. No browser is started until the first Fetch.
func NewHandle(cfg config.BrowserConfig, fetch config.FetchConfig, opts ...Option) *Handle {
	userAgent := fetch.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	timeout := fetch.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	h := &Handle{
		cfg:        cfg,
		userAgent:  userAgent,
		timeout:    timeout,
		wait:       mustWaitStrategy(cfg.WaitUntil),
		launch:     RodLauncher(cfg),
		resolveBin: ResolveBin,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Stats returns a snapshot of the handle's state.
func (h *Handle) Stats() models.BrowserStats {
	h.mu.Lock()
	connected := h.browser != nil
	h.mu.Unlock()
	return models.BrowserStats{
		Enabled:     true,
		Connected:   connected,
		Launches:    int(h.launches.Load()),
		ActivePages: int(h.activePages.Load()),
	}
}

// Close shuts the browser down. Later fetches fail with ErrHandleClosed.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (h *Handle) Close() error {
	h.mu.Lock()
	b := h.browser
	h.browser = nil
	h.closed = true
	h.mu.Unlock()

	if b == nil {
		return nil
	}
	slog.Info("closing browser")
	return b.Close()
}

// current returns the live browser, launching one if needed.
func (h *Handle) current(ctx context.Context) (Browser, error) {
	h.mu.Lock()
	b, closed := h.browser, h.closed
	h.mu.Unlock()
	if closed {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, ErrHandleClosed.Error(), ErrHandleClosed)
	}
	if b != nil {
		return b, nil
	}

	ch := h.group.DoChan("browser", func() (any, error) {
		return h.start()
	})
	select {
	case <-ctx.Done():
		return nil, categorizeError(ctx.Err(), "timed out waiting for browser launch")
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(Browser), nil
	}
}

// start runs inside the single-flight group. It is detached from any one
// caller's context so a caller giving up does not abort a launch others
// are waiting on; the launch is bounded by the fetch timeout instead.
func (h *Handle) start() (Browser, error) {
	h.mu.Lock()
	if h.browser != nil {
		b := h.browser
		h.mu.Unlock()
		return b, nil
	}
	h.mu.Unlock()

	bin, err := h.resolveBin(h.cfg.Bin)
	if err != nil {
		var se *models.ScrapeError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, models.NewScrapeError(models.ErrCodeConfig, "Unable to locate a Chromium executable.", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	b, err := h.launch(ctx, bin)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = b.Close()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, ErrHandleClosed.Error(), ErrHandleClosed)
	}
	h.browser = b
	h.mu.Unlock()
	h.launches.Add(1)

	go func() {
		<-b.Disconnected()
		if h.forget(b) {
			slog.Warn("browser disconnected, next request relaunches")
		}
	}()
	return b, nil
}

// forget drops b if it is still the current browser.
func (h *Handle) forget(b Browser) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browser != b {
		return false
	}
	h.browser = nil
	return true
}

// discard forgets b and shuts it down so at most one instance stays alive.
func (h *Handle) discard(b Browser) {
	if h.forget(b) {
		go func() {
			if err := b.Close(); err != nil {
				slog.Debug("closing discarded browser failed", "error", err)
			}
		}()
	}
}

// Fetch renders req.URL in a new tab and returns the document HTML.
// It matches engine.RodFetchFunc.
//
// Lifecycle:
//
//  1. Timeout guard   – navigation plus waiting is bounded by the timeout
//  2. Browser         – reuse the live instance or launch one
//  3. Open page       – a failure here means the instance is unusable
//  4. DEFER: close    – the tab is closed on every path
//  5. Prepare         – UA, Accept-Language, stealth (before navigation!)
//  6. Navigate + wait – per the configured wait strategy
//  7. Settle delay    – optional fixed pause for late scripts
//  8. Extract         – page HTML
func (h *Handle) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	timeout := h.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout+h.cfg.SettleDelay+htmlReadBudget)
	defer cancel()

	// ── 2. Browser ────────────────────────────────────────────────────
	b, err := h.current(ctx)
	if err != nil {
		return nil, err
	}

	// ── 3. Open page ──────────────────────────────────────────────────
	page, err := b.NewPage()
	if err != nil {
		h.discard(b)
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open browser page", err)
	}
	h.activePages.Add(1)
	defer h.activePages.Add(-1)

	// ── 4. CRITICAL DEFER: close the tab ──────────────────────────────
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Warn("cleanup: failed to close page", "error", closeErr)
		}
	}()

	// ── 5. Prepare ────────────────────────────────────────────────────
	if err := page.Prepare(h.userAgent, h.cfg.AcceptLanguage, h.cfg.Stealth); err != nil {
		return nil, categorizeError(err, "failed to prepare browser page")
	}

	// ── 6. Navigate + wait ────────────────────────────────────────────
	navCtx, navCancel := context.WithTimeout(ctx, timeout)
	err = page.Navigate(navCtx, req.URL, h.wait)
	navCancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewScrapeError(models.ErrCodeTimeout,
				"Navigation timeout of "+formatMs(timeout)+" ms exceeded", err)
		}
		return nil, categorizeError(err, "navigation to target URL failed: "+err.Error())
	}

	// ── 7. Settle delay ───────────────────────────────────────────────
	if h.cfg.SettleDelay > 0 {
		t := time.NewTimer(h.cfg.SettleDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, categorizeError(ctx.Err(), "request canceled")
		}
	}

	// ── 8. Extract rendered HTML ──────────────────────────────────────
	rawHTML, err := page.HTML(ctx)
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	return &engine.FetchResult{
		HTML:       rawHTML,
		EngineName: "browser",
	}, nil
}

var _ engine.RodFetchFunc = (*Handle)(nil).Fetch

// categorizeError wraps raw errors into typed ScrapeErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

func formatMs(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}

// ResolveBin resolves the executable the way this handle will at launch.
func (h *Handle) ResolveBin(override string) (string, error) {
	return h.resolveBin(override)
}

package scraper

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/pagebrief/config"
	"github.com/use-agent/pagebrief/models"
	"github.com/ysmood/gson"
)

// Browser is a running browser process the Handle can open pages on.
type Browser interface {
	NewPage() (Page, error)
	// Disconnected is closed once the control connection is lost.
	Disconnected() <-chan struct{}
	Close() error
}

// Page is a single tab, used for exactly one fetch.
type Page interface {
	// Prepare sets identity headers and, optionally, stealth evasions.
	// It must run before Navigate.
	Prepare(userAgent, acceptLanguage string, stealth bool) error
	// Navigate loads url and blocks until wait is satisfied or ctx ends.
	Navigate(ctx context.Context, url string, wait WaitStrategy) error
	HTML(ctx context.Context) (string, error)
	// Close must work even after the fetch context has expired.
	Close() error
}

// Launcher starts a browser from the executable at bin.
type Launcher func(ctx context.Context, bin string) (Browser, error)

// ResolveBin finds the browser executable. An explicit override must exist
// on disk; otherwise the usual install locations are searched. Rod would
// otherwise download a browser on first use, which is never wanted here.
func ResolveBin(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", models.NewScrapeError(models.ErrCodeConfig,
				"SCRAPER_BROWSER_BIN does not point to a Chromium executable.", err)
		}
		return override, nil
	}
	if bin, ok := launcher.LookPath(); ok {
		return bin, nil
	}
	return "", models.NewScrapeError(models.ErrCodeConfig,
		"Unable to locate a Chromium executable. Install Chromium or set SCRAPER_BROWSER_BIN.", nil)
}

var _ config.BinResolver = ResolveBin

// RodLauncher returns a Launcher that starts Chromium through Rod with the
// headless and sandbox settings of cfg.
func RodLauncher(cfg config.BrowserConfig) Launcher {
	return func(ctx context.Context, bin string) (Browser, error) {
		l := launcher.New().
			Bin(bin).
			Headless(cfg.Headless).
			NoSandbox(cfg.NoSandbox)

		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("disable-extensions"))
		l.Set(flags.Flag("disable-component-update"))
		l.Set(flags.Flag("no-first-run"))

		// Launch ignores ctx, so race it. A process that comes up after the
		// caller gave up is killed instead of leaking.
		type launched struct {
			controlURL string
			err        error
		}
		ch := make(chan launched, 1)
		go func() {
			u, err := l.Launch()
			ch <- launched{u, err}
		}()

		var controlURL string
		select {
		case <-ctx.Done():
			go func() {
				if r := <-ch; r.err == nil {
					l.Kill()
				}
			}()
			return nil, ctx.Err()
		case r := <-ch:
			if r.err != nil {
				return nil, r.err
			}
			controlURL = r.controlURL
		}

		b := rod.New().ControlURL(controlURL)
		if err := b.Connect(); err != nil {
			l.Kill()
			return nil, err
		}
		slog.Info("browser launched", "bin", bin, "controlURL", controlURL)

		rb := &rodBrowser{browser: b, launcher: l, done: make(chan struct{})}
		go rb.watch()
		return rb, nil
	}
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	done     chan struct{}
}

// watch drains the CDP event stream. The stream ends when the websocket
// drops, which is the only reliable crash signal Rod exposes.
func (b *rodBrowser) watch() {
	for range b.browser.Event() {
	}
	close(b.done)
}

func (b *rodBrowser) NewPage() (Page, error) {
	p, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	return &rodPage{page: p}, nil
}

func (b *rodBrowser) Disconnected() <-chan struct{} { return b.done }

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Prepare(userAgent, acceptLanguage string, useStealth bool) error {
	if useStealth {
		if _, err := p.page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", err,
			)
		}
	}

	if err := p.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      userAgent,
		AcceptLanguage: acceptLanguage,
	}); err != nil {
		return err
	}

	if acceptLanguage == "" {
		return nil
	}
	if err := (proto.NetworkEnable{}).Call(p.page); err != nil {
		return err
	}
	return proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": acceptLanguage}),
	}.Call(p.page)
}

// Navigate registers the wait listener before navigating; a listener set
// up afterwards would miss in-flight requests and report a false idle.
func (p *rodPage) Navigate(ctx context.Context, url string, wait WaitStrategy) error {
	page := p.page.Context(ctx)

	var waitFn func()
	switch wait {
	case WaitNetworkIdle0:
		waitFn = page.WaitRequestIdle(idleWindow, nil, nil, nil)
	case WaitNetworkIdle2:
		waitFn = page.WaitRequestIdle(idleWindow, nil, nil, longLivedTypes)
	case WaitDOMContentLoaded:
		waitFn = page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	}

	if err := page.Navigate(url); err != nil {
		return err
	}

	switch wait {
	case WaitLoad:
		if err := page.WaitLoad(); err != nil {
			return err
		}
	case WaitDOMStable:
		if err := page.WaitDOMStable(domStableWindow, domStableDiff); err != nil {
			return err
		}
	default:
		if waitFn != nil {
			waitFn()
		}
	}
	// The wait helpers return silently when the context ends.
	return ctx.Err()
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

// Close uses the page without the request context so it still succeeds
// after a timeout.
func (p *rodPage) Close() error {
	return p.page.Close()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

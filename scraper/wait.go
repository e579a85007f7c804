package scraper

import (
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// WaitStrategy decides when a navigated page counts as loaded.
type WaitStrategy string

const (
	// WaitNetworkIdle0 waits until no request has been in flight for idleWindow.
	WaitNetworkIdle0 WaitStrategy = "networkidle0"
	// WaitNetworkIdle2 is like WaitNetworkIdle0 but ignores long-lived
	// connections (websockets, event streams, media) that never go idle.
	WaitNetworkIdle2 WaitStrategy = "networkidle2"
	// WaitLoad waits for the window load event.
	WaitLoad WaitStrategy = "load"
	// WaitDOMContentLoaded waits for DOMContentLoaded.
	WaitDOMContentLoaded WaitStrategy = "domcontentloaded"
	// WaitDOMStable waits until the DOM stops changing.
	WaitDOMStable WaitStrategy = "domstable"
)

// DefaultWaitStrategy is used when none, or an unknown one, is configured.
const DefaultWaitStrategy = WaitNetworkIdle2

const (
	idleWindow      = 500 * time.Millisecond
	domStableWindow = 300 * time.Millisecond
	domStableDiff   = 0.1
)

// longLivedTypes never settle and would keep networkidle waits open forever.
var longLivedTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeWebSocket,
	proto.NetworkResourceTypeEventSource,
	proto.NetworkResourceTypeMedia,
}

// ParseWaitStrategy maps a configured name to a WaitStrategy. The bool is
// false when the name is unknown, in which case DefaultWaitStrategy is
// returned.
func ParseWaitStrategy(name string) (WaitStrategy, bool) {
	switch s := WaitStrategy(strings.ToLower(strings.TrimSpace(name))); s {
	case WaitNetworkIdle0, WaitNetworkIdle2, WaitLoad, WaitDOMContentLoaded, WaitDOMStable:
		return s, true
	case "":
		return DefaultWaitStrategy, true
	default:
		return DefaultWaitStrategy, false
	}
}

func mustWaitStrategy(name string) WaitStrategy {
	s, ok := ParseWaitStrategy(name)
	if !ok {
		slog.Warn("unknown browser wait strategy, using default",
			"configured", name,
			"default", string(DefaultWaitStrategy),
		)
	}
	return s
}

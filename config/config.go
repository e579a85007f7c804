package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/pagebrief/models"
)

// DefaultUserAgent is the descriptive UA sent by both fetchers.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36 ScrapperBot/2.0"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Fetch     FetchConfig
	Service   ServiceConfig
	Browser   BrowserConfig
	Bot       BotConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// FetchMode selects which retrieval mechanisms the pipeline may use.
type FetchMode string

const (
	ModeService FetchMode = "service"
	ModeBrowser FetchMode = "browser"
	ModeHybrid  FetchMode = "hybrid"
)

// UsesBrowser reports whether the mode permits browser fetches.
func (m FetchMode) UsesBrowser() bool { return m == ModeBrowser || m == ModeHybrid }

// UsesService reports whether the mode permits service fetches.
func (m FetchMode) UsesService() bool { return m == ModeService || m == ModeHybrid }

// Hybrid attempt orders.
const (
	OrderBrowserFirst = "browser-first"
	OrderServiceFirst = "service-first"
)

// FetchConfig controls retrieval as a whole.
type FetchConfig struct {
	// Mode is service, browser or hybrid.
	// default: service when a service key is set, browser otherwise.
	Mode FetchMode

	// HybridOrder decides which engine hybrid mode tries first.
	HybridOrder string // default: "browser-first"

	// Timeout bounds each individual fetch attempt.
	Timeout time.Duration // default: 60s

	// UserAgent is sent by both the service and browser fetchers.
	UserAgent string
}

// ServiceConfig controls the third-party fetch service.
type ServiceConfig struct {
	BaseURL string // default: "https://api.scraperapi.com"
	APIKey  string

	// RenderJS asks the service to render JavaScript (render=true).
	RenderJS bool

	// CountryCode and DeviceType are forwarded only when set.
	CountryCode string
	DeviceType  string

	// TLSFingerprint set to "chrome" dials the service with a Chrome
	// ClientHello instead of Go's default TLS stack.
	TLSFingerprint string
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Bin overrides the Chromium binary path.
	Bin string

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// Stealth injects anti-bot-detection evasions before navigation.
	Stealth bool // default: false

	// WaitUntil is the post-navigation wait strategy:
	// networkidle0, networkidle2, load, domcontentloaded or domstable.
	WaitUntil string // default: "networkidle2"

	// SettleDelay is an extra pause after the wait strategy completes.
	SettleDelay time.Duration // default: 0

	AcceptLanguage string // default: "en-US,en;q=0.9"
}

// BotConfig controls the Telegram transport.
type BotConfig struct {
	// Token enables the bot when non-empty.
	Token string

	// PerChatRPS and PerChatBurst rate-limit requests per chat.
	PerChatRPS   float64 // default: 0.5
	PerChatBurst int     // default: 2
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication on the brief endpoint.
type AuthConfig struct {
	// APIKeys is the list of valid API keys. Empty means open access.
	APIKeys []string
}

// RateLimitConfig controls per-client rate limiting on the HTTP API.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 1
	Burst             int     // default: 3
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	apiKey := os.Getenv("SCRAPER_API_KEY")
	defaultMode := ModeBrowser
	if apiKey != "" {
		defaultMode = ModeService
	}

	return &Config{
		Server: ServerConfig{
			Host: envOr("PAGEBRIEF_HOST", "0.0.0.0"),
			Port: envIntOr("PORT", 3000),
			Mode: envOr("PAGEBRIEF_MODE", "release"),
		},
		Fetch: FetchConfig{
			Mode:        FetchMode(strings.ToLower(envOr("SCRAPER_FETCH_MODE", string(defaultMode)))),
			HybridOrder: strings.ToLower(envOr("SCRAPER_HYBRID_ORDER", OrderBrowserFirst)),
			Timeout:     envDurationMsOr("SCRAPER_TIMEOUT_MS", 60*time.Second),
			UserAgent:   envOr("SCRAPER_USER_AGENT", DefaultUserAgent),
		},
		Service: ServiceConfig{
			BaseURL:        envOr("SCRAPER_API_URL", "https://api.scraperapi.com"),
			APIKey:         apiKey,
			RenderJS:       strings.EqualFold(os.Getenv("SCRAPER_RENDER_JS"), "true"),
			CountryCode:    os.Getenv("SCRAPER_COUNTRY_CODE"),
			DeviceType:     os.Getenv("SCRAPER_DEVICE_TYPE"),
			TLSFingerprint: strings.ToLower(os.Getenv("SCRAPER_SERVICE_TLS_FINGERPRINT")),
		},
		Browser: BrowserConfig{
			Bin:            os.Getenv("SCRAPER_BROWSER_BIN"),
			Headless:       envBoolOr("SCRAPER_BROWSER_HEADLESS", true),
			NoSandbox:      envBoolOr("SCRAPER_BROWSER_NO_SANDBOX", false),
			Stealth:        envBoolOr("SCRAPER_BROWSER_STEALTH", false),
			WaitUntil:      strings.ToLower(envOr("SCRAPER_BROWSER_WAIT_UNTIL", "networkidle2")),
			SettleDelay:    envDurationMsOr("SCRAPER_BROWSER_WAIT_MS", 0),
			AcceptLanguage: envOr("SCRAPER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
		},
		Bot: BotConfig{
			Token:        os.Getenv("TELEGRAM_BOT_TOKEN"),
			PerChatRPS:   envFloatOr("PAGEBRIEF_BOT_RPS", 0.5),
			PerChatBurst: envIntOr("PAGEBRIEF_BOT_BURST", 2),
		},
		Auth: AuthConfig{
			APIKeys: envSliceOr("PAGEBRIEF_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PAGEBRIEF_RATE_RPS", 1.0),
			Burst:             envIntOr("PAGEBRIEF_RATE_BURST", 3),
		},
		Log: LogConfig{
			Level:  envOr("PAGEBRIEF_LOG_LEVEL", "info"),
			Format: envOr("PAGEBRIEF_LOG_FORMAT", "json"),
		},
	}
}

// BinResolver resolves the browser executable, honouring an override path.
type BinResolver func(override string) (string, error)

// Validate checks that the configured fetch mode can actually run.
// Service mode needs a key, browser mode needs a resolvable executable and
// hybrid mode needs at least one of the two. The returned error is a
// CONFIG_ERROR ScrapeError.
func (c *Config) Validate(resolveBin BinResolver) error {
	switch c.Fetch.Mode {
	case ModeService, ModeBrowser, ModeHybrid:
	default:
		return models.NewScrapeError(models.ErrCodeConfig,
			"No fetch mode enabled. Set SCRAPER_FETCH_MODE to service, browser, or hybrid.", nil)
	}
	switch c.Fetch.HybridOrder {
	case OrderBrowserFirst, OrderServiceFirst:
	default:
		return models.NewScrapeError(models.ErrCodeConfig,
			"SCRAPER_HYBRID_ORDER must be browser-first or service-first.", nil)
	}

	var problems []error
	serviceOK := c.Service.APIKey != ""
	if c.Fetch.Mode.UsesService() && !serviceOK {
		problems = append(problems, errors.New("SCRAPER_API_KEY is missing"))
	}
	browserOK := false
	if c.Fetch.Mode.UsesBrowser() {
		if _, err := resolveBin(c.Browser.Bin); err != nil {
			problems = append(problems, err)
		} else {
			browserOK = true
		}
	}

	var failed bool
	switch c.Fetch.Mode {
	case ModeService:
		failed = !serviceOK
	case ModeBrowser:
		failed = !browserOK
	case ModeHybrid:
		failed = !serviceOK && !browserOK
	}
	if failed {
		return models.NewScrapeError(models.ErrCodeConfig,
			"fetch mode "+string(c.Fetch.Mode)+" cannot run with the current configuration",
			errors.Join(problems...))
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envDurationMsOr reads an integer millisecond count. Zero, negative or
// unparsable values yield the fallback, so "SCRAPER_TIMEOUT_MS=abc" behaves
// like an unset variable.
func envDurationMsOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

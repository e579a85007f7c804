package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/pagebrief/config"
	"github.com/use-agent/pagebrief/models"
)

// maxServiceBody caps how much of a service response is read.
const maxServiceBody = 10 << 20

// ServiceEngine fetches pages through a third-party rendering/proxy API
// (ScraperAPI-compatible: GET <endpoint>?api_key=...&url=...).
type ServiceEngine struct {
	client    *http.Client
	cfg       config.ServiceConfig
	userAgent string
	timeout   time.Duration
}

// NewServiceEngine creates a ServiceEngine. The client's own timeout is left
// unset; each Fetch applies its deadline through the request context.
func NewServiceEngine(cfg config.ServiceConfig, fetch config.FetchConfig) *ServiceEngine {
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	if cfg.TLSFingerprint == "chrome" {
		client.Transport = newChromeTransport(nil)
	}

	userAgent := fetch.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	timeout := fetch.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &ServiceEngine{
		client:    client,
		cfg:       cfg,
		userAgent: userAgent,
		timeout:   timeout,
	}
}

func (e *ServiceEngine) Name() string { return "service" }

// Fetch issues exactly one GET to the service endpoint.
//
// The query always carries api_key and url; render, country_code and
// device_type are added only when configured. Transport failures, timeouts
// and non-2xx answers become SERVICE_FETCH_FAILED errors whose message is the
// service's own "message" field when the body provides one.
func (e *ServiceEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.cfg.APIKey == "" {
		return nil, models.NewScrapeError(models.ErrCodeConfig,
			"SCRAPER_API_KEY is missing. Add it to your environment to enable the scraping service.", nil)
	}

	endpoint, err := e.buildURL(req.URL)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeConfig, "invalid SCRAPER_API_URL", err)
	}

	timeout := e.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeServiceFetch, err.Error(), err)
	}
	httpReq.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		// *url.Error embeds the full request URL, credential included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = fmt.Errorf("service_engine: request to %s: %w", redact(endpoint), urlErr.Err)
		}
		msg := err.Error()
		if urlErr != nil {
			msg = urlErr.Err.Error()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("timeout of %dms exceeded", timeout.Milliseconds())
		}
		return nil, models.NewScrapeError(models.ErrCodeServiceFetch, msg, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxServiceBody))
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("timeout of %dms exceeded", timeout.Milliseconds())
		}
		return nil, models.NewScrapeError(models.ErrCodeServiceFetch, msg, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := remoteMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("Request failed with status code %d", resp.StatusCode)
		}
		return nil, models.NewScrapeError(models.ErrCodeServiceFetch, msg,
			fmt.Errorf("service_engine: HTTP %d from %s", resp.StatusCode, redact(endpoint)))
	}

	return &FetchResult{
		HTML:       string(body),
		StatusCode: resp.StatusCode,
		EngineName: e.Name(),
	}, nil
}

func (e *ServiceEngine) buildURL(target string) (string, error) {
	base, err := url.Parse(e.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	if !base.IsAbs() {
		return "", fmt.Errorf("endpoint %q is not absolute", e.cfg.BaseURL)
	}

	q := base.Query()
	q.Set("api_key", e.cfg.APIKey)
	q.Set("url", target)
	if e.cfg.RenderJS {
		q.Set("render", "true")
	}
	if e.cfg.CountryCode != "" {
		q.Set("country_code", e.cfg.CountryCode)
	}
	if e.cfg.DeviceType != "" {
		q.Set("device_type", e.cfg.DeviceType)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// remoteMessage pulls a human-readable message out of a JSON error body.
// Services disagree on the field name; "message" wins over "error".
func remoteMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, raw := range []json.RawMessage{payload.Message, payload.Error} {
		var s string
		if len(raw) > 0 && json.Unmarshal(raw, &s) == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// redact strips the credential from an endpoint URL before it is logged.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

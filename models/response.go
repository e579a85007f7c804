package models

// BriefResponse is the response for POST /api/v1/brief.
type BriefResponse struct {
	// Success indicates whether the brief was produced.
	Success bool `json:"success"`

	// Lines is the ordered brief, one display line per entry. The lines
	// already carry Markdown emphasis and escaping.
	Lines []string `json:"lines,omitempty"`

	// Text is Lines joined with newlines, ready to send as one message.
	Text string `json:"text,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent on a request.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`
}

// StatusResponse is the liveness payload served at GET /.
type StatusResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string       `json:"status"` // "healthy" or "degraded"
	Uptime    string       `json:"uptime"`
	FetchMode string       `json:"fetch_mode"`
	Browser   BrowserStats `json:"browser"`
	Version   string       `json:"version"`
}

// BrowserStats reports the state of the shared browser handle.
type BrowserStats struct {
	Enabled     bool `json:"enabled"`
	Connected   bool `json:"connected"`
	Launches    int  `json:"launches"`
	ActivePages int  `json:"active_pages"`
}

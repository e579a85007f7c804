package models

// BriefRequest is the payload for POST /api/v1/brief.
type BriefRequest struct {
	// URL is the page to summarise. An empty URL is rejected by the
	// pipeline with its own message rather than by binding.
	URL string `json:"url" binding:"omitempty,url"`
}

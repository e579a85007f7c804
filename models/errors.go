package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeConfig       = "CONFIG_ERROR"
	ErrCodeServiceFetch = "SERVICE_FETCH_FAILED"
	ErrCodeTimeout      = "NAVIGATION_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeExtraction   = "EXTRACTION_FAILED"
	ErrCodeScrape       = "SCRAPE_FAILED"

	// Surface-only codes, never produced by the pipeline itself.
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// Message is the human-readable text shown to users; Err keeps the
// underlying cause for logs and errors.Is/As.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-invoking the pipeline with the same input
// may succeed. Retrieval failures are transient; configuration, input and
// extraction failures are not.
func (e *ScrapeError) Retryable() bool {
	switch e.Code {
	case ErrCodeServiceFetch, ErrCodeTimeout, ErrCodeNavigation, ErrCodeBrowserCrash:
		return true
	default:
		return false
	}
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// Cause returns the innermost ScrapeError in err's chain, or nil if there is
// none. The top-level SCRAPE_FAILED wrapper is skipped over so callers can
// classify by the kind of failure that actually happened.
func Cause(err error) *ScrapeError {
	var found *ScrapeError
	for err != nil {
		var se *ScrapeError
		if !errors.As(err, &se) {
			break
		}
		found = se
		err = se.Err
	}
	return found
}

// CodeOf returns the code of the innermost ScrapeError in err's chain, or
// ErrCodeInternal for untyped errors.
func CodeOf(err error) string {
	if se := Cause(err); se != nil {
		return se.Code
	}
	return ErrCodeInternal
}

// UserMessage returns the message to show a user for err: the Message of the
// outermost ScrapeError when present, else err.Error().
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *ScrapeError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}

package usecase

import "fmt"

// Stable error codes surfaced to API clients. These strings are part of the
// HTTP contract; renaming one is a breaking change.
const (
	CodeMissingLeague       = "missing_league"
	CodeUnsupportedLeague   = "unsupported_league"
	CodeMissingWeek         = "missing_week"
	CodeInvalidWeek         = "invalid_week"
	CodeInvalidYear         = "invalid_year"
	CodeScrapeFailed        = "scrape_failed"
	CodeFallbackBadStatus   = "cfbd_bad_status"
	CodeAnalyzerUnavailable = "analyzer_unavailable"
)

// InvalidRequestError rejects a request before any network call is issued.
type InvalidRequestError struct {
	Code string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Code
}

// ProviderError is one adapter's transport, auth, or format failure. The
// orchestrator converts it into a fallback decision; it never reaches API
// clients directly. StatusCode is zero when the failure happened below the
// HTTP layer.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// AggregationError means every eligible schedule source failed. No partial
// result accompanies it.
type AggregationError struct {
	Code   string
	Detail string
}

func (e *AggregationError) Error() string {
	return e.Code + ": " + e.Detail
}

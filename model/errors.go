package model

import "errors"

// Error taxonomy for the retrieval funnel. Stage-local recoverable failures
// (a single rerank judgment, the semantic pass of hybrid search) are absorbed
// with a fallback and logged; these errors are the structural failures that
// propagate to the caller.
var (
	// ErrEmptyQuery is returned for empty or whitespace-only query text
	ErrEmptyQuery = errors.New("query text is empty")
	// ErrInvalidQuery is returned for dimension mismatches or malformed vectors
	ErrInvalidQuery = errors.New("invalid query vector")
	// ErrProviderUnavailable is returned when an embedding or completion call failed or timed out
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrNotConfigured is returned when a required provider has no credentials or is unknown
	ErrNotConfigured = errors.New("provider not configured")
	// ErrStorageFailure is returned when a persistence read or write failed
	ErrStorageFailure = errors.New("storage failure")
	// ErrMessageNotFound is returned for citation lookups on an unknown message
	ErrMessageNotFound = errors.New("message not found")
)

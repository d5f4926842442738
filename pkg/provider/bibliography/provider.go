// Package bibliography defines the Provider interface for bibliographic
// search backends.
//
// A bibliography provider wraps a remote metadata service (e.g., Crossref or
// Semantic Scholar) and returns normalised [citation.Record] values so that
// callers never see a backend's native response schema.
//
// Implementations must be safe for concurrent use.
package bibliography

import (
	"context"

	"github.com/MrWong99/voicewriter/pkg/citation"
)

// DefaultLimit is the number of records requested when a caller passes a
// non-positive limit.
const DefaultLimit = 5

// Provider is the abstraction over any bibliographic search backend.
type Provider interface {
	// Search returns at most limit records matching query, in the order the
	// backend ranked them. A non-positive limit means DefaultLimit.
	//
	// Every returned record is fully normalised: authors joined with
	// [citation.JoinAuthors], year and journal filled with placeholders when
	// unknown, and ID set to a DOI or a [citation.Slug].
	//
	// Transport failures, non-success responses and undecodable bodies are
	// returned as errors; a successful response with no matches returns an
	// empty slice and a nil error.
	Search(ctx context.Context, query string, limit int) ([]citation.Record, error)
}

// Limit returns limit, or DefaultLimit when limit is not positive.
func Limit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// Package mock provides a test double for the bibliography.Provider interface.
//
// Example:
//
//	p := &mock.Provider{
//	    Results: []citation.Record{{Title: "Deep learning", ID: "10.1038/nature14539"}},
//	}
//	recs, err := p.Search(ctx, "deep learning", 5)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicewriter/pkg/citation"
	"github.com/MrWong99/voicewriter/pkg/provider/bibliography"
)

// SearchCall records a single invocation of Search.
type SearchCall struct {
	// Query is the query passed to Search.
	Query string
	// Limit is the limit passed to Search.
	Limit int
}

// Provider is a mock implementation of bibliography.Provider.
type Provider struct {
	mu sync.Mutex

	// Results is returned by Search. A copy is returned on every call.
	Results []citation.Record

	// Err, if non-nil, is returned as the error from Search.
	Err error

	// SearchFunc, if set, replaces the canned Results/Err behaviour. It is
	// called without the internal lock held, so it may block.
	SearchFunc func(ctx context.Context, query string, limit int) ([]citation.Record, error)

	// SearchCalls records every invocation of Search in order.
	SearchCalls []SearchCall
}

// Search records the call and returns Results, Err (or delegates to
// SearchFunc).
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]citation.Record, error) {
	p.mu.Lock()
	p.SearchCalls = append(p.SearchCalls, SearchCall{Query: query, Limit: limit})
	fn := p.SearchFunc
	results := citation.Clone(p.Results)
	err := p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, query, limit)
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CallCount returns the number of Search calls so far. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SearchCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SearchCalls = nil
}

var _ bibliography.Provider = (*Provider)(nil)

package resilience

import (
	"context"

	"github.com/MrWong99/voicewriter/pkg/citation"
	"github.com/MrWong99/voicewriter/pkg/provider/bibliography"
)

// BibliographyFallback implements [bibliography.Provider] with failover
// across search services. A service answering "no results" counts as a
// success; only errors move the search on to the next service.
type BibliographyFallback struct {
	group *FallbackGroup[bibliography.Provider]
}

var _ bibliography.Provider = (*BibliographyFallback)(nil)

// NewBibliographyFallback creates a [BibliographyFallback] with primary as
// the preferred search service.
func NewBibliographyFallback(primary bibliography.Provider, primaryName string, cfg FallbackConfig) *BibliographyFallback {
	return &BibliographyFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional search service.
func (f *BibliographyFallback) AddFallback(name string, provider bibliography.Provider) {
	f.group.AddFallback(name, provider)
}

// Search queries the first healthy service. [bibliography.ErrNotFound] from a
// service is an empty answer, not a failure.
func (f *BibliographyFallback) Search(ctx context.Context, query string, limit int) ([]citation.Record, error) {
	return ExecuteWithResult(f.group, func(p bibliography.Provider) ([]citation.Record, error) {
		recs, err := p.Search(ctx, query, limit)
		if bibliography.IsNotFound(err) {
			return []citation.Record{}, nil
		}
		return recs, err
	})
}

// Status reports the breaker state of every service.
func (f *BibliographyFallback) Status() []EntryStatus {
	return f.group.Status()
}

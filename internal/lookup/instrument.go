package lookup

import (
	"context"

	"github.com/MrWong99/voicewriter/internal/observe"
	"github.com/MrWong99/voicewriter/pkg/citation"
	"github.com/MrWong99/voicewriter/pkg/provider/bibliography"
)

// instrumented counts requests and errors of one named provider.
type instrumented struct {
	name    string
	next    bibliography.Provider
	metrics *observe.Metrics
}

// Instrument wraps p so that every search is counted under name in
// voicewriter.provider.requests and, on failure, voicewriter.provider.errors.
func Instrument(name string, p bibliography.Provider, m *observe.Metrics) bibliography.Provider {
	return &instrumented{name: name, next: p, metrics: m}
}

func (i *instrumented) Search(ctx context.Context, query string, limit int) ([]citation.Record, error) {
	recs, err := i.next.Search(ctx, query, limit)
	status := "ok"
	switch {
	case bibliography.IsNotFound(err):
		status = "not_found"
	case err != nil:
		status = "error"
		i.metrics.RecordProviderError(ctx, i.name, "bibliography")
	}
	i.metrics.RecordProviderRequest(ctx, i.name, "bibliography", status)
	return recs, err
}

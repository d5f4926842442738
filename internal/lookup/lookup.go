// Package lookup is the citation search entry point used by the HTTP
// handlers, the dictation workspace and the MCP tools.
//
// [Client.Search] never fails: blank queries, provider errors and timeouts
// all produce an empty result list, and the failure is logged and counted
// instead. Identical concurrent queries share one remote call.
package lookup

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/voicewriter/internal/observe"
	"github.com/MrWong99/voicewriter/pkg/citation"
	"github.com/MrWong99/voicewriter/pkg/provider/bibliography"
)

const (
	// DefaultMaxResults caps the number of records returned per query.
	DefaultMaxResults = bibliography.DefaultLimit

	// DefaultTimeout bounds one remote search, fallbacks included.
	DefaultTimeout = 10 * time.Second
)

// Option configures a [Client].
type Option func(*Client)

// WithMaxResults sets the result cap. Non-positive values keep the default.
func WithMaxResults(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithTimeout sets the per-search timeout. Non-positive values disable it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMetrics records lookup latency on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client searches a [bibliography.Provider]. It is safe for concurrent use.
type Client struct {
	provider   bibliography.Provider
	maxResults int
	timeout    time.Duration
	metrics    *observe.Metrics
	flight     singleflight.Group
}

// New returns a Client backed by provider.
func New(provider bibliography.Provider, opts ...Option) *Client {
	c := &Client{
		provider:   provider,
		maxResults: DefaultMaxResults,
		timeout:    DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// MaxResults returns the configured result cap.
func (c *Client) MaxResults() int {
	return c.maxResults
}

// Search returns at most MaxResults records for query in provider order. The
// result is never nil. A blank query returns immediately without a remote
// call.
func (c *Client) Search(ctx context.Context, query string) []citation.Record {
	query = strings.TrimSpace(query)
	if query == "" {
		return []citation.Record{}
	}

	ch := c.flight.DoChan(query, func() (any, error) {
		return c.search(context.WithoutCancel(ctx), query), nil
	})
	select {
	case res := <-ch:
		// Shared callers must not alias one backing array.
		return citation.Clone(res.Val.([]citation.Record))
	case <-ctx.Done():
		observe.Logger(ctx).Debug("lookup abandoned by caller", "query", query, "err", ctx.Err())
		return []citation.Record{}
	}
}

func (c *Client) search(ctx context.Context, query string) []citation.Record {
	ctx, span := observe.StartSpan(ctx, "lookup.search")
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	recs, err := c.provider.Search(ctx, query, c.maxResults)
	if err != nil {
		observe.Logger(ctx).Warn("citation lookup failed", "query", query, "err", err)
		recs = nil
	}
	if len(recs) > c.maxResults {
		recs = recs[:c.maxResults]
	}
	if c.metrics != nil {
		c.metrics.RecordLookupDuration(ctx, time.Since(start), len(recs))
	}
	if recs == nil {
		recs = []citation.Record{}
	}
	return recs
}

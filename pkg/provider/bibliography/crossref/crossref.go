// Package crossref provides a bibliography.Provider backed by the public
// Crossref REST API (https://api.crossref.org).
//
// Requests are rate limited client-side. Supplying a contact address with
// WithMailto routes requests to Crossref's "polite" pool.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrWong99/voicewriter/pkg/citation"
	"github.com/MrWong99/voicewriter/pkg/provider/bibliography"
)

const (
	// BaseURL is the Crossref REST API base URL.
	BaseURL = "https://api.crossref.org"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// RateLimit is the default request rate in requests per second.
	RateLimit = 5.0

	defaultUserAgent = "voicewriter/1.0"
)

// Compile-time interface assertion.
var _ bibliography.Provider = (*Client)(nil)

// Client is a rate-limited Crossref API client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	mailto     string
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMailto sets the contact address sent as the mailto parameter.
func WithMailto(addr string) Option {
	return func(c *Client) {
		c.mailto = addr
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRateLimit sets the maximum request rate in requests per second.
// A non-positive value disables client-side limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// New creates a Crossref client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search implements bibliography.Provider.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]citation.Record, error) {
	works, err := c.Works(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	recs := make([]citation.Record, len(works))
	for i, w := range works {
		recs[i] = w.Record()
	}
	return recs, nil
}

// Works runs a bibliographic query and returns the raw work items in the
// order Crossref ranked them.
func (c *Client) Works(ctx context.Context, query string, limit int) ([]Work, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("crossref: rate limiter: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/works")
	if err != nil {
		return nil, fmt.Errorf("crossref: build URL: %w", err)
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("rows", strconv.Itoa(bibliography.Limit(limit)))
	if c.mailto != "" {
		q.Set("mailto", c.mailto)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("crossref: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crossref: %w: %v", bibliography.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := bibliography.CheckResponse("crossref", resp); err != nil {
		return nil, err
	}

	var body worksResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("crossref: %w: %v", bibliography.ErrInvalidResponse, err)
	}
	return body.Message.Items, nil
}

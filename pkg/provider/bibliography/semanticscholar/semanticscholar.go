// Package semanticscholar provides a bibliography.Provider backed by the
// Semantic Scholar Graph API paper search endpoint.
//
// The API works without a key at a low shared rate; an API key raises the
// limit and is sent in the x-api-key header.
package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrWong99/voicewriter/pkg/citation"
	"github.com/MrWong99/voicewriter/pkg/provider/bibliography"
)

const (
	// BaseURL is the Semantic Scholar Graph API base URL.
	BaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// RateLimit is the default request rate in requests per second.
	RateLimit = 1.0

	searchFields = "title,authors,year,venue,externalIds"
)

var _ bibliography.Provider = (*Client)(nil)

// Client is a rate-limited Semantic Scholar API client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

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

// New creates a Semantic Scholar client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Paper is the subset of a Graph API paper used for citations.
type Paper struct {
	PaperID     string      `json:"paperId"`
	Title       string      `json:"title"`
	Year        int         `json:"year"`
	Venue       string      `json:"venue"`
	Authors     []Author    `json:"authors"`
	ExternalIDs ExternalIDs `json:"externalIds"`
}

// ExternalIDs holds the identifiers of a paper in other systems. Only the DOI
// is used; other keys such as the numeric CorpusId are ignored.
type ExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

// Author is a paper author as returned by the Graph API.
type Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type searchResponse struct {
	Total int     `json:"total"`
	Data  []Paper `json:"data"`
}

// Search implements bibliography.Provider.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]citation.Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("semanticscholar: rate limiter: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/paper/search")
	if err != nil {
		return nil, fmt.Errorf("semanticscholar: build URL: %w", err)
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(bibliography.Limit(limit)))
	q.Set("fields", searchFields)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("semanticscholar: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("semanticscholar: %w: %v", bibliography.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := bibliography.CheckResponse("semanticscholar", resp); err != nil {
		return nil, err
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("semanticscholar: %w: %v", bibliography.ErrInvalidResponse, err)
	}

	recs := make([]citation.Record, len(body.Data))
	for i, p := range body.Data {
		recs[i] = p.Record()
	}
	return recs, nil
}

// Record converts p into a normalised citation record.
func (p Paper) Record() citation.Record {
	year := citation.DefaultYear
	if p.Year > 0 {
		year = strconv.Itoa(p.Year)
	}

	rec := citation.Record{
		Title:   p.Title,
		Year:    year,
		Journal: p.Venue,
		ID:      p.ExternalIDs.DOI,
	}
	if rec.Title == "" {
		rec.Title = citation.DefaultTitle
	}
	if rec.Journal == "" {
		rec.Journal = citation.DefaultJournal
	}
	if rec.ID == "" {
		rec.ID = citation.Slug(p.Title, year)
	}

	surnames := make([]string, len(p.Authors))
	for i, a := range p.Authors {
		surnames[i] = Surname(a.Name)
	}
	rec.Authors = citation.JoinAuthors(surnames)
	return rec
}

var nameSuffixes = map[string]bool{
	"jr": true, "jr.": true,
	"sr": true, "sr.": true,
	"ii": true, "iii": true, "iv": true,
}

// Surname extracts the family name from a full display name: the last
// token, keeping a generational suffix such as "Jr." attached. An empty name
// yields "Unknown".
func Surname(name string) string {
	parts := strings.Fields(name)
	switch {
	case len(parts) == 0:
		return citation.DefaultAuthors
	case len(parts) > 2 && nameSuffixes[strings.ToLower(parts[len(parts)-1])]:
		return parts[len(parts)-2] + " " + parts[len(parts)-1]
	default:
		return parts[len(parts)-1]
	}
}

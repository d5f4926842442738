package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/voicewriter/internal/observe"
	"github.com/MrWong99/voicewriter/pkg/citation"
)

// Tool names.
const (
	ToolSearchCitations = "search_citations"
	ToolFormatCitation  = "format_citation"
	ToolImproveText     = "improve_text"
)

type searchInput struct {
	Query string `json:"query" jsonschema:"Keywords, title words, author names or a year identifying the work."`
}

type searchOutput struct {
	Results []citation.Record `json:"results"`
}

// recordInput mirrors [citation.Record] with every field optional; missing
// fields take the formatter defaults.
type recordInput struct {
	Title   string `json:"title,omitempty" jsonschema:"Title of the work."`
	Authors string `json:"authors,omitempty" jsonschema:"Author display string such as 'Smith & Jones' or 'Smith et al.'."`
	Year    string `json:"year,omitempty" jsonschema:"Publication year, or n.d. when unknown."`
	Journal string `json:"journal,omitempty" jsonschema:"Journal or container title."`
	DOI     string `json:"doi,omitempty" jsonschema:"DOI without the https://doi.org/ prefix."`
}

type formatInput struct {
	Item  *recordInput `json:"item" jsonschema:"The work to cite, as returned by search_citations."`
	Style string       `json:"style,omitempty" jsonschema:"Citation style name. Every style currently renders the same author-year form."`
}

type formatOutput struct {
	InText string `json:"inText"`
	Full   string `json:"full"`
}

type improveInput struct {
	Text string `json:"text" jsonschema:"The paragraph to touch up."`
}

type improveOutput struct {
	ImprovedText string `json:"improvedText"`
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        ToolSearchCitations,
		Description: "Search Crossref and Semantic Scholar for published works. Returns up to five records with title, authors, year, journal and DOI. An empty list means nothing matched or the services are unavailable.",
	}, instrument(s, ToolSearchCitations, s.searchCitations))

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        ToolFormatCitation,
		Description: "Format a citation record as an in-text citation such as 'Smith, 2020' and a full reference-list entry with a DOI link.",
	}, instrument(s, ToolFormatCitation, s.formatCitation))

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        ToolImproveText,
		Description: "Conservatively touch up a paragraph of dictated academic prose: expand colloquialisms and fix punctuation while keeping meaning and citations intact.",
	}, instrument(s, ToolImproveText, s.improveText))
}

// instrument wraps a tool handler with a span, a log line and the tool call
// counter.
func instrument[In, Out any](s *Server, name string, h mcpsdk.ToolHandlerFor[In, Out]) mcpsdk.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, Out, error) {
		ctx, span := observe.StartSpan(ctx, "mcp.tool."+name)
		defer span.End()

		start := time.Now()
		res, out, err := h(ctx, req, in)
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
		}
		if s.metrics != nil {
			s.metrics.RecordToolCall(ctx, name, status)
		}
		observe.Logger(ctx).Debug("mcp tool call", "tool", name, "status", status, "duration", time.Since(start))
		return res, out, err
	}
}

func (s *Server) searchCitations(ctx context.Context, _ *mcpsdk.CallToolRequest, in searchInput) (*mcpsdk.CallToolResult, searchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, searchOutput{}, errors.New("search_citations: query must not be empty")
	}
	out := searchOutput{Results: citation.Clone(s.searcher.Search(ctx, in.Query))}
	res, err := textResult(out)
	return res, out, err
}

func (s *Server) formatCitation(_ context.Context, _ *mcpsdk.CallToolRequest, in formatInput) (*mcpsdk.CallToolResult, formatOutput, error) {
	if in.Item == nil {
		return nil, formatOutput{}, errors.New("format_citation: missing citation item")
	}
	style := citation.ParseStyle(in.Style)
	if strings.TrimSpace(in.Style) == "" {
		style = s.defaultStyle()
	}
	f := citation.Format(citation.Record{
		Title:   in.Item.Title,
		Authors: in.Item.Authors,
		Year:    in.Item.Year,
		Journal: in.Item.Journal,
		ID:      in.Item.DOI,
	}, style)

	out := formatOutput{InText: f.InText, Full: f.Full}
	res, err := textResult(out)
	return res, out, err
}

func (s *Server) improveText(ctx context.Context, _ *mcpsdk.CallToolRequest, in improveInput) (*mcpsdk.CallToolResult, improveOutput, error) {
	out := improveOutput{ImprovedText: s.improver.Improve(ctx, in.Text)}
	res, err := textResult(out)
	return res, out, err
}

// textResult renders v as the JSON text content of a tool result, for
// clients that ignore structured content.
func textResult(v any) (*mcpsdk.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: encode result: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(b)}},
	}, nil
}

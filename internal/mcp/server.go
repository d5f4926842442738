// Package mcp exposes the citation and touch-up services as Model Context
// Protocol tools, so that writing assistants can search for references,
// format them and polish paragraphs through the same code paths the
// dictation UI uses.
//
// Three tools are registered:
//   - "search_citations": find published works matching a query.
//   - "format_citation": render a record as an in-text citation and a
//     reference-list entry.
//   - "improve_text": conservatively touch up a paragraph of dictated prose.
//
// The server is served over the streamable HTTP transport with
// [Server.Handler], or connected to any other transport with
// [Server.Connect].
package mcp

import (
	"context"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/voicewriter/internal/observe"
	"github.com/MrWong99/voicewriter/pkg/citation"
)

// Implementation name reported to MCP clients.
const serverName = "voicewriter"

// Searcher finds citation candidates. Failures yield an empty result.
type Searcher interface {
	Search(ctx context.Context, query string) []citation.Record
}

// Improver touches up a paragraph and never fails.
type Improver interface {
	Improve(ctx context.Context, text string) string
}

// Option configures a [Server].
type Option func(*Server)

// WithVersion sets the version reported to clients. Default: "dev".
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithMetrics counts tool calls on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithDefaultStyle sets the style format_citation uses when a call names
// none. Default: APA.
func WithDefaultStyle(style func() citation.Style) Option {
	return func(s *Server) {
		s.defaultStyle = style
	}
}

// Server is the MCP tool server. It is safe for concurrent use.
type Server struct {
	searcher     Searcher
	improver     Improver
	version      string
	metrics      *observe.Metrics
	defaultStyle func() citation.Style
	sdk          *mcpsdk.Server
}

// NewServer returns a Server with all tools registered.
func NewServer(searcher Searcher, improver Improver, opts ...Option) *Server {
	s := &Server{
		searcher:     searcher,
		improver:     improver,
		version:      "dev",
		defaultStyle: func() citation.Style { return citation.StyleAPA },
	}
	for _, o := range opts {
		o(s)
	}
	s.sdk = mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: s.version}, nil)
	s.registerTools()
	return s
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.sdk }, nil)
}

// Connect serves one client session over t until the client disconnects.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.sdk.Connect(ctx, t, nil)
}

// Package web serves the browser-facing surface of voicewriter: the JSON
// endpoints for citation search, citation formatting and text touch-up, the
// dictation WebSocket and the embedded single-page editor.
//
// The JSON endpoints accept POST only. Any other method is answered with 405,
// an Allow header and {"error":"Method not allowed"}.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MrWong99/voicewriter/internal/observe"
	"github.com/MrWong99/voicewriter/internal/workspace"
	"github.com/MrWong99/voicewriter/pkg/citation"
	"github.com/MrWong99/voicewriter/pkg/provider/stt/browser"
)

//go:embed static
var staticFiles embed.FS

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Searcher finds citation candidates. Failures yield an empty result.
type Searcher interface {
	Search(ctx context.Context, query string) []citation.Record
}

// Improver touches up a paragraph and never fails.
type Improver interface {
	Improve(ctx context.Context, text string) string
}

// Session is the server half of one dictation connection.
type Session struct {
	Workspace *workspace.Workspace

	// Relay carries speech recognised by the browser. Nil when recognition
	// runs on the server and the browser streams raw audio instead.
	Relay *browser.Relay

	// Release frees the session. It is called exactly once, after the
	// connection has ended.
	Release func()
}

// Sessions creates the workspace behind a dictation connection. listener
// receives every workspace update and never blocks.
type Sessions interface {
	Open(listener func(workspace.Update)) Session
}

// Option configures a [Handler].
type Option func(*Handler)

// WithOriginPatterns allows cross-origin WebSocket connections from hosts
// matching patterns. By default only same-origin connections are accepted.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) {
		h.origins = append(h.origins, patterns...)
	}
}

// WithDefaultStyle sets the style used by the format endpoint when a request
// names none. Default: APA.
func WithDefaultStyle(style func() citation.Style) Option {
	return func(h *Handler) {
		h.defaultStyle = style
	}
}

// Handler serves the web surface. Create it with [New].
type Handler struct {
	searcher     Searcher
	improver     Improver
	sessions     Sessions
	origins      []string
	defaultStyle func() citation.Style

	// ctx ends every dictation connection when cancelled by Shutdown.
	ctx      context.Context
	cancel   context.CancelFunc
	shutOnce sync.Once
}

// New returns a Handler. sessions may be nil, in which case the dictation
// endpoint is not registered.
func New(searcher Searcher, improver Improver, sessions Sessions, opts ...Option) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		searcher:     searcher,
		improver:     improver,
		sessions:     sessions,
		defaultStyle: func() citation.Style { return citation.StyleAPA },
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	for _, path := range []string{"/api/cite", "/api/search"} {
		mux.HandleFunc(path, postOnly(h.Cite))
	}
	for _, path := range []string{"/api/formatCitation", "/api/format"} {
		mux.HandleFunc(path, postOnly(h.FormatCitation))
	}
	for _, path := range []string{"/api/suggest", "/api/improve"} {
		mux.HandleFunc(path, postOnly(h.Suggest))
	}
	if h.sessions != nil {
		mux.HandleFunc("GET /api/dictation", h.Dictation)
	}

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/", http.FileServerFS(static))
}

// Shutdown closes every open dictation connection. It is safe to call more
// than once and suits [http.Server.RegisterOnShutdown].
func (h *Handler) Shutdown() {
	h.shutOnce.Do(func() {
		slog.Info("closing dictation connections")
		h.cancel()
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

// postOnly rejects every method except POST.
func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		observe.Logger(r.Context()).Debug("rejecting request body", "path", r.URL.Path, "err", err)
	}
	return err
}

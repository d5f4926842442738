// Package workspace owns the state of one dictation session: the manuscript,
// the dictation controller, the latest citation search results and the
// citation style.
//
// Every mutation is serialized by one mutex, so a workspace behaves like a
// single-threaded editor no matter whether a change comes from a speech
// event or from the user's browser. Each change is published as an [Update]
// to the listener.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/voicewriter/internal/dictation"
	"github.com/MrWong99/voicewriter/internal/manuscript"
	"github.com/MrWong99/voicewriter/internal/observe"
	"github.com/MrWong99/voicewriter/pkg/citation"
	"github.com/MrWong99/voicewriter/pkg/provider/stt"
)

// ErrNoSuchResult is returned by [Workspace.Insert] for an index outside the
// current search results.
var ErrNoSuchResult = errors.New("workspace: no such search result")

// Notices carried by [Update.Notice].
const (
	// NoticeUnsupported reports that no speech capture is available.
	NoticeUnsupported = "unsupported"

	// NoticeStale reports that an improvement was dropped because the
	// paragraph changed while it was computed.
	NoticeStale = "stale"

	// NoticeError reports a request the workspace could not carry out.
	NoticeError = "error"
)

// Update is a snapshot of the workspace sent to the client after a change.
type Update struct {
	Text      string            `json:"text"`
	Results   []citation.Record `json:"results"`
	Listening bool              `json:"listening"`
	Style     string            `json:"style"`

	// Caret is the cursor position, in code points, after a citation
	// insertion. Nil for every other change.
	Caret *int `json:"caret,omitempty"`

	// Interim is live caption text that is not yet part of the manuscript.
	Interim string `json:"interim,omitempty"`

	Notice  string `json:"notice,omitempty"`
	Message string `json:"message,omitempty"`
}

// Searcher finds citation candidates. Failures yield an empty result.
type Searcher interface {
	Search(ctx context.Context, query string) []citation.Record
}

// Improver touches up a paragraph. It returns the original text, or a
// locally improved one, when its backend fails.
type Improver interface {
	Improve(ctx context.Context, text string) string
}

// Option configures a [Workspace].
type Option func(*Workspace)

// WithID labels the workspace in logs.
func WithID(id string) Option {
	return func(w *Workspace) {
		w.id = id
	}
}

// WithStyle sets the initial citation style. Default: APA.
func WithStyle(style citation.Style) Option {
	return func(w *Workspace) {
		w.style = citation.ParseStyle(string(style))
	}
}

// WithListener receives every [Update]. The listener runs while the
// workspace is locked: it must not block and must not call back into the
// workspace.
func WithListener(fn func(Update)) Option {
	return func(w *Workspace) {
		w.listener = fn
	}
}

// WithSpeech enables dictation through provider. Without it Start reports
// [dictation.ErrUnsupported].
func WithSpeech(provider stt.Provider, opts ...dictation.Option) Option {
	return func(w *Workspace) {
		w.speech = provider
		w.dictationOpts = opts
	}
}

// WithMetrics counts citation insertions on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(w *Workspace) {
		w.metrics = m
	}
}

// Workspace is one user's editing session. All methods are safe for
// concurrent use.
type Workspace struct {
	id            string
	searcher      Searcher
	improver      Improver
	listener      func(Update)
	metrics       *observe.Metrics
	speech        stt.Provider
	dictationOpts []dictation.Option
	ctrl          *dictation.Controller

	mu      sync.Mutex
	doc     *manuscript.Document
	results []citation.Record
	style   citation.Style
}

var _ dictation.Handler = (*Workspace)(nil)

// New returns an empty workspace.
func New(searcher Searcher, improver Improver, opts ...Option) *Workspace {
	w := &Workspace{
		searcher: searcher,
		improver: improver,
		doc:      manuscript.Parse(""),
		results:  []citation.Record{},
		style:    citation.StyleAPA,
	}
	for _, o := range opts {
		o(w)
	}
	w.ctrl = dictation.NewController(w.speech, w, w.dictationOpts...)
	return w
}

// ID returns the workspace label set with [WithID].
func (w *Workspace) ID() string { return w.id }

// Snapshot returns the current state.
func (w *Workspace) Snapshot() Update {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workspace) snapshotLocked() Update {
	return Update{
		Text:      w.doc.String(),
		Results:   citation.Clone(w.results),
		Listening: w.ctrl.Listening(),
		Style:     string(w.style),
	}
}

func (w *Workspace) publishLocked(u Update) {
	if w.listener != nil {
		w.listener(u)
	}
}

// Text returns the serialized manuscript.
func (w *Workspace) Text() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc.String()
}

// Style returns the current citation style.
func (w *Workspace) Style() citation.Style {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.style
}

// SetStyle changes the citation style used by later insertions.
func (w *Workspace) SetStyle(style citation.Style) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.style = citation.ParseStyle(string(style))
	w.publishLocked(w.snapshotLocked())
}

// Dictate appends text to the manuscript body.
func (w *Workspace) Dictate(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.doc.AppendUtterance(text)
	w.publishLocked(w.snapshotLocked())
}

// Search replaces the search results with the records matching query.
func (w *Workspace) Search(ctx context.Context, query string) []citation.Record {
	ctx = observe.WithWorkspace(ctx, w.id)
	results := w.searcher.Search(ctx, query)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.results = citation.Clone(results)
	w.publishLocked(w.snapshotLocked())
	return citation.Clone(results)
}

// Insert formats the search result at index in the current style, splices
// it into the body over [start, end) and appends its reference line. It
// clears the search results and returns the new caret position.
func (w *Workspace) Insert(ctx context.Context, index, start, end int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if index < 0 || index >= len(w.results) {
		return 0, fmt.Errorf("%w: %d of %d", ErrNoSuchResult, index, len(w.results))
	}
	return w.insertLocked(ctx, w.results[index], start, end), nil
}

// InsertRecord is like Insert for a record supplied by the caller.
func (w *Workspace) InsertRecord(ctx context.Context, rec citation.Record, start, end int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.insertLocked(ctx, rec, start, end)
}

func (w *Workspace) insertLocked(ctx context.Context, rec citation.Record, start, end int) int {
	caret := w.doc.InsertCitation(citation.Format(rec, w.style), start, end)
	w.results = []citation.Record{}
	if w.metrics != nil {
		w.metrics.RecordCitationInserted(ctx, string(w.style))
	}

	u := w.snapshotLocked()
	u.Caret = &caret
	w.publishLocked(u)
	return caret
}

// Improve touches up the last paragraph of the body. The improver runs
// without the lock held; its answer is dropped with a [NoticeStale] update
// when the paragraph changed in the meantime. Improve reports whether the
// body changed.
func (w *Workspace) Improve(ctx context.Context) bool {
	ctx = observe.WithWorkspace(ctx, w.id)
	w.mu.Lock()
	last := w.doc.LastParagraph()
	w.mu.Unlock()
	if strings.TrimSpace(last) == "" {
		return false
	}

	improved := w.improver.Improve(ctx, last)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.doc.LastParagraph() != last {
		observe.Logger(ctx).Debug("dropping stale improvement")
		u := w.snapshotLocked()
		u.Notice = NoticeStale
		u.Message = "The paragraph changed while it was being improved."
		w.publishLocked(u)
		return false
	}
	changed := w.doc.ImproveLastParagraph(improved)
	if changed {
		w.publishLocked(w.snapshotLocked())
	}
	return changed
}

// Edit replaces the manuscript with text typed by the user. The client
// already shows the text, so no update is published.
func (w *Workspace) Edit(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.doc.Replace(text)
}

// Start begins dictation. A missing speech capability publishes a
// [NoticeUnsupported] update and returns [dictation.ErrUnsupported].
func (w *Workspace) Start(ctx context.Context) error {
	err := w.ctrl.Start(observe.WithWorkspace(ctx, w.id))
	if errors.Is(err, dictation.ErrUnsupported) {
		w.Notify(NoticeUnsupported, "Speech recognition is not supported in this browser.")
	}
	return err
}

// Notify publishes the current state with a notice attached.
func (w *Workspace) Notify(notice, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u := w.snapshotLocked()
	u.Notice = notice
	u.Message = message
	w.publishLocked(u)
}

// Stop ends dictation.
func (w *Workspace) Stop() error {
	return w.ctrl.Stop()
}

// Listening reports whether dictation is active.
func (w *Workspace) Listening() bool {
	return w.ctrl.Listening()
}

// SendAudio forwards raw audio to server-side recognition.
func (w *Workspace) SendAudio(chunk []byte) error {
	return w.ctrl.SendAudio(chunk)
}

// Close stops dictation and waits for the dictation goroutine.
func (w *Workspace) Close() error {
	return w.ctrl.Stop()
}

// OnDictate implements [dictation.Handler].
func (w *Workspace) OnDictate(_ context.Context, text string) {
	w.Dictate(text)
}

// OnCite implements [dictation.Handler].
func (w *Workspace) OnCite(ctx context.Context, query string) {
	w.Search(ctx, query)
}

// OnImprove implements [dictation.Handler].
func (w *Workspace) OnImprove(ctx context.Context) {
	w.Improve(ctx)
}

// OnInterim implements [dictation.Handler].
func (w *Workspace) OnInterim(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u := w.snapshotLocked()
	u.Interim = text
	w.publishLocked(u)
}

// OnStateChange implements [dictation.Handler].
func (w *Workspace) OnStateChange(state dictation.State, err error) {
	if err != nil {
		slog.Warn("dictation ended with error", "workspace", w.id, "err", err)
	} else {
		slog.Debug("dictation state changed", "workspace", w.id, "state", state)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.publishLocked(w.snapshotLocked())
}

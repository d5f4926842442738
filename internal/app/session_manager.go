package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/MrWong99/voicewriter/internal/config"
	"github.com/MrWong99/voicewriter/internal/dictation"
	"github.com/MrWong99/voicewriter/internal/observe"
	"github.com/MrWong99/voicewriter/internal/web"
	"github.com/MrWong99/voicewriter/internal/workspace"
	"github.com/MrWong99/voicewriter/pkg/citation"
	"github.com/MrWong99/voicewriter/pkg/provider/stt"
	"github.com/MrWong99/voicewriter/pkg/provider/stt/browser"
)

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Searcher workspace.Searcher
	Improver workspace.Improver

	// Speech is the server-side recognizer. Nil gives every session its own
	// browser relay.
	Speech stt.Provider

	// Metrics may be nil.
	Metrics *observe.Metrics

	Language          string
	DefaultStyle      citation.Style
	PhoneticCommands  bool
	PhoneticThreshold float64
}

// SessionManager opens one [workspace.Workspace] per dictation connection
// and tracks the live ones. Style and phonetic settings changed at runtime
// apply to sessions opened afterwards. All exported methods are safe for
// concurrent use.
type SessionManager struct {
	searcher workspace.Searcher
	improver workspace.Improver
	speech   stt.Provider
	metrics  *observe.Metrics
	language string

	mu         sync.Mutex
	sessions   map[string]*workspace.Workspace
	style      citation.Style
	classifier *dictation.Classifier
}

var _ web.Sessions = (*SessionManager)(nil)

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	lang := cfg.Language
	if lang == "" {
		lang = config.DefaultLanguage
	}
	return &SessionManager{
		searcher:   cfg.Searcher,
		improver:   cfg.Improver,
		speech:     cfg.Speech,
		metrics:    cfg.Metrics,
		language:   lang,
		sessions:   make(map[string]*workspace.Workspace),
		style:      citation.ParseStyle(string(cfg.DefaultStyle)),
		classifier: newClassifier(cfg.PhoneticCommands, cfg.PhoneticThreshold),
	}
}

func newClassifier(phonetic bool, threshold float64) *dictation.Classifier {
	opts := []dictation.ClassifierOption{dictation.WithPhoneticCommands(phonetic)}
	if threshold > 0 {
		opts = append(opts, dictation.WithPhoneticThreshold(threshold))
	}
	return dictation.NewClassifier(opts...)
}

// Open creates a workspace publishing to listener. The returned Release
// stops dictation and forgets the session; it may be called more than once.
func (sm *SessionManager) Open(listener func(workspace.Update)) web.Session {
	id := uuid.NewString()

	var relay *browser.Relay
	speech := sm.speech
	if speech == nil {
		relay = browser.New()
		speech = relay
	}

	sm.mu.Lock()
	style, classifier := sm.style, sm.classifier
	sm.mu.Unlock()

	ws := workspace.New(sm.searcher, sm.improver,
		workspace.WithID(id),
		workspace.WithStyle(style),
		workspace.WithListener(listener),
		workspace.WithMetrics(sm.metrics),
		workspace.WithSpeech(speech,
			dictation.WithLanguage(sm.language),
			dictation.WithClassifier(classifier),
			dictation.WithMetrics(sm.metrics),
		),
	)

	sm.mu.Lock()
	sm.sessions[id] = ws
	sm.mu.Unlock()
	sm.addActive(1)
	slog.Info("session opened", "session", id, "browser_speech", relay != nil)

	var once sync.Once
	return web.Session{
		Workspace: ws,
		Relay:     relay,
		Release: func() {
			once.Do(func() { sm.release(id, ws) })
		},
	}
}

func (sm *SessionManager) release(id string, ws *workspace.Workspace) {
	sm.mu.Lock()
	delete(sm.sessions, id)
	sm.mu.Unlock()

	if err := ws.Close(); err != nil {
		slog.Warn("session close error", "session", id, "err", err)
	}
	sm.addActive(-1)
	slog.Info("session closed", "session", id)
}

func (sm *SessionManager) addActive(n int64) {
	if sm.metrics != nil {
		sm.metrics.ActiveSessions.Add(context.Background(), n)
	}
}

// Count returns the number of open sessions.
func (sm *SessionManager) Count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// DefaultStyle returns the style new sessions start with.
func (sm *SessionManager) DefaultStyle() citation.Style {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.style
}

// SetDefaultStyle changes the style new sessions start with.
func (sm *SessionManager) SetDefaultStyle(style citation.Style) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.style = citation.ParseStyle(string(style))
}

// SetPhonetic changes command matching for new sessions.
func (sm *SessionManager) SetPhonetic(enabled bool, threshold float64) {
	cl := newClassifier(enabled, threshold)
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.classifier = cl
}

// CloseAll stops dictation in every open session. Sessions stay registered
// until their connection releases them.
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	open := make([]*workspace.Workspace, 0, len(sm.sessions))
	for _, ws := range sm.sessions {
		open = append(open, ws)
	}
	sm.mu.Unlock()

	for _, ws := range open {
		if err := ws.Close(); err != nil {
			slog.Warn("session close error", "session", ws.ID(), "err", err)
		}
	}
}

// Package app wires all voicewriter subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until its context is cancelled, and Shutdown
// tears the live dictation sessions down.
//
// Providers are built from the config registry by [BuildProviders]. Tests
// pass mock providers directly.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicewriter/internal/config"
	"github.com/MrWong99/voicewriter/internal/health"
	"github.com/MrWong99/voicewriter/internal/lookup"
	"github.com/MrWong99/voicewriter/internal/mcp"
	"github.com/MrWong99/voicewriter/internal/observe"
	"github.com/MrWong99/voicewriter/internal/resilience"
	"github.com/MrWong99/voicewriter/internal/touchup"
	"github.com/MrWong99/voicewriter/internal/touchup/llmtouchup"
	"github.com/MrWong99/voicewriter/internal/web"
	"github.com/MrWong99/voicewriter/pkg/citation"
	"github.com/MrWong99/voicewriter/pkg/provider/bibliography"
	"github.com/MrWong99/voicewriter/pkg/provider/llm"
	"github.com/MrWong99/voicewriter/pkg/provider/stt"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// ErrNoBibliography is returned when no bibliography provider is available.
var ErrNoBibliography = errors.New("app: no bibliography provider configured")

// Providers holds one interface value per provider slot. Nil LLM means rules
// only touch-up; nil STT means browser recognition.
type Providers struct {
	LLM          llm.Provider
	STT          stt.Provider
	Bibliography bibliography.Provider

	// Checks are readiness checks for the providers above.
	Checks []health.Checker
}

// BuildProviders instantiates all providers named in cfg using the registry.
// Fallback chains get a circuit breaker per entry and a readiness check.
// m may be nil.
func BuildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*Providers, error) {
	ps := &Providers{}

	if entry := cfg.Providers.LLM; entry.Name != "" {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("app: create llm provider %q: %w", entry.Name, err)
		}
		if len(cfg.Providers.LLMFallbacks) > 0 {
			fb := resilience.NewLLMFallback(p, entry.Name, resilience.FallbackConfig{})
			for _, e := range cfg.Providers.LLMFallbacks {
				q, err := reg.CreateLLM(e)
				if err != nil {
					return nil, fmt.Errorf("app: create llm fallback %q: %w", e.Name, err)
				}
				fb.AddFallback(e.Name, q)
			}
			ps.Checks = append(ps.Checks, health.FallbackCheck("llm", fb.Status))
			p = fb
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "fallbacks", len(cfg.Providers.LLMFallbacks))
	}

	if entry := cfg.Providers.STT; entry.Name != "" && entry.Name != "browser" {
		p, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("app: create stt provider %q: %w", entry.Name, err)
		}
		if len(cfg.Providers.STTFallbacks) > 0 {
			fb := resilience.NewSTTFallback(p, entry.Name, resilience.FallbackConfig{})
			for _, e := range cfg.Providers.STTFallbacks {
				q, err := reg.CreateSTT(e)
				if err != nil {
					return nil, fmt.Errorf("app: create stt fallback %q: %w", e.Name, err)
				}
				fb.AddFallback(e.Name, q)
			}
			ps.Checks = append(ps.Checks, health.FallbackCheck("stt", fb.Status))
			p = fb
		}
		ps.STT = p
		slog.Info("provider created", "kind", "stt", "name", entry.Name, "fallbacks", len(cfg.Providers.STTFallbacks))
	}

	var chain *resilience.BibliographyFallback
	for _, e := range cfg.Providers.Bibliography {
		p, err := reg.CreateBibliography(e)
		if err != nil {
			return nil, fmt.Errorf("app: create bibliography provider %q: %w", e.Name, err)
		}
		if m != nil {
			p = lookup.Instrument(e.Name, p, m)
		}
		if chain == nil {
			chain = resilience.NewBibliographyFallback(p, e.Name, resilience.FallbackConfig{})
		} else {
			chain.AddFallback(e.Name, p)
		}
		slog.Info("provider created", "kind", "bibliography", "name", e.Name)
	}
	if chain == nil {
		return nil, ErrNoBibliography
	}
	ps.Bibliography = chain
	ps.Checks = append(ps.Checks, health.FallbackCheck("bibliography", chain.Status))

	return ps, nil
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	version   string

	lookup   *lookup.Client
	touchup  *touchup.Client
	sessions *SessionManager
	web      *web.Handler
	mcp      *mcp.Server
	handler  http.Handler

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// New creates an App by wiring all subsystems together.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Bibliography == nil {
		return nil, ErrNoBibliography
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── Citation lookup ──────────────────────────────────────────────────
	a.lookup = lookup.New(providers.Bibliography,
		lookup.WithMaxResults(cfg.Citation.MaxResults),
		lookup.WithTimeout(cfg.Citation.LookupTimeout),
		lookup.WithMetrics(a.metrics),
	)

	// ── Touch-up ─────────────────────────────────────────────────────────
	touchupOpts := []touchup.Option{
		touchup.WithTimeout(cfg.Touchup.Timeout),
		touchup.WithMetrics(a.metrics),
		touchup.WithRules(cfg.Touchup.Rules()),
	}
	var backend touchup.Improver
	if providers.LLM != nil {
		backend = llmtouchup.New(providers.LLM)
		if name := cfg.Providers.LLM.Name; name != "" {
			touchupOpts = append(touchupOpts, touchup.WithName(name))
		}
	}
	a.touchup = touchup.NewClient(backend, touchupOpts...)

	// ── Sessions ─────────────────────────────────────────────────────────
	a.sessions = NewSessionManager(SessionManagerConfig{
		Searcher:          a.lookup,
		Improver:          a.touchup,
		Speech:            providers.STT,
		Metrics:           a.metrics,
		Language:          cfg.Dictation.Language,
		DefaultStyle:      citation.ParseStyle(cfg.Citation.DefaultStyle),
		PhoneticCommands:  cfg.Dictation.PhoneticCommands,
		PhoneticThreshold: cfg.Dictation.PhoneticThreshold,
	})

	// ── HTTP surface ─────────────────────────────────────────────────────
	a.web = web.New(a.lookup, a.touchup, a.sessions, web.WithDefaultStyle(a.sessions.DefaultStyle))
	a.mcp = mcp.NewServer(a.lookup, a.touchup,
		mcp.WithMetrics(a.metrics),
		mcp.WithVersion(a.version),
		mcp.WithDefaultStyle(a.sessions.DefaultStyle),
	)

	mux := http.NewServeMux()
	health.New(providers.Checks...).Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler())
	a.web.Register(mux)
	if cfg.MCP.IsEnabled() {
		mux.Handle(cfg.MCP.Path, a.mcp.Handler())
	}
	a.handler = observe.Middleware(a.metrics)(mux)

	return a, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Sessions returns the dictation session manager.
func (a *App) Sessions() *SessionManager {
	return a.sessions
}

// Reload applies the hot-reloadable part of a config change. Style and
// phonetic changes affect sessions opened afterwards.
func (a *App) Reload(d config.ConfigDiff) {
	if d.LogLevelChanged {
		observe.LogLevel.Set(observe.ParseLevel(string(d.NewLogLevel)))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.DefaultStyleChanged {
		a.sessions.SetDefaultStyle(citation.ParseStyle(d.NewDefaultStyle))
		slog.Info("default citation style changed", "style", d.NewDefaultStyle)
	}
	if d.PhoneticChanged {
		a.sessions.SetPhonetic(d.NewPhonetic, d.NewPhoneticThreshold)
		slog.Info("phonetic command matching changed", "enabled", d.NewPhonetic, "threshold", d.NewPhoneticThreshold)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after a restart", "sections", d.RestartRequired)
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is cancelled, then shuts the server down
// gracefully. It returns ctx.Err() after a clean shutdown.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	srv.RegisterOnShutdown(a.web.Shutdown)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: shutdown http: %w", err)
		}
		return nil
	})

	slog.Info("http server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil, "mcp", a.cfg.MCP.IsEnabled())
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Shutdown stops dictation in every live session and closes the dictation
// sockets. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "sessions", a.sessions.Count())
		a.web.Shutdown()
		a.sessions.CloseAll()
		slog.Info("shutdown complete")
	})
	return ctx.Err()
}

package app_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/goleak"

	"github.com/MrWong99/voicewriter/internal/app"
	"github.com/MrWong99/voicewriter/internal/config"
	"github.com/MrWong99/voicewriter/internal/observe"
	"github.com/MrWong99/voicewriter/internal/workspace"
	"github.com/MrWong99/voicewriter/pkg/citation"
	"github.com/MrWong99/voicewriter/pkg/provider/bibliography"
	bibmock "github.com/MrWong99/voicewriter/pkg/provider/bibliography/mock"
	"github.com/MrWong99/voicewriter/pkg/provider/llm"
	llmmock "github.com/MrWong99/voicewriter/pkg/provider/llm/mock"
	"github.com/MrWong99/voicewriter/pkg/provider/stt"
	sttmock "github.com/MrWong99/voicewriter/pkg/provider/stt/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var smith = citation.Record{
	Title:   "On significance",
	Authors: "Smith",
	Year:    "2020",
	Journal: "Journal of Results",
	ID:      "10.1000/xyz",
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// testRegistry registers mock factories that hand out the given providers.
func testRegistry(bib map[string]bibliography.Provider, llms map[string]llm.Provider, speech stt.Provider) *config.Registry {
	reg := config.NewRegistry()
	for name, p := range bib {
		reg.RegisterBibliography(name, func(config.ProviderEntry) (bibliography.Provider, error) { return p, nil })
	}
	for name, p := range llms {
		reg.RegisterLLM(name, func(config.ProviderEntry) (llm.Provider, error) { return p, nil })
	}
	if speech != nil {
		for _, name := range []string{"deepgram", "whisper"} {
			reg.RegisterSTT(name, func(config.ProviderEntry) (stt.Provider, error) { return speech, nil })
		}
	}
	return reg
}

func testApp(t *testing.T, cfg *config.Config, providers *app.Providers) *app.App {
	t.Helper()
	a, err := app.New(cfg, providers, app.WithMetrics(testMetrics(t)), app.WithVersion("test"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func TestBuildProviders(t *testing.T) {
	t.Parallel()

	speech := &sttmock.Provider{}
	tests := []struct {
		name       string
		mutate     func(*config.Config)
		wantLLM    bool
		wantSTT    bool
		wantChecks []string
		wantErr    error
	}{
		{
			name:       "defaults",
			wantChecks: []string{"bibliography"},
		},
		{
			name: "llm without fallbacks",
			mutate: func(c *config.Config) {
				c.Providers.LLM = config.ProviderEntry{Name: "openai"}
			},
			wantLLM:    true,
			wantChecks: []string{"bibliography"},
		},
		{
			name: "llm with fallbacks",
			mutate: func(c *config.Config) {
				c.Providers.LLM = config.ProviderEntry{Name: "openai"}
				c.Providers.LLMFallbacks = []config.ProviderEntry{{Name: "ollama"}}
			},
			wantLLM:    true,
			wantChecks: []string{"llm", "bibliography"},
		},
		{
			name: "browser speech",
			mutate: func(c *config.Config) {
				c.Providers.STT = config.ProviderEntry{Name: "browser"}
			},
			wantChecks: []string{"bibliography"},
		},
		{
			name: "server speech",
			mutate: func(c *config.Config) {
				c.Providers.STT = config.ProviderEntry{Name: "deepgram"}
			},
			wantSTT:    true,
			wantChecks: []string{"bibliography"},
		},
		{
			name: "server speech with fallbacks",
			mutate: func(c *config.Config) {
				c.Providers.STT = config.ProviderEntry{Name: "deepgram"}
				c.Providers.STTFallbacks = []config.ProviderEntry{{Name: "whisper"}}
			},
			wantSTT:    true,
			wantChecks: []string{"stt", "bibliography"},
		},
		{
			name: "unregistered llm",
			mutate: func(c *config.Config) {
				c.Providers.LLM = config.ProviderEntry{Name: "mistral"}
			},
			wantErr: config.ErrProviderNotRegistered,
		},
		{
			name: "unregistered bibliography",
			mutate: func(c *config.Config) {
				c.Providers.Bibliography = []config.ProviderEntry{{Name: "pubmed"}}
			},
			wantErr: config.ErrProviderNotRegistered,
		},
		{
			name: "no bibliography",
			mutate: func(c *config.Config) {
				c.Providers.Bibliography = nil
			},
			wantErr: app.ErrNoBibliography,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			if tc.mutate != nil {
				tc.mutate(cfg)
			}
			reg := testRegistry(
				map[string]bibliography.Provider{"crossref": &bibmock.Provider{}, "semanticscholar": &bibmock.Provider{}},
				map[string]llm.Provider{"openai": &llmmock.Provider{}, "ollama": &llmmock.Provider{}},
				speech,
			)

			ps, err := app.BuildProviders(cfg, reg, testMetrics(t))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildProviders: %v", err)
			}
			if got := ps.LLM != nil; got != tc.wantLLM {
				t.Errorf("LLM set = %v, want %v", got, tc.wantLLM)
			}
			if got := ps.STT != nil; got != tc.wantSTT {
				t.Errorf("STT set = %v, want %v", got, tc.wantSTT)
			}
			if ps.Bibliography == nil {
				t.Error("Bibliography is nil")
			}
			var checks []string
			for _, c := range ps.Checks {
				checks = append(checks, c.Name)
			}
			if diff := cmp.Diff(tc.wantChecks, checks); diff != "" {
				t.Errorf("checks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildProviders_BibliographyFallsBack(t *testing.T) {
	t.Parallel()
	primary := &bibmock.Provider{Err: errors.New("crossref down")}
	secondary := &bibmock.Provider{Results: []citation.Record{smith}}
	reg := testRegistry(map[string]bibliography.Provider{"crossref": primary, "semanticscholar": secondary}, nil, nil)

	ps, err := app.BuildProviders(config.Default(), reg, nil)
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	got, err := ps.Bibliography.Search(context.Background(), "significance", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff([]citation.Record{smith}, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.CallCount(), secondary.CallCount())
	}
}

func TestNew_RequiresBibliography(t *testing.T) {
	t.Parallel()
	if _, err := app.New(config.Default(), &app.Providers{}); !errors.Is(err, app.ErrNoBibliography) {
		t.Errorf("err = %v, want ErrNoBibliography", err)
	}
}

func TestApp_Routes(t *testing.T) {
	t.Parallel()
	a := testApp(t, config.Default(), &app.Providers{Bibliography: &bibmock.Provider{Results: []citation.Record{smith}}})

	tests := []struct {
		method, path, body string
		wantStatus         int
		wantBody           string
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/readyz", "", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/metrics", "", http.StatusOK, ""},
		{http.MethodGet, "/", "", http.StatusOK, "Academic Voice Writer"},
		{http.MethodPost, "/api/cite", `{"query":"significance"}`, http.StatusOK, `"doi":"10.1000/xyz"`},
		{http.MethodGet, "/api/cite", "", http.StatusMethodNotAllowed, "Method not allowed"},
		{http.MethodPost, "/api/formatCitation", `{"item":{"authors":"Smith","year":"2020"}}`, http.StatusOK, `"inText":"Smith, 2020"`},
		{http.MethodPost, "/api/suggest", `{"text":"we are gonna see"}`, http.StatusOK, `"improvedText":"we are going to see."`},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.wantBody) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tc.wantBody)
			}
		})
	}
}

func TestApp_ImproveUsesLLM(t *testing.T) {
	t.Parallel()
	model := llmmock.Reply(`{"improved_text":"We shall see."}`)
	cfg := config.Default()
	cfg.Providers.LLM = config.ProviderEntry{Name: "openai"}
	a := testApp(t, cfg, &app.Providers{LLM: model, Bibliography: &bibmock.Provider{}})

	req := httptest.NewRequest(http.MethodPost, "/api/improve", strings.NewReader(`{"text":"we are gonna see"}`))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if want := `"improvedText":"We shall see."`; !strings.Contains(rec.Body.String(), want) {
		t.Errorf("body = %q, want it to contain %q", rec.Body.String(), want)
	}
	if got := len(model.Calls()); got != 1 {
		t.Errorf("LLM calls = %d, want 1", got)
	}
	if got := model.LastUserText(); got != "we are gonna see" {
		t.Errorf("LLM saw %q, want the raw paragraph", got)
	}
}

func TestApp_MCPToggle(t *testing.T) {
	t.Parallel()

	disabled := false
	tests := []struct {
		name    string
		enabled *bool
		want404 bool
	}{
		{name: "default enabled", enabled: nil, want404: false},
		{name: "disabled", enabled: &disabled, want404: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			cfg.MCP.Enabled = tc.enabled
			a := testApp(t, cfg, &app.Providers{Bibliography: &bibmock.Provider{}})

			req := httptest.NewRequest(http.MethodGet, cfg.MCP.Path, nil)
			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, req)
			if got := rec.Code == http.StatusNotFound; got != tc.want404 {
				t.Errorf("status = %d, want404 = %v", rec.Code, tc.want404)
			}
		})
	}
}

func TestApp_ReloadDefaultStyle(t *testing.T) {
	t.Parallel()
	a := testApp(t, config.Default(), &app.Providers{Bibliography: &bibmock.Provider{}})

	a.Reload(config.ConfigDiff{DefaultStyleChanged: true, NewDefaultStyle: "Harvard"})
	if got := a.Sessions().DefaultStyle(); got != citation.Style("Harvard") {
		t.Errorf("DefaultStyle = %q, want Harvard", got)
	}

	sess := a.Sessions().Open(func(workspace.Update) {})
	defer sess.Release()
	if got := sess.Workspace.Style(); got != citation.Style("Harvard") {
		t.Errorf("new session style = %q, want Harvard", got)
	}
}

func TestApp_Serve(t *testing.T) {
	t.Parallel()
	a := testApp(t, config.Default(), &app.Providers{Bibliography: &bibmock.Provider{}})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		cancel()
		t.Fatalf("GET /healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/voicewriter/internal/manuscript"
	"github.com/MrWong99/voicewriter/internal/touchup"
	"github.com/MrWong99/voicewriter/internal/web"
	"github.com/MrWong99/voicewriter/internal/workspace"
	"github.com/MrWong99/voicewriter/pkg/citation"
	"github.com/MrWong99/voicewriter/pkg/provider/stt"
	"github.com/MrWong99/voicewriter/pkg/provider/stt/browser"
	sttmock "github.com/MrWong99/voicewriter/pkg/provider/stt/mock"
)

// fakeSessions opens real workspaces. Without speech it relays browser
// recognition.
type fakeSessions struct {
	searcher workspace.Searcher
	speech   stt.Provider
	released chan struct{}
}

func newSessions(s workspace.Searcher, speech stt.Provider) *fakeSessions {
	return &fakeSessions{searcher: s, speech: speech, released: make(chan struct{}, 4)}
}

func (f *fakeSessions) Open(listener func(workspace.Update)) web.Session {
	var relay *browser.Relay
	speech := f.speech
	if speech == nil {
		relay = browser.New()
		speech = relay
	}
	ws := workspace.New(f.searcher, touchup.NewClient(nil),
		workspace.WithID("test"),
		workspace.WithListener(listener),
		workspace.WithSpeech(speech),
	)
	return web.Session{
		Workspace: ws,
		Relay:     relay,
		Release: func() {
			_ = ws.Close()
			f.released <- struct{}{}
		},
	}
}

func (f *fakeSessions) waitReleased(t *testing.T) {
	t.Helper()
	select {
	case <-f.released:
	case <-time.After(3 * time.Second):
		t.Fatal("session was not released")
	}
}

type message struct {
	Type      string            `json:"type"`
	Text      string            `json:"text"`
	Results   []citation.Record `json:"results"`
	Listening bool              `json:"listening"`
	Style     string            `json:"style"`
	Caret     *int              `json:"caret"`
	Interim   string            `json:"interim"`
	Notice    string            `json:"notice"`
	Recognize *struct {
		Lang           string `json:"lang"`
		Continuous     bool   `json:"continuous"`
		InterimResults bool   `json:"interimResults"`
	} `json:"recognize"`
}

type client struct {
	t    *testing.T
	ctx  context.Context
	conn *websocket.Conn
}

func dial(t *testing.T, h http.Handler) *client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/dictation"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return &client{t: t, ctx: ctx, conn: conn}
}

func (c *client) send(v any) {
	c.t.Helper()
	if err := wsjson.Write(c.ctx, c.conn, v); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// next reads messages until match accepts one.
func (c *client) next(match func(message) bool) message {
	c.t.Helper()
	for {
		var m message
		if err := wsjson.Read(c.ctx, c.conn, &m); err != nil {
			c.t.Fatalf("read: %v", err)
		}
		if match(m) {
			return m
		}
	}
}

func (c *client) close() {
	c.t.Helper()
	if err := c.conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		c.t.Logf("close: %v", err)
	}
}

func final(text string) map[string]any {
	return map[string]any{
		"type":    "result",
		"results": []map[string]any{{"isFinal": true, "alternatives": []map[string]any{{"transcript": text}}}},
	}
}

func TestDictation_BrowserSpeech(t *testing.T) {
	t.Parallel()
	sessions := newSessions(&fakeSearcher{results: []citation.Record{smith}}, nil)
	mux, _ := newMux(t, &fakeSearcher{}, sessions)
	c := dial(t, mux)

	if m := c.next(func(message) bool { return true }); m.Type != "update" || m.Text != "" || m.Style != "APA" {
		t.Fatalf("first message = %+v, want an empty APA snapshot", m)
	}

	c.send(map[string]any{"type": "start", "supported": true})
	c.next(func(m message) bool { return m.Type == "update" && m.Listening })
	rec := c.next(func(m message) bool { return m.Type == "recognize" })
	if rec.Recognize == nil || rec.Recognize.Lang != "en-US" || !rec.Recognize.Continuous || !rec.Recognize.InterimResults {
		t.Fatalf("recognize = %+v, want continuous en-US with interim results", rec.Recognize)
	}

	c.send(map[string]any{
		"type":    "result",
		"results": []map[string]any{{"isFinal": false, "alternatives": []map[string]any{{"transcript": "the res"}}}},
	})
	if m := c.next(func(m message) bool { return m.Interim != "" }); m.Interim != "the res" {
		t.Errorf("interim = %q, want %q", m.Interim, "the res")
	}

	c.send(final("The result is significant"))
	c.next(func(m message) bool { return m.Text == "The result is significant" })

	c.send(final("Cite significance"))
	if m := c.next(func(m message) bool { return len(m.Results) > 0 }); m.Results[0] != smith {
		t.Errorf("result = %+v, want %+v", m.Results[0], smith)
	}

	c.send(map[string]any{"type": "insert", "index": 0, "start": 25, "end": 25})
	m := c.next(func(m message) bool { return m.Caret != nil })
	if *m.Caret != 39 {
		t.Errorf("caret = %d, want 39", *m.Caret)
	}
	wantText := "The result is significant (Smith, 2020)" + manuscript.Marker +
		"Smith (2020). On significance. Journal of Results. https://doi.org/10.1000/xyz\n"
	if m.Text != wantText {
		t.Errorf("text = %q, want %q", m.Text, wantText)
	}

	c.send(map[string]any{"type": "insert", "index": 0})
	if m := c.next(func(m message) bool { return m.Notice != "" }); m.Notice != workspace.NoticeError {
		t.Errorf("notice = %q, want %q", m.Notice, workspace.NoticeError)
	}

	c.send(map[string]any{"type": "end"})
	c.next(func(m message) bool { return m.Type == "update" && !m.Listening })

	c.close()
	sessions.waitReleased(t)
}

func TestDictation_Unsupported(t *testing.T) {
	t.Parallel()
	sessions := newSessions(&fakeSearcher{}, nil)
	mux, _ := newMux(t, &fakeSearcher{}, sessions)
	c := dial(t, mux)

	c.send(map[string]any{"type": "start", "supported": false})
	m := c.next(func(m message) bool { return m.Notice != "" })
	if m.Notice != workspace.NoticeUnsupported || m.Listening {
		t.Errorf("update = %+v, want an unsupported notice while idle", m)
	}

	c.close()
	sessions.waitReleased(t)
}

func TestDictation_BrowserErrorEndsCapture(t *testing.T) {
	t.Parallel()
	sessions := newSessions(&fakeSearcher{}, nil)
	mux, _ := newMux(t, &fakeSearcher{}, sessions)
	c := dial(t, mux)

	c.send(map[string]any{"type": "start", "supported": true})
	c.next(func(m message) bool { return m.Type == "recognize" })
	c.send(map[string]any{"type": "error", "error": "not-allowed"})
	c.next(func(m message) bool { return m.Type == "update" && !m.Listening })

	c.close()
	sessions.waitReleased(t)
}

func TestDictation_EditImproveAndStyle(t *testing.T) {
	t.Parallel()
	sessions := newSessions(&fakeSearcher{}, nil)
	mux, _ := newMux(t, &fakeSearcher{}, sessions)
	c := dial(t, mux)

	c.send(map[string]any{"type": "edit", "text": "Intro.\n\nI wanna show this works kinda well"})
	c.send(map[string]any{"type": "improve"})
	m := c.next(func(m message) bool { return strings.HasPrefix(m.Text, "Intro.") })
	if want := "Intro.\n\nI want to show this works somewhat well."; m.Text != want {
		t.Errorf("text = %q, want %q", m.Text, want)
	}

	c.send(map[string]any{"type": "style", "style": "Harvard"})
	c.next(func(m message) bool { return m.Style == "Harvard" })

	c.close()
	sessions.waitReleased(t)
}

func TestDictation_SearchMessage(t *testing.T) {
	t.Parallel()
	s := &fakeSearcher{results: []citation.Record{smith}}
	sessions := newSessions(s, nil)
	mux, _ := newMux(t, &fakeSearcher{}, sessions)
	c := dial(t, mux)

	c.send(map[string]any{"type": "search", "query": "significance"})
	if m := c.next(func(m message) bool { return len(m.Results) > 0 }); len(m.Results) != 1 {
		t.Errorf("results = %d, want 1", len(m.Results))
	}

	c.close()
	sessions.waitReleased(t)
	if got := s.Queries(); len(got) != 1 || got[0] != "significance" {
		t.Errorf("queries = %q, want [significance]", got)
	}
}

func TestDictation_ServerSpeechAudio(t *testing.T) {
	t.Parallel()
	p := &sttmock.Provider{}
	sessions := newSessions(&fakeSearcher{}, p)
	mux, _ := newMux(t, &fakeSearcher{}, sessions)
	c := dial(t, mux)

	c.send(map[string]any{"type": "start"})
	c.next(func(m message) bool { return m.Type == "update" && m.Listening })

	if err := c.conn.Write(c.ctx, websocket.MessageBinary, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	sess := p.Last()
	sess.Emit(stt.Event{Results: []stt.Result{{IsFinal: true, Alternatives: []stt.Alternative{{Transcript: "spoken on the server"}}}}})
	c.next(func(m message) bool { return m.Text == "spoken on the server" })

	c.send(map[string]any{"type": "stop"})
	c.next(func(m message) bool { return m.Type == "update" && !m.Listening })

	c.close()
	sessions.waitReleased(t)
	if len(sess.Audio) != 1 || string(sess.Audio[0]) != "\x01\x02\x03\x04" {
		t.Errorf("audio = %v, want one 4-byte chunk", sess.Audio)
	}
}

func TestDictation_ShutdownClosesConnections(t *testing.T) {
	t.Parallel()
	sessions := newSessions(&fakeSearcher{}, nil)
	mux, h := newMux(t, &fakeSearcher{}, sessions)
	c := dial(t, mux)

	c.next(func(message) bool { return true })
	h.Shutdown()
	sessions.waitReleased(t)

	var m message
	if err := wsjson.Read(c.ctx, c.conn, &m); err == nil {
		t.Error("read after shutdown succeeded, want a closed connection")
	}
}

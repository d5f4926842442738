package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/voicewriter/internal/dictation"
	"github.com/MrWong99/voicewriter/internal/observe"
	"github.com/MrWong99/voicewriter/internal/workspace"
	"github.com/MrWong99/voicewriter/pkg/citation"
	"github.com/MrWong99/voicewriter/pkg/provider/stt"
)

const (
	// maxMessageBytes caps one incoming frame. Audio chunks are the largest.
	maxMessageBytes = 1 << 20

	// sendBuffer is the number of server messages queued per connection.
	// Updates are full snapshots, so dropping one under back-pressure only
	// skips an intermediate state.
	sendBuffer = 64

	writeTimeout = 10 * time.Second
)

// Client message types.
const (
	msgStart   = "start"
	msgStop    = "stop"
	msgResult  = "result"
	msgEnd     = "end"
	msgError   = "error"
	msgInsert  = "insert"
	msgImprove = "improve"
	msgEdit    = "edit"
	msgSearch  = "search"
	msgStyle   = "style"
)

// Server message types.
const (
	msgUpdate    = "update"
	msgRecognize = "recognize"
)

// clientMessage is a JSON frame sent by the browser. Fields not used by Type
// are left empty.
type clientMessage struct {
	Type string `json:"type"`

	// Supported accompanies start and reports whether the browser has a
	// speech recogniser.
	Supported bool `json:"supported,omitempty"`

	// Results carries browser recognition results.
	Results []stt.Result `json:"results,omitempty"`

	// Error names the browser recogniser's error.
	Error string `json:"error,omitempty"`

	// Index selects a search result; Start and End are the selection in
	// code points.
	Index int `json:"index,omitempty"`
	Start int `json:"start,omitempty"`
	End   int `json:"end,omitempty"`

	Text  string `json:"text,omitempty"`
	Query string `json:"query,omitempty"`
	Style string `json:"style,omitempty"`
}

// recognizeConfig tells the browser how to configure its recogniser.
type recognizeConfig struct {
	Lang           string `json:"lang"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interimResults"`
}

type serverMessage struct {
	Type string `json:"type"`
	*workspace.Update
	Recognize *recognizeConfig `json:"recognize,omitempty"`
}

// Dictation upgrades the request to a WebSocket and runs one dictation
// session over it until either side closes the connection or the handler
// shuts down.
func (h *Handler) Dictation(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		observe.Logger(r.Context()).Warn("dictation: websocket accept failed", "err", err)
		return
	}
	defer c.CloseNow()
	c.SetReadLimit(maxMessageBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	dc := &dictationConn{
		out: make(chan serverMessage, sendBuffer),
		log: observe.Logger(ctx),
	}
	dc.sess = h.sessions.Open(dc.publish)
	dc.log = dc.log.With("workspace", dc.sess.Workspace.ID())
	dc.log.Info("dictation connection opened", "browser_speech", dc.sess.Relay != nil)

	var writer sync.WaitGroup
	writer.Go(func() { dc.writeLoop(ctx, c) })

	dc.publish(dc.sess.Workspace.Snapshot())
	err = dc.readLoop(ctx, c)
	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		dc.log.Debug("dictation connection closed by client", "status", status)
	case ctx.Err() != nil:
		dc.log.Debug("dictation connection closed by server")
	default:
		dc.log.Warn("dictation connection failed", "err", err)
	}

	cancel()
	dc.tasks.Wait()
	dc.sess.Release()
	writer.Wait()
	dc.log.Info("dictation connection closed")
}

// dictationConn is the per-connection state of [Handler.Dictation].
type dictationConn struct {
	sess  Session
	out   chan serverMessage
	tasks sync.WaitGroup
	log   *slog.Logger
}

// publish is the workspace listener. It must not block.
func (dc *dictationConn) publish(u workspace.Update) {
	dc.send(serverMessage{Type: msgUpdate, Update: &u})
}

func (dc *dictationConn) send(msg serverMessage) {
	select {
	case dc.out <- msg:
	default:
		dc.log.Warn("dictation client too slow, dropping message", "type", msg.Type)
	}
}

func (dc *dictationConn) writeLoop(ctx context.Context, c *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-dc.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c, msg)
			cancel()
			if err != nil {
				dc.log.Debug("dictation write failed", "err", err)
				return
			}
		}
	}
}

func (dc *dictationConn) readLoop(ctx context.Context, c *websocket.Conn) error {
	ws := dc.sess.Workspace
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if typ == websocket.MessageBinary {
			if err := ws.SendAudio(data); err != nil && !errors.Is(err, dictation.ErrNotListening) {
				dc.log.Debug("dropping audio chunk", "err", err)
			}
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			dc.log.Debug("ignoring malformed dictation message", "err", err)
			continue
		}
		dc.handle(ctx, msg)
	}
}

func (dc *dictationConn) handle(ctx context.Context, msg clientMessage) {
	ws := dc.sess.Workspace
	relay := dc.sess.Relay

	switch msg.Type {
	case msgStart:
		if relay != nil {
			relay.SetSupported(msg.Supported)
		}
		err := ws.Start(ctx)
		switch {
		case err == nil && relay != nil:
			cfg := relay.Config()
			dc.send(serverMessage{Type: msgRecognize, Recognize: &recognizeConfig{
				Lang:           cfg.Language,
				Continuous:     cfg.Continuous,
				InterimResults: cfg.InterimResults,
			}})
		case errors.Is(err, dictation.ErrUnsupported):
			// The workspace already published the notice.
		case err != nil:
			dc.log.Warn("dictation start failed", "err", err)
			ws.Notify(workspace.NoticeError, "Dictation could not be started.")
		}

	case msgStop:
		if err := ws.Stop(); err != nil {
			dc.log.Warn("dictation stop failed", "err", err)
		}

	case msgResult:
		if relay == nil {
			return
		}
		if err := relay.Deliver(stt.Event{Results: msg.Results}); err != nil {
			dc.log.Debug("dropping browser result", "err", err)
		}

	case msgEnd:
		if relay != nil {
			relay.Finish(nil)
		}

	case msgError:
		if relay != nil {
			relay.Finish(fmt.Errorf("browser recogniser: %s", msg.Error))
		}

	case msgInsert:
		if _, err := ws.Insert(ctx, msg.Index, msg.Start, msg.End); err != nil {
			dc.log.Debug("insert rejected", "err", err)
			ws.Notify(workspace.NoticeError, "That citation is no longer available.")
		}

	case msgImprove:
		dc.tasks.Go(func() { ws.Improve(ctx) })

	case msgSearch:
		dc.tasks.Go(func() { ws.Search(ctx, msg.Query) })

	case msgEdit:
		ws.Edit(msg.Text)

	case msgStyle:
		ws.SetStyle(citation.Style(msg.Style))

	default:
		dc.log.Debug("ignoring unknown dictation message", "type", msg.Type)
	}
}

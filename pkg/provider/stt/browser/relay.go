// Package browser relays speech recognition that runs in the user's browser
// (the Web Speech API) into the stt port.
//
// The browser performs recognition itself and forwards its result events over
// the dictation WebSocket. A Relay belongs to one connection: the WebSocket
// handler reports whether the browser has a speech engine with SetSupported,
// pushes result events with Deliver and reports the engine's end or error
// with Finish. The dictation controller sees an ordinary stt.Provider.
package browser

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/voicewriter/pkg/provider/stt"
)

// Relay implements stt.Provider for browser-side recognition. The zero value
// is not usable; call New.
type Relay struct {
	mu        sync.Mutex
	supported bool
	cfg       stt.StreamConfig
	current   *session
}

var _ stt.Provider = (*Relay)(nil)

// New returns a Relay that assumes the browser has no speech engine until
// SetSupported(true) is called.
func New() *Relay {
	return &Relay{}
}

// SetSupported records whether the browser offers speech recognition.
func (r *Relay) SetSupported(ok bool) {
	r.mu.Lock()
	r.supported = ok
	r.mu.Unlock()
}

// Config returns the configuration of the most recent session, which the
// browser applies to its recogniser.
func (r *Relay) Config() stt.StreamConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// StartStream opens a relay session. It returns [stt.ErrUnavailable] when the
// browser has no speech engine. An older session still open is closed.
func (r *Relay) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	r.mu.Lock()
	if !r.supported {
		r.mu.Unlock()
		return nil, stt.ErrUnavailable
	}
	prev := r.current
	s := newSession()
	r.current = s
	r.cfg = cfg
	r.mu.Unlock()

	if prev != nil {
		prev.end(nil)
	}
	return s, nil
}

// Deliver forwards a browser result event to the open session. It blocks
// while the consumer is busy and returns [stt.ErrClosed] when no session is
// open.
func (r *Relay) Deliver(ev stt.Event) error {
	r.mu.Lock()
	s := r.current
	r.mu.Unlock()
	if s == nil {
		return stt.ErrClosed
	}
	return s.deliver(ev)
}

// Finish ends the open session because the browser's recogniser stopped. A
// non-nil err marks an error end. Finish without an open session is a no-op.
func (r *Relay) Finish(err error) {
	r.mu.Lock()
	s := r.current
	r.current = nil
	r.mu.Unlock()
	if s != nil {
		s.end(err)
	}
}

type session struct {
	events   chan stt.Event
	done     chan struct{}
	doneOnce sync.Once

	mu     sync.Mutex
	closed bool
	err    error
}

func newSession() *session {
	return &session{
		events: make(chan stt.Event, 8),
		done:   make(chan struct{}),
	}
}

func (s *session) deliver(ev stt.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stt.ErrClosed
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return stt.ErrClosed
	}
}

func (s *session) end(err error) {
	s.doneOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		s.err = err
		close(s.events)
		s.mu.Unlock()
	})
}

func (s *session) SendAudio([]byte) error {
	return errors.New("browser: audio is recognised client-side")
}

func (s *session) Events() <-chan stt.Event { return s.events }

func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *session) Close() error {
	s.end(nil)
	return nil
}

// Package stt defines the speech capture capability used by the dictation
// controller.
//
// A Provider opens a recognition session; the session emits result events
// until it ends by itself, fails, or is closed by the caller. Two kinds of
// backends exist: relays for recognition that already happens elsewhere (the
// browser's speech engine) and streaming services that receive raw PCM audio
// through SendAudio (Deepgram, whisper.cpp).
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by StartStream when the capability does not
// exist in the current environment, for example a browser without a speech
// engine. Callers report it to the user instead of retrying.
var ErrUnavailable = errors.New("stt: speech capture unavailable")

// ErrClosed is returned by SendAudio after the session has ended.
var ErrClosed = errors.New("stt: session closed")

// StreamConfig describes the recognition settings for a new session.
type StreamConfig struct {
	// Language is the BCP-47 language tag, e.g. "en-US". Empty lets the
	// provider choose.
	Language string

	// Continuous keeps the session open across pauses instead of ending after
	// the first utterance.
	Continuous bool

	// InterimResults asks for non-final results while the speaker talks.
	InterimResults bool

	// SampleRate and Channels describe PCM audio passed to SendAudio. They
	// are ignored by relays.
	SampleRate int
	Channels   int

	// Keywords are vocabulary hints such as author names or technical terms.
	Keywords []string
}

// SessionHandle is an open recognition session.
//
// Events is closed when the session ends; Err then reports why. Close may be
// called at any time and more than once.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio. Relays that receive
	// recognised text instead of audio return an error.
	SendAudio(chunk []byte) error

	// Events returns the channel of result events.
	Events() <-chan Event

	// Err returns the error that ended the session, or nil for a natural end
	// or a Close by the caller. It is only meaningful after Events is closed.
	Err() error

	// Close ends the session and releases its resources. After Close returns
	// the Events channel is closed.
	Close() error
}

// Provider opens recognition sessions.
type Provider interface {
	// StartStream opens a session. The caller owns the handle and must Close
	// it.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

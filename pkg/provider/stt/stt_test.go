package stt_test

import (
	"testing"

	"github.com/MrWong99/voicewriter/pkg/provider/stt"
)

func TestFinalText(t *testing.T) {
	t.Parallel()

	final := func(s ...string) stt.Result {
		r := stt.Result{IsFinal: true}
		for _, a := range s {
			r.Alternatives = append(r.Alternatives, stt.Alternative{Transcript: a})
		}
		return r
	}
	interim := func(s string) stt.Result {
		return stt.Result{Alternatives: []stt.Alternative{{Transcript: s}}}
	}

	tests := []struct {
		name    string
		results []stt.Result
		final   string
		interim string
	}{
		{"empty", nil, "", ""},
		{"single final", []stt.Result{final(" hello world ")}, "hello world", ""},
		{"top alternative only", []stt.Result{final("cite smith", "site smith")}, "cite smith", ""},
		{"concatenates finals", []stt.Result{final("The result"), final("is significant")}, "The result is significant", ""},
		{"skips interim", []stt.Result{final("kept"), interim(" pending")}, "kept", "pending"},
		{"final without alternatives", []stt.Result{{IsFinal: true}, final("x")}, "x", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := stt.FinalText(tc.results); got != tc.final {
				t.Errorf("FinalText = %q, want %q", got, tc.final)
			}
			if got := stt.InterimText(tc.results); got != tc.interim {
				t.Errorf("InterimText = %q, want %q", got, tc.interim)
			}
		})
	}
}

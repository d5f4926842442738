package stt

import "strings"

// Alternative is one recognition hypothesis.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Result is one recognised segment with its hypotheses, best first.
type Result struct {
	IsFinal      bool          `json:"isFinal"`
	Alternatives []Alternative `json:"alternatives"`
}

// Event is one batch of results delivered by a session.
type Event struct {
	Results []Result `json:"results"`
}

// FinalText joins the top alternative of every final result in order, each
// followed by a space, and trims the outcome. Interim results are ignored.
func FinalText(results []Result) string {
	var sb strings.Builder
	for _, r := range results {
		if !r.IsFinal || len(r.Alternatives) == 0 {
			continue
		}
		sb.WriteString(r.Alternatives[0].Transcript)
		sb.WriteByte(' ')
	}
	return strings.TrimSpace(sb.String())
}

// InterimText is like FinalText for the non-final results. It drives live
// captions only.
func InterimText(results []Result) string {
	var sb strings.Builder
	for _, r := range results {
		if r.IsFinal || len(r.Alternatives) == 0 {
			continue
		}
		sb.WriteString(r.Alternatives[0].Transcript)
		sb.WriteByte(' ')
	}
	return strings.TrimSpace(sb.String())
}

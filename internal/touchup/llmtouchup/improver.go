// Package llmtouchup implements a language-model backend for the text
// touch-up step.
//
// The [Improver] sends one paragraph of dictated prose to an [llm.Provider]
// with a conservative system prompt asking for light academic polishing and
// a JSON answer of the form {"improved_text": "..."}. It satisfies
// [touchup.Improver]; the touchup.Client owns the fallback to local rules, so
// Improve reports every unusable answer as an error instead of guessing.
package llmtouchup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/voicewriter/internal/touchup"
	"github.com/MrWong99/voicewriter/pkg/provider/llm"
)

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 1024
)

// ErrEmptyAnswer is returned when the model answers with no improved text.
var ErrEmptyAnswer = errors.New("llmtouchup: empty answer")

const systemPrompt = `You are an editing assistant for an academic writer who dictates drafts by voice.

Your task: lightly improve the paragraph you are given.

Rules:
- Fix grammar, punctuation and capitalisation, and expand colloquial contractions such as "gonna" or "wanna".
- Keep the author's meaning, claims, terminology and voice. Do not add facts or sources.
- Keep in-text citations such as "(Smith, 2020)" exactly as written.
- Return a single paragraph without line breaks.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{"improved_text": "<the improved paragraph>"}`

type answer struct {
	ImprovedText string `json:"improved_text"`
}

// Option is a functional option for configuring an [Improver].
type Option func(*Improver)

// WithTemperature sets the sampling temperature. Default: 0.2.
func WithTemperature(temp float64) Option {
	return func(i *Improver) {
		i.temperature = temp
	}
}

// WithMaxTokens caps the answer length. The value is clamped to the model's
// output limit. Default: 1024.
func WithMaxTokens(n int) Option {
	return func(i *Improver) {
		i.maxTokens = n
	}
}

// Improver polishes text with an [llm.Provider]. It is safe for concurrent
// use.
type Improver struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
}

var _ touchup.Improver = (*Improver)(nil)

// New returns an Improver backed by provider.
func New(provider llm.Provider, opts ...Option) *Improver {
	i := &Improver{
		llm:         provider,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Improve asks the model for an improved version of text. Completion errors,
// unparseable answers and empty answers are returned as errors.
func (i *Improver) Improve(ctx context.Context, text string) (string, error) {
	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  i.temperature,
		MaxTokens:    llm.ClampMaxTokens(i.maxTokens, i.llm.Capabilities()),
		JSONObject:   true,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: text},
		},
	}

	resp, err := i.llm.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llmtouchup: complete: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyAnswer
	}
	return parseAnswer(resp.Content)
}

func parseAnswer(content string) (string, error) {
	var a answer
	if err := json.Unmarshal([]byte(stripMarkdown(content)), &a); err != nil {
		return "", fmt.Errorf("llmtouchup: parse answer: %w", err)
	}
	improved := strings.TrimSpace(a.ImprovedText)
	if improved == "" {
		return "", ErrEmptyAnswer
	}
	return improved, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models wrap around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

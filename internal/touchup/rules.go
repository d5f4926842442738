// Package touchup improves dictated prose before it lands in the manuscript.
//
// The baseline is [Rules], a purely local pass that trims the text, expands
// a few colloquial contractions and makes sure the text ends in sentence
// punctuation. An optional [Improver] backend (see package llmtouchup) may do
// more; [Client] always falls back to Rules when the backend errors or
// returns nothing usable, so callers only ever see a before and an after
// string.
package touchup

import (
	"context"
	"regexp"
	"strings"
)

// Improver rewrites a piece of text. Implementations must be safe for
// concurrent use.
type Improver interface {
	Improve(ctx context.Context, text string) (string, error)
}

// Replacement is a case-insensitive whole-word substitution.
type Replacement struct {
	Word string
	With string
}

// DefaultReplacements are the colloquialisms expanded by [Cleanup].
var DefaultReplacements = []Replacement{
	{Word: "gonna", With: "going to"},
	{Word: "wanna", With: "want to"},
	{Word: "kinda", With: "somewhat"},
}

// Rules is the local, deterministic Improver. The zero value uses
// DefaultReplacements.
type Rules struct {
	patterns []rule
}

type rule struct {
	re   *regexp.Regexp
	with string
}

var _ Improver = (*Rules)(nil)

// NewRules compiles a rule set. Nil or empty replacements select
// DefaultReplacements.
func NewRules(replacements []Replacement) *Rules {
	if len(replacements) == 0 {
		replacements = DefaultReplacements
	}
	r := &Rules{patterns: make([]rule, 0, len(replacements))}
	for _, rep := range replacements {
		r.patterns = append(r.patterns, rule{
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(rep.Word) + `\b`),
			with: rep.With,
		})
	}
	return r
}

var defaultRules = NewRules(nil)

// Improve implements Improver. It never fails.
func (r *Rules) Improve(_ context.Context, text string) (string, error) {
	return r.apply(text), nil
}

func (r *Rules) apply(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}
	patterns := r.patterns
	if patterns == nil {
		patterns = defaultRules.patterns
	}
	for _, p := range patterns {
		s = p.re.ReplaceAllLiteralString(s, p.with)
	}
	if !endsSentence(s) {
		s += "."
	}
	return s
}

// Cleanup applies the default rules to text. Blank input yields "".
func Cleanup(text string) string {
	return defaultRules.apply(text)
}

func endsSentence(s string) bool {
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

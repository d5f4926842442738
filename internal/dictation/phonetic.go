package dictation

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// matcher decides whether a spoken word is a misrecognized command word.
//
// Double Metaphone codes of both words must overlap and their Jaro-Winkler
// similarity must reach phoneticThreshold. Without a phonetic overlap the
// stricter fuzzyThreshold applies to the plain similarity.
type matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

func newMatcher() matcher {
	return matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
}

func (m matcher) match(word, command string) bool {
	word = strings.ToLower(strings.Trim(word, ".,;:!? "))
	command = strings.ToLower(command)
	if word == "" {
		return false
	}
	if word == command {
		return true
	}

	score := matchr.JaroWinkler(word, command, false)
	if codesOverlap(codesFor(word), codesFor(command)) {
		return score >= m.phoneticThreshold
	}
	return score >= m.fuzzyThreshold
}

// codesFor returns the non-empty Double Metaphone codes of word.
func codesFor(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

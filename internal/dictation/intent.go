// Package dictation turns a stream of speech recognition events into
// manuscript commands.
//
// [Classify] maps one finalized utterance to a [Command]. The [Controller]
// owns the speech capture handle, moves between [StateIdle] and
// [StateListening], and dispatches every classified utterance to a
// [Handler].
package dictation

import (
	"strings"
)

// Intent is the kind of command an utterance expresses.
type Intent int

const (
	// IntentNone means the utterance carries nothing to act on.
	IntentNone Intent = iota

	// IntentDictate appends the utterance to the manuscript body.
	IntentDictate

	// IntentCite searches for a citation matching the query.
	IntentCite

	// IntentImprove touches up the last paragraph of the body.
	IntentImprove
)

// String returns the lower-case intent name used in logs and metrics.
func (i Intent) String() string {
	switch i {
	case IntentDictate:
		return "dictate"
	case IntentCite:
		return "cite"
	case IntentImprove:
		return "improve"
	default:
		return "none"
	}
}

// Command is a classified utterance. Text is the dictated text for
// IntentDictate, the search query for IntentCite and empty otherwise.
type Command struct {
	Intent Intent
	Text   string
}

var citePrefixes = []string{"add citation ", "cite "}

var improvePhrases = []string{"improve last paragraph", "improve paragraph"}

// ClassifierOption configures a [Classifier].
type ClassifierOption func(*Classifier)

// WithPhoneticCommands lets a first word that sounds like "cite" (for example
// "site") start a citation command.
func WithPhoneticCommands(enabled bool) ClassifierOption {
	return func(c *Classifier) {
		c.phonetic = enabled
	}
}

// WithPhoneticThreshold sets the minimum Jaro-Winkler score a phonetically
// matching word needs. Default: 0.70.
func WithPhoneticThreshold(threshold float64) ClassifierOption {
	return func(c *Classifier) {
		c.matcher.phoneticThreshold = threshold
	}
}

// Classifier maps utterances to commands. It is read-only after construction
// and safe for concurrent use.
type Classifier struct {
	phonetic bool
	matcher  matcher
}

// NewClassifier returns a Classifier configured with opts. Phonetic
// tolerance is off by default.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{matcher: newMatcher()}
	for _, o := range opts {
		o(c)
	}
	return c
}

var defaultClassifier = NewClassifier()

// Classify maps text with the default, exact-match classifier.
func Classify(text string) Command {
	return defaultClassifier.Classify(text)
}

// Classify maps one finalized utterance to a command:
//
//   - "cite <query>" or "add citation <query>" (any case) is IntentCite with
//     the trimmed query; a blank query is IntentNone.
//   - "improve last paragraph" or "improve paragraph", ignoring case and
//     trailing punctuation, is IntentImprove.
//   - any other non-blank text is IntentDictate.
func (c *Classifier) Classify(text string) Command {
	text = strings.TrimSpace(text)
	if text == "" {
		return Command{Intent: IntentNone}
	}

	for _, prefix := range citePrefixes {
		if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
			return citeCommand(text[len(prefix):])
		}
	}

	phrase := strings.Join(strings.Fields(strings.ToLower(strings.TrimRight(text, ".!?,;: "))), " ")
	for _, p := range improvePhrases {
		if phrase == p {
			return Command{Intent: IntentImprove}
		}
	}

	if c.phonetic {
		first, rest, found := strings.Cut(text, " ")
		if found && c.matcher.match(first, "cite") {
			return citeCommand(rest)
		}
	}

	return Command{Intent: IntentDictate, Text: text}
}

func citeCommand(query string) Command {
	query = strings.TrimSpace(query)
	if query == "" {
		return Command{Intent: IntentNone}
	}
	return Command{Intent: IntentCite, Text: query}
}

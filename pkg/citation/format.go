package citation

import (
	"strings"
	"unicode"
)

// Style names a citation style. The set is open: any non-empty string is
// accepted and unknown styles are rendered with the APA rule.
type Style string

// StyleAPA is the default citation style.
const StyleAPA Style = "APA"

// Placeholders substituted for empty record fields.
const (
	DefaultTitle   = "Untitled"
	DefaultAuthors = "Unknown"
	DefaultYear    = "n.d."
	DefaultJournal = "Unknown Journal"
)

// DOIBaseURL prefixes a record ID in the reference-list entry.
const DOIBaseURL = "https://doi.org/"

// Formatted is a record rendered in a given style.
type Formatted struct {
	// InText is the parenthetical form without the parentheses, e.g.
	// "Smith et al., 2020".
	InText string `json:"inText"`

	// Full is the reference-list entry.
	Full string `json:"full"`
}

// ParseStyle maps user input to a Style. Blank input yields StyleAPA.
func ParseStyle(s string) Style {
	s = strings.TrimSpace(s)
	if s == "" {
		return StyleAPA
	}
	return Style(s)
}

// Format renders r in the given style. It is pure: the same record and style
// always produce the same output.
//
// Every style currently shares the APA rule, so the style is not consulted.
func Format(r Record, _ Style) Formatted {
	return apa(r)
}

func apa(r Record) Formatted {
	title := orDefault(r.Title, DefaultTitle)
	authors := orDefault(r.Authors, DefaultAuthors)
	year := orDefault(r.Year, DefaultYear)
	journal := orDefault(r.Journal, DefaultJournal)

	var doi string
	if r.ID != "" {
		doi = DOIBaseURL + r.ID
	}

	full := authors + " (" + year + "). " + title + ". " + journal + ". " + doi
	return Formatted{
		InText: authors + ", " + year,
		Full:   strings.TrimRightFunc(full, unicode.IsSpace),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

package citation

import (
	"regexp"
	"strings"
)

// JoinAuthors builds the display author string from surnames in order:
// none yields "Unknown", one yields the surname, two are joined with " & ",
// and three or more collapse to the first surname plus " et al.".
func JoinAuthors(surnames []string) string {
	switch len(surnames) {
	case 0:
		return DefaultAuthors
	case 1:
		return surnames[0]
	case 2:
		return surnames[0] + " & " + surnames[1]
	default:
		return surnames[0] + " et al."
	}
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a stable identifier for a work without a DOI from its title
// and year: the lowercased title (or "untitled") with every run of
// non-alphanumeric characters replaced by "-", suffixed with "-" and year.
func Slug(title, year string) string {
	t := strings.ToLower(title)
	if t == "" {
		t = "untitled"
	}
	return nonAlnum.ReplaceAllString(t, "-") + "-" + year
}

// ReferenceLine returns f.Full with every run of whitespace folded into a
// single space so the entry always fits on one line of a reference list.
func ReferenceLine(f Formatted) string {
	return normalizeSpace(f.Full)
}

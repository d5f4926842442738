// Package manuscript holds the draft being dictated.
//
// A [Document] is one string split by [Marker] into a body and a references
// list. The body takes dictated text and in-text citations; the references
// region only ever grows by whole reference lines. Cursor positions count
// Unicode code points, not the UTF-16 units a browser textarea reports.
//
// A Document is not safe for concurrent use; the owning workspace serializes
// access.
package manuscript

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/voicewriter/pkg/citation"
)

// Marker separates the body from the references list.
const Marker = "\n\nReferences\n"

// markerHead is Marker without its final newline. A body ending in it would
// form a second marker when serialized.
var markerHead = Marker[:len(Marker)-1]

// paragraphBreak matches the blank-line runs that separate paragraphs.
var paragraphBreak = regexp.MustCompile(`\n\n+`)

// Document is a manuscript draft. The zero value is an empty document.
type Document struct {
	body string
	refs string
}

// Parse splits s on the first marker. Marker text that would make the split
// ambiguous is neutralized, so Parse(d.String()) always reproduces d.
func Parse(s string) *Document {
	d := &Document{}
	d.Replace(s)
	return d
}

// Replace overwrites the whole document, as when the user edits the text
// directly.
func (d *Document) Replace(s string) {
	body, refs, _ := strings.Cut(s, Marker)
	d.body = body
	d.refs = refs
	d.sanitize()
}

// String serializes the document: body + Marker + references when there are
// references, the body alone otherwise.
func (d *Document) String() string {
	if d.refs == "" {
		return d.body
	}
	return d.body + Marker + d.refs
}

// Body returns the text before the marker.
func (d *Document) Body() string {
	return d.body
}

// References returns the text after the marker.
func (d *Document) References() string {
	return d.refs
}

// ReferenceLines returns the non-blank lines of the references region.
func (d *Document) ReferenceLines() []string {
	var lines []string
	for _, l := range strings.Split(d.refs, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// BodyLen returns the body length in code points, the caret position at the
// end of the body.
func (d *Document) BodyLen() int {
	return utf8.RuneCountInString(d.body)
}

// AppendUtterance adds dictated text to the body. A blank body is replaced by
// text; otherwise a single space separates the two unless the body already
// ends in whitespace. Blank text is ignored. References are kept.
func (d *Document) AppendUtterance(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	switch {
	case strings.TrimSpace(d.body) == "":
		d.body = text
	case endsInSpace(d.body):
		d.body += text
	default:
		d.body += " " + text
	}
	d.sanitize()
}

// InsertCitation splices " (inText)" into the body over the selection
// [start, end), appends f.Full as a new reference line and returns the caret
// position just after the inserted marker. Positions are clamped to the body;
// an end before start collapses the selection to start. start, end and the
// result count code points; callers holding UTF-16 offsets must convert.
func (d *Document) InsertCitation(f citation.Formatted, start, end int) int {
	body := []rune(d.body)
	start = clamp(start, 0, len(body))
	end = clamp(end, start, len(body))

	insert := " (" + f.InText + ")"
	d.body = strings.TrimRightFunc(string(body[:start])+insert+string(body[end:]), unicode.IsSpace)

	line := citation.ReferenceLine(f)
	if refs := strings.TrimSpace(d.refs); refs != "" {
		d.refs = refs + "\n" + line + "\n"
	} else {
		d.refs = line + "\n"
	}
	d.sanitize()

	return min(start+utf8.RuneCountInString(insert), d.BodyLen())
}

// LastParagraph returns the text after the last blank-line break of the body.
func (d *Document) LastParagraph() string {
	paras := paragraphBreak.Split(d.body, -1)
	return paras[len(paras)-1]
}

// ImproveLastParagraph replaces the last paragraph of the body with improved
// and reports whether the document changed. An empty improved keeps the
// original paragraph, and a blank last paragraph leaves the document alone.
// Paragraphs are rejoined with a single blank line; the references region is
// untouched.
func (d *Document) ImproveLastParagraph(improved string) bool {
	paras := paragraphBreak.Split(d.body, -1)
	last := paras[len(paras)-1]
	if strings.TrimSpace(last) == "" {
		return false
	}
	if improved != "" {
		paras[len(paras)-1] = improved
	}
	before := d.body
	d.body = strings.Join(paras, "\n\n")
	d.sanitize()
	return d.body != before
}

// sanitize keeps the marker unique. The body never contains it. Once there
// are references, the body may not end in the marker's head and the
// references may neither contain the marker nor start with its tail.
func (d *Document) sanitize() {
	d.body = neutralize(d.body)
	if d.refs == "" {
		return
	}
	for strings.HasSuffix(d.body, markerHead) {
		d.body = d.body[:len(d.body)-len(markerHead)] + markerHead[1:]
	}
	d.refs = neutralize("\n" + d.refs)[1:]
}

// neutralize drops one leading newline from every marker occurrence until none
// is left.
func neutralize(s string) string {
	for strings.Contains(s, Marker) {
		s = strings.ReplaceAll(s, Marker, Marker[1:])
	}
	return s
}

func endsInSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

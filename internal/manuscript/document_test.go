package manuscript_test

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/voicewriter/internal/manuscript"
	"github.com/MrWong99/voicewriter/pkg/citation"
)

var smith = citation.Formatted{
	InText: "Smith, 2020",
	Full:   "Smith (2020). On significance. Journal of Results. https://doi.org/10.1000/xyz",
}

func TestAppendUtterance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		text string
		want string
	}{
		{"empty document", "", "Hello", "Hello"},
		{"adds a space", "Hello", "world", "Hello world"},
		{"no double space", "Hello ", "world", "Hello world"},
		{"after newline", "Hello\n", "world", "Hello\nworld"},
		{"blank body replaced", "  \n ", "Hello", "Hello"},
		{"blank text ignored", "Hello", "   ", "Hello"},
		{
			name: "references kept",
			doc:  "Body" + manuscript.Marker + "Ref line\n",
			text: "more",
			want: "Body more" + manuscript.Marker + "Ref line\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := manuscript.Parse(tc.doc)
			d.AppendUtterance(tc.text)
			if got := d.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInsertCitation_AtEnd(t *testing.T) {
	t.Parallel()

	d := manuscript.Parse("The result is significant")
	end := d.BodyLen()
	caret := d.InsertCitation(smith, end, end)

	if got, want := d.Body(), "The result is significant (Smith, 2020)"; got != want {
		t.Errorf("Body() = %q, want %q", got, want)
	}
	if diff := cmp.Diff([]string{smith.Full}, d.ReferenceLines()); diff != "" {
		t.Errorf("reference lines (-want +got):\n%s", diff)
	}
	if got, want := d.String(), "The result is significant (Smith, 2020)"+manuscript.Marker+smith.Full+"\n"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if caret != 39 {
		t.Errorf("caret = %d, want 39", caret)
	}
}

func TestInsertCitation(t *testing.T) {
	t.Parallel()

	x := citation.Formatted{InText: "X", Full: "X ref."}

	tests := []struct {
		name       string
		doc        string
		start, end int
		wantBody   string
		wantRefs   string
		wantCaret  int
	}{
		{
			name:      "middle of body",
			doc:       "Größe ist wichtig",
			start:     5,
			end:       5,
			wantBody:  "Größe (X) ist wichtig",
			wantRefs:  "X ref.\n",
			wantCaret: 9,
		},
		{
			name:      "positions count code points",
			doc:       "Notes 📎 here",
			start:     7,
			end:       7,
			wantBody:  "Notes 📎 (X) here",
			wantRefs:  "X ref.\n",
			wantCaret: 11,
		},
		{
			name:      "replaces selection",
			doc:       "The cat sat",
			start:     4,
			end:       7,
			wantBody:  "The  (X) sat",
			wantRefs:  "X ref.\n",
			wantCaret: 8,
		},
		{
			name:      "clamps out of range",
			doc:       "abc",
			start:     -5,
			end:       1000,
			wantBody:  " (X)",
			wantRefs:  "X ref.\n",
			wantCaret: 4,
		},
		{
			name:      "end before start collapses",
			doc:       "abcdef",
			start:     3,
			end:       1,
			wantBody:  "abc (X)def",
			wantRefs:  "X ref.\n",
			wantCaret: 7,
		},
		{
			name:      "trims trailing whitespace of body",
			doc:       "Hello   \n",
			start:     5,
			end:       5,
			wantBody:  "Hello (X)",
			wantRefs:  "X ref.\n",
			wantCaret: 9,
		},
		{
			name:      "cursor beyond body stays out of references",
			doc:       "Body" + manuscript.Marker + "A ref.\n",
			start:     50,
			end:       50,
			wantBody:  "Body (X)",
			wantRefs:  "A ref.\nX ref.\n",
			wantCaret: 8,
		},
		{
			name:      "blank lines around references dropped",
			doc:       "Body" + manuscript.Marker + "\n\nA ref.\n\n\n",
			start:     4,
			end:       4,
			wantBody:  "Body (X)",
			wantRefs:  "A ref.\nX ref.\n",
			wantCaret: 8,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := manuscript.Parse(tc.doc)
			caret := d.InsertCitation(x, tc.start, tc.end)
			if got := d.Body(); got != tc.wantBody {
				t.Errorf("Body() = %q, want %q", got, tc.wantBody)
			}
			if got := d.References(); got != tc.wantRefs {
				t.Errorf("References() = %q, want %q", got, tc.wantRefs)
			}
			if caret != tc.wantCaret {
				t.Errorf("caret = %d, want %d", caret, tc.wantCaret)
			}
		})
	}
}

func TestInsertCitation_FoldsMultilineReference(t *testing.T) {
	t.Parallel()

	d := manuscript.Parse("Body")
	d.InsertCitation(citation.Formatted{InText: "A, 1999", Full: "A (1999).\nTitle.\n\nJournal."}, 4, 4)
	if diff := cmp.Diff([]string{"A (1999). Title. Journal."}, d.ReferenceLines()); diff != "" {
		t.Errorf("reference lines (-want +got):\n%s", diff)
	}
}

func TestImproveLastParagraph(t *testing.T) {
	t.Parallel()

	refs := manuscript.Marker + "Smith (2020). T. J.\n"
	tests := []struct {
		name     string
		doc      string
		improved string
		want     string
		changed  bool
	}{
		{
			name:     "single paragraph",
			doc:      "i wanna go",
			improved: "I want to go.",
			want:     "I want to go.",
			changed:  true,
		},
		{
			name:     "last of several",
			doc:      "First.\n\nsecond one",
			improved: "Second one.",
			want:     "First.\n\nSecond one.",
			changed:  true,
		},
		{
			name:     "references untouched",
			doc:      "First.\n\nsecond (Smith, 2020)" + refs,
			improved: "Second (Smith, 2020).",
			want:     "First.\n\nSecond (Smith, 2020)." + refs,
			changed:  true,
		},
		{
			name:     "collapses long breaks",
			doc:      "a\n\n\n\nb",
			improved: "B.",
			want:     "a\n\nB.",
			changed:  true,
		},
		{
			name:     "heading at end of body",
			doc:      "A" + refs,
			improved: "B\n\nReferences",
			want:     "B\nReferences" + refs,
			changed:  true,
		},
		{
			name:     "empty replacement keeps original",
			doc:      "First.\n\nsecond",
			improved: "",
			want:     "First.\n\nsecond",
		},
		{
			name:     "blank last paragraph",
			doc:      "First.\n\n",
			improved: "Ignored.",
			want:     "First.\n\n",
		},
		{
			name:     "empty document",
			doc:      "",
			improved: "Ignored.",
			want:     "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := manuscript.Parse(tc.doc)
			if changed := d.ImproveLastParagraph(tc.improved); changed != tc.changed {
				t.Errorf("changed = %v, want %v", changed, tc.changed)
			}
			if got := d.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLastParagraph(t *testing.T) {
	t.Parallel()

	d := manuscript.Parse("One.\n\nTwo\nlines." + manuscript.Marker + "Ref.\n")
	if got := d.LastParagraph(); got != "Two\nlines." {
		t.Errorf("LastParagraph() = %q", got)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       string
		wantBody string
		wantRefs string
	}{
		{"no marker", "Just text", "Just text", ""},
		{"marker", "Body" + manuscript.Marker + "A.\nB.\n", "Body", "A.\nB.\n"},
		{"first marker wins", "Body" + manuscript.Marker + "A." + manuscript.Marker + "B.", "Body", "A.\nReferences\nB."},
		{"marker without references", "Body" + manuscript.Marker, "Body", ""},
		{"references starting with heading", "Body" + manuscript.Marker + "\nReferences\nA.", "Body", "References\nA."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := manuscript.Parse(tc.in)
			if d.Body() != tc.wantBody || d.References() != tc.wantRefs {
				t.Errorf("Parse(%q) = body %q refs %q, want body %q refs %q",
					tc.in, d.Body(), d.References(), tc.wantBody, tc.wantRefs)
			}
		})
	}
}

func TestAppendUtterance_NeutralizesMarker(t *testing.T) {
	t.Parallel()

	d := manuscript.Parse("Intro\n\n")
	d.AppendUtterance("References\nnot a list")
	if strings.Contains(d.String(), manuscript.Marker) {
		t.Fatalf("dictated text created a marker: %q", d.String())
	}
	if d.References() != "" {
		t.Errorf("References() = %q, want empty", d.References())
	}
}

// TestMarkerIntegrity drives random operation sequences and checks that the
// marker stays unique and separates body from references.
func TestMarkerIntegrity(t *testing.T) {
	t.Parallel()

	pieces := []string{"a", "b ", " ", "\n", "\n\n", "References", "References\n", manuscript.Marker, "ü", "\t"}
	rng := rand.New(rand.NewPCG(7, 11))
	text := func() string {
		var sb strings.Builder
		for range rng.IntN(6) {
			sb.WriteString(pieces[rng.IntN(len(pieces))])
		}
		return sb.String()
	}

	for run := range 200 {
		d := &manuscript.Document{}
		for step := range 30 {
			switch rng.IntN(5) {
			case 0, 1:
				d.AppendUtterance(text())
			case 2:
				n := d.BodyLen() + 4
				d.InsertCitation(citation.Formatted{InText: text(), Full: text()}, rng.IntN(n)-2, rng.IntN(n)-2)
			case 3:
				d.ImproveLastParagraph(text())
			case 4:
				d.Replace(text() + d.String() + text())
			}

			s := d.String()
			if n := strings.Count(s, manuscript.Marker); n > 1 {
				t.Fatalf("run %d step %d: %d markers in %q", run, step, n, s)
			}
			if strings.Contains(d.Body(), manuscript.Marker) {
				t.Fatalf("run %d step %d: marker inside body %q", run, step, d.Body())
			}
			if d.References() != "" && strings.Index(s, manuscript.Marker) != len(d.Body()) {
				t.Fatalf("run %d step %d: marker does not separate body from references in %q", run, step, s)
			}
			back := manuscript.Parse(s)
			if back.Body() != d.Body() || back.References() != d.References() {
				t.Fatalf("run %d step %d: round trip changed %q into body %q refs %q",
					run, step, s, back.Body(), back.References())
			}
		}
	}
}

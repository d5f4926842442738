package citation_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/voicewriter/pkg/citation"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		record citation.Record
		want   citation.Formatted
	}{
		{
			name: "complete record",
			record: citation.Record{
				Title:   "Deep Learning",
				Authors: "LeCun et al.",
				Year:    "2015",
				Journal: "Nature",
				ID:      "10.1038/nature14539",
			},
			want: citation.Formatted{
				InText: "LeCun et al., 2015",
				Full:   "LeCun et al. (2015). Deep Learning. Nature. https://doi.org/10.1038/nature14539",
			},
		},
		{
			name:   "empty record uses every default",
			record: citation.Record{},
			want: citation.Formatted{
				InText: "Unknown, n.d.",
				Full:   "Unknown (n.d.). Untitled. Unknown Journal.",
			},
		},
		{
			name: "no id omits doi url",
			record: citation.Record{
				Title:   "A Study",
				Authors: "Smith & Jones",
				Year:    "2019",
				Journal: "Science",
			},
			want: citation.Formatted{
				InText: "Smith & Jones, 2019",
				Full:   "Smith & Jones (2019). A Study. Science.",
			},
		},
		{
			name:   "slug id still renders as doi url",
			record: citation.Record{Title: "X", Authors: "Doe", Year: "2001", Journal: "J", ID: "x-2001"},
			want: citation.Formatted{
				InText: "Doe, 2001",
				Full:   "Doe (2001). X. J. https://doi.org/x-2001",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := citation.Format(tc.record, citation.StyleAPA)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Format() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormat_StyleIndependent(t *testing.T) {
	t.Parallel()

	r := citation.Record{Title: "T", Authors: "A", Year: "2000", Journal: "J", ID: "10.1/x"}
	want := citation.Format(r, citation.StyleAPA)
	for _, style := range []citation.Style{"MLA", "Chicago", "", "apa"} {
		if got := citation.Format(r, style); got != want {
			t.Errorf("Format(r, %q) = %+v, want %+v", style, got, want)
		}
	}
}

func TestFormat_NoTrailingWhitespace(t *testing.T) {
	t.Parallel()

	records := []citation.Record{
		{},
		{Journal: "Journal With Space "},
		{ID: "10.1/abc"},
		{Title: "T", Authors: "A", Year: "1999", Journal: "J\n"},
	}
	for _, r := range records {
		got := citation.Format(r, citation.StyleAPA).Full
		if got != strings.TrimRight(got, " \t\r\n") {
			t.Errorf("Format(%+v).Full = %q, has trailing whitespace", r, got)
		}
	}
}

func TestFormat_Idempotent(t *testing.T) {
	t.Parallel()

	r := citation.Record{Title: "T", Authors: "A", Year: "2000"}
	first := citation.Format(r, citation.StyleAPA)
	second := citation.Format(r, citation.StyleAPA)
	if first != second {
		t.Errorf("Format not deterministic: %+v vs %+v", first, second)
	}
}

func TestParseStyle(t *testing.T) {
	t.Parallel()

	tests := map[string]citation.Style{
		"":        citation.StyleAPA,
		"  ":      citation.StyleAPA,
		"APA":     citation.StyleAPA,
		" MLA ":   "MLA",
		"harvard": "harvard",
	}
	for in, want := range tests {
		if got := citation.ParseStyle(in); got != want {
			t.Errorf("ParseStyle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoinAuthors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []string
		want string
	}{
		{nil, "Unknown"},
		{[]string{"Smith"}, "Smith"},
		{[]string{"Smith", "Jones"}, "Smith & Jones"},
		{[]string{"Smith", "Jones", "Brown"}, "Smith et al."},
		{[]string{"Smith", "Jones", "Brown", "Lee"}, "Smith et al."},
	}
	for _, tc := range tests {
		if got := citation.JoinAuthors(tc.in); got != tc.want {
			t.Errorf("JoinAuthors(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title, year, want string
	}{
		{"Deep Learning: A Review", "2015", "deep-learning-a-review-2015"},
		{"", "n.d.", "untitled-n.d."},
		{"Hello, World!", "2020", "hello-world--2020"},
		{"Über Alles", "1999", "-ber-alles-1999"},
	}
	for _, tc := range tests {
		if got := citation.Slug(tc.title, tc.year); got != tc.want {
			t.Errorf("Slug(%q, %q) = %q, want %q", tc.title, tc.year, got, tc.want)
		}
	}
}

func TestReferenceLine(t *testing.T) {
	t.Parallel()

	f := citation.Formatted{Full: "Smith (2020). Line\nbreak.  Journal."}
	if got, want := citation.ReferenceLine(f), "Smith (2020). Line break. Journal."; got != want {
		t.Errorf("ReferenceLine() = %q, want %q", got, want)
	}
}

func TestRecord_JSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want citation.Record
	}{
		{
			name: "canonical",
			in:   `{"title":"T","authors":"A","year":"2020","journal":"J","doi":"10.1/x"}`,
			want: citation.Record{Title: "T", Authors: "A", Year: "2020", Journal: "J", ID: "10.1/x"},
		},
		{
			name: "id alias",
			in:   `{"title":"T","id":"t-2020"}`,
			want: citation.Record{Title: "T", ID: "t-2020"},
		},
		{
			name: "doi wins over id",
			in:   `{"doi":"10.1/x","id":"slug"}`,
			want: citation.Record{ID: "10.1/x"},
		},
		{
			name: "numeric year",
			in:   `{"year":2021}`,
			want: citation.Record{Year: "2021"},
		},
		{
			name: "null year",
			in:   `{"year":null}`,
			want: citation.Record{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var got citation.Record
			if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
				t.Fatalf("Unmarshal(%s): %v", tc.in, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Unmarshal mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRecord_MarshalFieldNames(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(citation.Record{Title: "T", ID: "10.1/x"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"title":"T","authors":"","year":"","journal":"","doi":"10.1/x"}`
	if string(b) != want {
		t.Errorf("Marshal() = %s, want %s", b, want)
	}
}

func TestClone(t *testing.T) {
	t.Parallel()

	if got := citation.Clone(nil); got == nil || len(got) != 0 {
		t.Errorf("Clone(nil) = %#v, want empty non-nil slice", got)
	}
	src := []citation.Record{{Title: "A"}}
	dst := citation.Clone(src)
	dst[0].Title = "B"
	if src[0].Title != "A" {
		t.Errorf("Clone shares backing array with source")
	}
}

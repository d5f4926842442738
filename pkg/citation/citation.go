// Package citation defines the bibliographic record shared by every lookup
// backend and the formatter that turns a record into an in-text citation and a
// reference-list entry.
//
// Records are plain values. Any field may be empty; the formatter substitutes
// a placeholder for each missing field so that a partially known work still
// produces a usable citation.
package citation

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Record describes one published work as returned by a bibliography lookup.
type Record struct {
	// Title is the work's title.
	Title string `json:"title"`

	// Authors is the display author string, e.g. "Smith", "Smith & Jones" or
	// "Smith et al.". See JoinAuthors.
	Authors string `json:"authors"`

	// Year is the publication year as text, or "n.d." when unknown.
	Year string `json:"year"`

	// Journal is the venue (journal or container title).
	Journal string `json:"journal"`

	// ID is the DOI when one is known. Backends without a DOI fill it with a
	// stable slug instead.
	ID string `json:"doi"`
}

// UnmarshalJSON accepts the record as encoded by json.Marshal plus two lenient
// variants seen from clients: the identifier under "id" instead of "doi", and
// the year as a JSON number.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var aux struct {
		plain
		Year  json.RawMessage `json:"year"`
		AltID string          `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)
	r.Year = rawYear(aux.Year)
	if r.ID == "" {
		r.ID = aux.AltID
	}
	return nil
}

func rawYear(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// IsZero reports whether every field of r is empty.
func (r Record) IsZero() bool {
	return r == Record{}
}

// Clone returns a copy of recs. A nil input yields an empty, non-nil slice so
// that JSON encoding produces [] rather than null.
func Clone(recs []Record) []Record {
	out := make([]Record, len(recs))
	copy(out, recs)
	return out
}

// normalizeSpace folds every run of whitespace (including newlines) into a
// single space.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

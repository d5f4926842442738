package crossref

import (
	"strconv"

	"github.com/MrWong99/voicewriter/pkg/citation"
)

// worksResponse is the envelope of GET /works.
type worksResponse struct {
	Status  string `json:"status"`
	Message struct {
		TotalResults int    `json:"total-results"`
		Items        []Work `json:"items"`
	} `json:"message"`
}

// Work is the subset of a Crossref work item used for citations.
type Work struct {
	DOI             string     `json:"DOI"`
	Title           []string   `json:"title"`
	ContainerTitle  []string   `json:"container-title"`
	Author          []Author   `json:"author"`
	PublishedPrint  *DateParts `json:"published-print"`
	PublishedOnline *DateParts `json:"published-online"`
	Issued          *DateParts `json:"issued"`
}

// Author is a contributor on a Crossref work. Organisations carry Name only.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

// DateParts is a partial date, e.g. {"date-parts": [[2015, 5, 28]]}. Crossref
// emits [[null]] for unknown dates.
type DateParts struct {
	DateParts [][]*int `json:"date-parts"`
}

// Surname returns the name used in author strings: family name, else the
// organisation name, else the given name, else "Unknown".
func (a Author) Surname() string {
	switch {
	case a.Family != "":
		return a.Family
	case a.Name != "":
		return a.Name
	case a.Given != "":
		return a.Given
	default:
		return citation.DefaultAuthors
	}
}

// Year returns the publication year. The first date block present among
// published-print, published-online and issued decides; a missing or zero
// year in that block yields "n.d." without consulting the others.
func (w Work) Year() string {
	var parts [][]*int
	for _, d := range []*DateParts{w.PublishedPrint, w.PublishedOnline, w.Issued} {
		if d != nil && d.DateParts != nil {
			parts = d.DateParts
			break
		}
	}
	if len(parts) == 0 || len(parts[0]) == 0 || parts[0][0] == nil || *parts[0][0] == 0 {
		return citation.DefaultYear
	}
	return strconv.Itoa(*parts[0][0])
}

// Record converts w into a normalised citation record.
func (w Work) Record() citation.Record {
	year := w.Year()

	title := first(w.Title)
	rec := citation.Record{
		Title:   title,
		Year:    year,
		Journal: first(w.ContainerTitle),
		ID:      w.DOI,
	}
	if rec.Title == "" {
		rec.Title = citation.DefaultTitle
	}
	if rec.Journal == "" {
		rec.Journal = citation.DefaultJournal
	}
	if rec.ID == "" {
		rec.ID = citation.Slug(title, year)
	}

	surnames := make([]string, len(w.Author))
	for i, a := range w.Author {
		surnames[i] = a.Surname()
	}
	rec.Authors = citation.JoinAuthors(surnames)
	return rec
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

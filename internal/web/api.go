package web

import (
	"net/http"

	"github.com/MrWong99/voicewriter/pkg/citation"
)

type citeRequest struct {
	Query string `json:"query"`
}

type citeResponse struct {
	Results []citation.Record `json:"results"`
}

type formatRequest struct {
	Item  *citation.Record `json:"item"`
	Style string           `json:"style"`
}

type formatResponse struct {
	InText string `json:"inText"`
	Full   string `json:"full"`
}

type suggestRequest struct {
	Text string `json:"text"`
}

type suggestResponse struct {
	ImprovedText string `json:"improvedText"`
}

// Cite answers {query} with {results}. It always answers 200: malformed
// bodies, blank queries and lookup failures all yield an empty list.
func (h *Handler) Cite(w http.ResponseWriter, r *http.Request) {
	var req citeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusOK, citeResponse{Results: []citation.Record{}})
		return
	}
	writeJSON(w, http.StatusOK, citeResponse{Results: citation.Clone(h.searcher.Search(r.Context(), req.Query))})
}

// FormatCitation answers {item, style} with {inText, full}.
func (h *Handler) FormatCitation(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}
	if req.Item == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing citation item"})
		return
	}
	style := citation.Style(req.Style)
	if req.Style == "" {
		style = h.defaultStyle()
	}
	f := citation.Format(*req.Item, citation.ParseStyle(string(style)))
	writeJSON(w, http.StatusOK, formatResponse{InText: f.InText, Full: f.Full})
}

// Suggest answers {text} with {improvedText}. Blank text yields "".
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}
	writeJSON(w, http.StatusOK, suggestResponse{ImprovedText: h.improver.Improve(r.Context(), req.Text)})
}

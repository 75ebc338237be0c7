package handlers

import (
	"net/http"
	"strconv"

	"github.com/felo/gmail-message-parser/internal/db"
)

type searchResponse struct {
	Query   string             `json:"query"`
	Results []*db.SearchResult `json:"results"`
}

// Search handles full-text search requests. Highlights contain <mark> tags
// around matched terms.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	limit, offset := pageParams(r)

	filters := db.SearchFilters{
		From:  q.Get("from"),
		Label: q.Get("label"),
	}
	if v := q.Get("has_attachments"); v != "" {
		has, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid has_attachments value")
			return
		}
		filters.HasAttachments = has
	}

	results, err := h.db.SearchMessagesWithFilters(query, filters, limit, offset)
	if err != nil {
		h.logger.Error("search failed", "query", query, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	if results == nil {
		results = []*db.SearchResult{}
	}

	h.writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: results})
}

package handlers

import (
	"net/http"
)

// AutocompleteSenders handles autocomplete requests for sender addresses
func (h *Handlers) AutocompleteSenders(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	if limit == 0 {
		limit = 100
	}

	senders, err := h.db.GetUniqueSenders(limit)
	if err != nil {
		h.logger.Error("failed to get unique senders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load senders")
		return
	}
	if senders == nil {
		senders = []string{}
	}

	h.writeJSON(w, http.StatusOK, senders)
}

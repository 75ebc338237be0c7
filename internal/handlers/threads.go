package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/felo/gmail-message-parser/internal/db"
)

// ListThreads returns thread summaries, most recently active first
func (h *Handlers) ListThreads(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	threads, err := h.db.ListThreads(limit, offset)
	if err != nil {
		h.logger.Error("failed to list threads", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load threads")
		return
	}
	if threads == nil {
		threads = []*db.ThreadSummary{}
	}

	h.writeJSON(w, http.StatusOK, threads)
}

// GetThread returns the indexed messages of one Gmail thread, oldest first
func (h *Handlers) GetThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadId")

	messages, err := h.db.ListThread(threadID)
	if err != nil {
		h.logger.Error("failed to load thread", "thread_id", threadID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load thread")
		return
	}
	if len(messages) == 0 {
		h.writeError(w, http.StatusNotFound, "Thread not found")
		return
	}

	h.writeJSON(w, http.StatusOK, messages)
}

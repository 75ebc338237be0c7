package handlers

import (
	"net/http"

	"github.com/felo/gmail-message-parser/internal/db"
	"github.com/felo/gmail-message-parser/internal/parser"
)

type messageList struct {
	Messages []*db.Message `json:"messages"`
	Total    int           `json:"total"`
}

// ListMessages returns a page of indexed messages, newest first
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	total, err := h.db.CountMessages()
	if err != nil {
		h.logger.Error("failed to count messages", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to count messages")
		return
	}

	messages, err := h.db.ListMessages(limit, offset)
	if err != nil {
		h.logger.Error("failed to list messages", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	if messages == nil {
		messages = []*db.Message{}
	}

	h.writeJSON(w, http.StatusOK, messageList{Messages: messages, Total: total})
}

// GetMessage re-parses the saved resource of an indexed message and returns
// the full parsed record
func (h *Handlers) GetMessage(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.lookupMessage(w, r)
	if !ok {
		return
	}

	path, err := h.db.ResolveMessagePath(msg.FilePath)
	if err != nil {
		h.logger.Warn("refusing stored path", "id", msg.ID, "path", msg.FilePath, "error", err)
		h.writeError(w, http.StatusForbidden, "Invalid message path")
		return
	}

	parsed, err := h.parser.ParseFile(path)
	if err != nil {
		h.logger.Error("failed to parse message", "id", msg.ID, "path", path, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load message")
		return
	}

	h.writeJSON(w, http.StatusOK, h.render(parsed))
}

// render applies the configured output policy to a parsed message
func (h *Handlers) render(m *parser.ParsedMessage) *parser.ParsedMessage {
	if h.cfg.Render.SanitizeHTML && m.TextHTML != nil {
		clean := h.sanitizer.Sanitize(*m.TextHTML)
		m.TextHTML = &clean
	}
	return m
}

// lookupMessage loads the message named by the {id} URL parameter, writing
// the error response itself when it returns false
func (h *Handlers) lookupMessage(w http.ResponseWriter, r *http.Request) (*db.Message, bool) {
	id, ok := messageID(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid message ID")
		return nil, false
	}

	msg, err := h.db.GetMessageByID(id)
	if err != nil {
		h.logger.Error("failed to load message", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load message")
		return nil, false
	}
	if msg == nil {
		h.writeError(w, http.StatusNotFound, "Message not found")
		return nil, false
	}
	return msg, true
}

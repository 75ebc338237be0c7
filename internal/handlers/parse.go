package handlers

import (
	"errors"
	"net/http"

	"github.com/felo/gmail-message-parser/internal/parser"
)

// maxParseBody bounds the request body of Parse
const maxParseBody = 32 << 20

// Parse parses a Gmail message resource posted as JSON without indexing it
func (h *Handlers) Parse(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxParseBody)
	defer body.Close()

	parsed, err := h.parser.ParseJSON(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, parser.ErrMissingID):
			h.writeError(w, http.StatusBadRequest, "Message has no id")
		case errors.As(err, &tooLarge):
			h.writeError(w, http.StatusRequestEntityTooLarge, "Message too large")
		default:
			h.logger.Debug("rejected message", "error", err)
			h.writeError(w, http.StatusBadRequest, "Invalid message resource")
		}
		return
	}

	if len(parsed.PartErrors) > 0 {
		h.logger.Info("parsed message with skipped parts",
			"message_id", parsed.ID,
			"skipped", len(parsed.PartErrors),
		)
	}

	h.writeJSON(w, http.StatusOK, h.render(parsed))
}

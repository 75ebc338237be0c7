package handlers

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/felo/gmail-message-parser/internal/db"
)

// ListAttachments returns the stored attachment and inline metadata of a message
func (h *Handlers) ListAttachments(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.lookupMessage(w, r)
	if !ok {
		return
	}

	attachments, err := h.db.GetAttachmentsByMessageID(msg.ID)
	if err != nil {
		h.logger.Error("failed to load attachments", "id", msg.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load attachments")
		return
	}
	if attachments == nil {
		attachments = []*db.Attachment{}
	}

	h.writeJSON(w, http.StatusOK, attachments)
}

// sanitizeFilename removes dangerous characters from download filenames
func sanitizeFilename(filename string) string {
	// Remove path separators
	filename = filepath.Base(filepath.FromSlash(filename))

	// Remove any control characters and quotes
	cleaned := strings.Map(func(r rune) rune {
		if r < 32 || r == 127 || r == '"' || r == '\'' {
			return -1
		}
		return r
	}, filename)

	if len(cleaned) > 255 {
		cleaned = cleaned[:255]
	}

	if cleaned == "" || cleaned == "." || cleaned == string(filepath.Separator) {
		cleaned = "message.json"
	}

	return cleaned
}

// DownloadRaw serves the saved Gmail message resource of an indexed message
func (h *Handlers) DownloadRaw(w http.ResponseWriter, r *http.Request) {
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

	data, err := os.ReadFile(path)
	if err != nil {
		h.logger.Error("failed to read message file", "id", msg.ID, "path", path, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to read message file")
		return
	}

	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{
			"filename": sanitizeFilename(msg.FilePath),
		}))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write(data)
}

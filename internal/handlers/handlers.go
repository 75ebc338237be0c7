package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/microcosm-cc/bluemonday"

	"github.com/felo/gmail-message-parser/internal/config"
	"github.com/felo/gmail-message-parser/internal/db"
	"github.com/felo/gmail-message-parser/internal/parser"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	db        *db.DB
	cfg       *config.Config
	parser    *parser.Parser
	sanitizer *bluemonday.Policy
	logger    *slog.Logger

	scanMu sync.Mutex
	scan   scanState
}

// New creates a new Handlers instance
func New(database *db.DB, cfg *config.Config) *Handlers {
	logger := slog.Default().With("component", "handlers")
	return &Handlers{
		db:        database,
		cfg:       cfg,
		parser:    parser.New(parser.WithLogger(logger)),
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger,
	}
}

// Routes mounts the API on r
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/messages", h.ListMessages)
		r.Get("/messages/{id}", h.GetMessage)
		r.Get("/messages/{id}/attachments", h.ListAttachments)
		r.Get("/messages/{id}/raw", h.DownloadRaw)

		r.Get("/threads", h.ListThreads)
		r.Get("/threads/{threadId}", h.GetThread)

		r.Get("/search", h.Search)
		r.Get("/senders", h.AutocompleteSenders)
		r.Get("/stats", h.Stats)

		r.Post("/parse", h.Parse)

		r.Post("/index", h.Scan)
		r.Get("/index", h.ScanStatus)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode response", "error", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// queryInt reads a positive integer query parameter, falling back to def
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// pageParams returns limit and offset, with limit capped at maxLimit
func pageParams(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", defaultLimit)
	if limit == 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, queryInt(r, "offset", 0)
}

// messageID parses the {id} URL parameter
func messageID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

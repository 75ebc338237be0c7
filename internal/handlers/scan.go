package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/felo/gmail-message-parser/internal/db"
	"github.com/felo/gmail-message-parser/internal/indexer"
)

// scanState holds the progress of the background indexing run
type scanState struct {
	Running     bool                 `json:"running"`
	Current     int                  `json:"current"`
	Total       int                  `json:"total"`
	CurrentFile string               `json:"currentFile,omitempty"`
	StartedAt   *time.Time           `json:"startedAt,omitempty"`
	FinishedAt  *time.Time           `json:"finishedAt,omitempty"`
	Result      *indexer.IndexResult `json:"result,omitempty"`
	Error       string               `json:"error,omitempty"`
}

type statsResponse struct {
	*db.Stats
	LastIndexRun string `json:"lastIndexRun,omitempty"`
	MessagesPath string `json:"messagesPath"`
}

// Stats returns index statistics
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.GetStats()
	if err != nil {
		h.logger.Error("failed to get stats", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	lastRun, err := h.db.GetSetting(indexer.SettingLastIndexed)
	if err != nil {
		h.logger.Warn("failed to read last index time", "error", err)
	}

	h.writeJSON(w, http.StatusOK, statsResponse{
		Stats:        stats,
		LastIndexRun: lastRun,
		MessagesPath: h.cfg.Messages.Path,
	})
}

// Scan starts re-indexing the messages directory in the background
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	h.scanMu.Lock()
	if h.scan.Running {
		h.scanMu.Unlock()
		h.writeError(w, http.StatusConflict, "Scan already in progress")
		return
	}

	started := time.Now().UTC()
	h.scan = scanState{Running: true, StartedAt: &started}
	snapshot := h.scan
	h.scanMu.Unlock()

	go h.runScan(context.WithoutCancel(r.Context()))

	h.writeJSON(w, http.StatusAccepted, snapshot)
}

// ScanStatus reports the state of the current or last indexing run
func (h *Handlers) ScanStatus(w http.ResponseWriter, r *http.Request) {
	h.scanMu.Lock()
	snapshot := h.scan
	h.scanMu.Unlock()

	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handlers) runScan(ctx context.Context) {
	idx := indexer.NewIndexer(h.db, h.cfg.Messages.Path, false).
		WithConcurrency(h.cfg.Messages.Concurrency).
		WithParser(h.parser).
		WithLogger(h.logger)

	result, err := idx.IndexWithProgress(ctx, func(current, total int, filePath string) {
		h.scanMu.Lock()
		h.scan.Current = current
		h.scan.Total = total
		h.scan.CurrentFile = filePath
		h.scanMu.Unlock()
	})

	finished := time.Now().UTC()

	h.scanMu.Lock()
	defer h.scanMu.Unlock()
	h.scan.Running = false
	h.scan.FinishedAt = &finished
	h.scan.Result = result
	if err != nil {
		h.logger.Error("indexing failed", "error", err)
		h.scan.Error = err.Error()
		return
	}
	h.logger.Info("indexing complete",
		"new", result.NewIndexed,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
}

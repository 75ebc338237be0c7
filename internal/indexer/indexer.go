package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/felo/gmail-message-parser/internal/db"
	"github.com/felo/gmail-message-parser/internal/parser"
	"github.com/felo/gmail-message-parser/internal/scanner"
)

// SettingLastIndexed records when the last indexing run finished
const SettingLastIndexed = "last_indexed_at"

// Indexer handles message indexing operations
type Indexer struct {
	db          *db.DB
	scanner     *scanner.Scanner
	parser      *parser.Parser
	logger      *slog.Logger
	verbose     bool
	concurrency int // Number of concurrent workers
}

// NewIndexer creates a new indexer for the saved messages under messagesPath
func NewIndexer(database *db.DB, messagesPath string, verbose bool) *Indexer {
	return &Indexer{
		db:          database,
		scanner:     scanner.NewScanner(messagesPath),
		parser:      parser.New(),
		logger:      slog.Default(),
		verbose:     verbose,
		concurrency: runtime.NumCPU() * 2, // 2x CPUs for optimal I/O parallelism
	}
}

// WithConcurrency sets the number of concurrent workers
func (idx *Indexer) WithConcurrency(workers int) *Indexer {
	if workers < 1 {
		workers = 1
	}
	idx.concurrency = workers
	return idx
}

// WithParser replaces the message parser
func (idx *Indexer) WithParser(p *parser.Parser) *Indexer {
	if p != nil {
		idx.parser = p
	}
	return idx
}

// WithLogger sets the logger
func (idx *Indexer) WithLogger(l *slog.Logger) *Indexer {
	if l != nil {
		idx.logger = l
	}
	return idx
}

// IndexResult contains statistics about an indexing operation
type IndexResult struct {
	TotalFound  int      `json:"totalFound"`
	NewIndexed  int      `json:"newIndexed"`
	Skipped     int      `json:"skipped"`
	Failed      int      `json:"failed"`
	FailedFiles []string `json:"failedFiles"`
}

// IndexAll scans and indexes all message files using concurrent workers
func (idx *Indexer) IndexAll(ctx context.Context) (*IndexResult, error) {
	return idx.IndexWithProgress(ctx, nil)
}

// IndexWithProgress indexes all files and reports progress via a callback.
// Cancelling ctx stops dispatching new files; files already handed to a
// worker finish, and the partial result is returned with ctx.Err().
func (idx *Indexer) IndexWithProgress(ctx context.Context, progress func(current, total int, filePath string)) (*IndexResult, error) {
	files, err := idx.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan for files: %w", err)
	}

	result := &IndexResult{
		TotalFound:  len(files),
		FailedFiles: make([]string, 0),
	}

	if idx.verbose {
		idx.logger.Info("indexing messages",
			"files", result.TotalFound,
			"workers", idx.concurrency,
		)
	}

	fileChan := make(chan string)
	resultChan := make(chan indexResult, idx.concurrency)

	var wg sync.WaitGroup
	for i := 0; i < idx.concurrency; i++ {
		wg.Add(1)
		go idx.indexWorker(&wg, fileChan, resultChan)
	}

	go func() {
		defer close(fileChan)
		for _, file := range files {
			if ctx.Err() != nil {
				return
			}
			select {
			case fileChan <- file:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	processedCount := 0
	for res := range resultChan {
		processedCount++
		if progress != nil {
			progress(processedCount, result.TotalFound, res.filePath)
		}
		if idx.verbose && processedCount%100 == 0 {
			idx.logger.Info("indexing progress", "processed", processedCount, "total", result.TotalFound)
		}

		switch res.status {
		case statusIndexed:
			result.NewIndexed++
		case statusSkipped:
			result.Skipped++
		case statusFailed:
			result.Failed++
			result.FailedFiles = append(result.FailedFiles, res.filePath)
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := idx.db.SetSetting(SettingLastIndexed, time.Now().UTC().Format(time.RFC3339)); err != nil {
		idx.logger.Warn("failed to record index time", "error", err)
	}

	if idx.verbose {
		idx.logger.Info("indexing complete",
			"new", result.NewIndexed,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
	}

	return result, nil
}

type indexStatus int

const (
	statusIndexed indexStatus = iota
	statusSkipped
	statusFailed
)

type indexResult struct {
	filePath string
	status   indexStatus
}

// indexWorker processes files from the file channel
func (idx *Indexer) indexWorker(wg *sync.WaitGroup, fileChan <-chan string, resultChan chan<- indexResult) {
	defer wg.Done()

	for filePath := range fileChan {
		status := idx.processFile(filePath)
		resultChan <- indexResult{
			filePath: filePath,
			status:   status,
		}
	}
}

// processFile indexes a single file. filePath is relative to the messages root.
func (idx *Indexer) processFile(filePath string) indexStatus {
	indexed, err := idx.db.FileIndexed(filePath)
	if err != nil {
		idx.logger.Warn("failed to check index", "file", filePath, "error", err)
		return statusFailed
	}
	if indexed {
		return statusSkipped
	}

	parsed, err := idx.parser.ParseFile(idx.scanner.Resolve(filePath))
	if err != nil {
		idx.logger.Warn("failed to parse message", "file", filePath, "error", err)
		return statusFailed
	}
	for _, partErr := range parsed.PartErrors {
		idx.logger.Debug("message parsed with skipped parts",
			"file", filePath,
			"message_id", parsed.ID,
			"error", partErr,
		)
	}

	// The same Gmail message may be saved under several names
	exists, err := idx.db.MessageExists(parsed.ID)
	if err != nil {
		idx.logger.Warn("failed to check message", "file", filePath, "error", err)
		return statusFailed
	}
	if exists {
		return statusSkipped
	}

	msg, attachments := db.RecordFromParsed(filePath, parsed)
	if _, err := idx.db.InsertMessageWithAttachments(msg, attachments); err != nil {
		// Another worker may have inserted the same Gmail id meanwhile
		if exists, _ := idx.db.MessageExists(parsed.ID); exists {
			return statusSkipped
		}
		idx.logger.Warn("failed to insert message", "file", filePath, "error", err)
		return statusFailed
	}

	return statusIndexed
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/felo/gmail-message-parser/internal/config"
	"github.com/felo/gmail-message-parser/internal/db"
	"github.com/felo/gmail-message-parser/internal/handlers"
	"github.com/felo/gmail-message-parser/internal/indexer"
	"github.com/felo/gmail-message-parser/internal/parser"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	parseFile := flag.String("parse", "", "parse a saved message resource (- for stdin), print it as JSON and exit")
	noIndex := flag.Bool("no-index", false, "skip indexing the messages directory on startup")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.SlogLevel())

	if *parseFile != "" {
		if err := printParsed(*parseFile, os.Stdout); err != nil {
			slog.Error("failed to parse message", "file", *parseFile, "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, !*noIndex); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output
func setupLogger(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// printParsed writes the parsed record of a saved message resource to w
func printParsed(path string, w io.Writer) error {
	var (
		parsed *parser.ParsedMessage
		err    error
	)
	if path == "-" {
		parsed, err = parser.ParseJSON(os.Stdin)
	} else {
		parsed, err = parser.ParseFile(path)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func run(cfg *config.Config, indexOnStart bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	database.SetMessagesPath(cfg.Messages.Path)

	slog.Info("database opened",
		"db_path", cfg.Database.Path,
		"messages_path", cfg.Messages.Path,
	)

	if _, err := os.Stat(cfg.Messages.Path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(cfg.Messages.Path, 0755); err != nil {
			return fmt.Errorf("failed to create messages directory: %w", err)
		}
		slog.Info("created messages directory, place saved Gmail message resources (.json) there",
			"path", cfg.Messages.Path,
		)
	} else if indexOnStart {
		idx := indexer.NewIndexer(database, cfg.Messages.Path, true).
			WithConcurrency(cfg.Messages.Concurrency)
		result, err := idx.IndexAll(ctx)
		if err != nil {
			slog.Warn("indexing failed", "error", err)
		} else {
			slog.Info("indexing complete",
				"new", result.NewIndexed,
				"skipped", result.Skipped,
				"failed", result.Failed,
			)
		}
		if ctx.Err() != nil {
			return nil
		}
	}

	h := handlers.New(database, cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	h.Routes(r)

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "url", cfg.URL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("received signal, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

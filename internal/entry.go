// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/chartbook/internal/api"
	"github.com/starford/chartbook/internal/apperr"
	"github.com/starford/chartbook/internal/catalogservice"
	"github.com/starford/chartbook/internal/index"
	"github.com/starford/chartbook/internal/manifest"
	"github.com/starford/chartbook/internal/mcpserver"
	"github.com/starford/chartbook/internal/models"
	"github.com/starford/chartbook/internal/sse"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("project_path", cfg.Project.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	svc := app.service(db, logger)

	// A broken manifest at startup is not fatal: lookups answer 503 until a
	// reload succeeds.
	m, err := svc.Reload(ctx)
	if err != nil {
		logger.Error("Initial manifest load failed", slog.String("error", apperr.Format(err)))
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.Manifest(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not loaded")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		roots := watchRoots(svc.Dir(), m)
		dbPath, _ := filepath.Abs(cfg.SQLite.Path)
		g.Go(func() error {
			return index.Watch(gCtx, roots, logger, cfg.Watch.Debounce, func(path string) {
				if dbPath != "" && strings.HasPrefix(path, dbPath) {
					return
				}
				reloaded, err := svc.Reload(gCtx)
				if err != nil {
					broker.PublishReload(nil, err)
					return
				}
				broker.PublishReload(manifest.ListPipelineIDs(reloaded), nil)
			})
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the loaded project over MCP on stdin/stdout. Logs go to
// stderr unless WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	logger := app.logger()
	slog.SetDefault(logger)

	db, err := index.Open(app.config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	svc := app.service(db, logger)
	if _, err := svc.Reload(ctx); err != nil {
		return err
	}

	logger.Info("MCP server starting", slog.String("project_path", svc.Dir()))
	return mcpserver.New(svc, app.version).ServeStdio()
}

// errShutdown stops the errgroup once the server has shut down so that the
// watcher goroutine returns too.
var errShutdown = errors.New("shutdown")

func newApplication(opts []Option, logOut io.Writer) (*application, error) {
	app := &application{version: "dev", logOut: logOut}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

func (a *application) service(db *index.DB, logger *slog.Logger) *catalogservice.Service {
	opts := append(a.config.Project.LoaderOptions(), manifest.WithLogger(logger))
	return catalogservice.NewService(manifest.NewLoader(opts...), a.config.Project.Path, db, logger)
}

// watchRoots returns the project directory plus every child pipeline
// directory of a catalog that lies outside it.
func watchRoots(dir string, m *models.Manifest) []string {
	root, err := filepath.Abs(dir)
	if err != nil {
		root = dir
	}
	roots := []string{root}
	if m == nil || !m.IsCatalog() {
		return roots
	}
	for _, id := range m.PipelineIDs {
		child := m.Pipelines[id].Dir
		if child == "" || within(root, child) {
			continue
		}
		roots = append(roots, child)
	}
	return roots
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}

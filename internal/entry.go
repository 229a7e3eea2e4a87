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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/datalib/internal/api"
	"github.com/starford/datalib/internal/attachments"
	"github.com/starford/datalib/internal/dataservice"
	"github.com/starford/datalib/internal/ingest"
	"github.com/starford/datalib/internal/library"
	"github.com/starford/datalib/internal/mcpserver"
	"github.com/starford/datalib/internal/store"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	db     *store.DB
	libs   *library.Registry
	svc    *dataservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	slog.SetDefault(app.logger)
	return app, nil
}

// start opens the database and builds the service layer.
func (a *application) start(ctx context.Context) (*runtime, error) {
	cfg := a.config
	logger := a.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("db_driver", cfg.Database.Driver),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("attachments_backend", cfg.Attachments.Backend),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(ctx, cfg.Database.Store())
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	files, err := openAttachments(ctx, &cfg.Attachments)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init attachments: %w", err)
	}

	libs := library.NewRegistry(store.NewDataRepo(db), logger)
	svc := dataservice.New(libs, store.NewProjectRepo(db), store.NewProfileRepo(db), files, logger)
	return &runtime{cfg: cfg, logger: logger, db: db, libs: libs, svc: svc}, nil
}

func (rt *runtime) close() {
	rt.libs.Close()
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("close store failed", slog.String("error", err.Error()))
	}
}

func openAttachments(ctx context.Context, cfg *AttachmentsConfig) (attachments.Provider, error) {
	switch cfg.Backend {
	case AttachmentsMinIO:
		return attachments.NewMinIO(ctx, cfg.MinIO.MinIO(), cfg.PublicURLPrefix)
	default:
		return attachments.NewFS(cfg.Path, cfg.PublicURLPrefix)
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	resolver, err := app.config.Auth.Resolver()
	if err != nil {
		return err
	}
	rt, err := app.start(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg, logger := rt.cfg, rt.logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(rt.db, logger))

	// Attachments are served without auth so item file URLs work in <img> tags.
	r.Get("/attachments/{filename}", api.NewAttachmentHandler(rt.svc).ServeFile)

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(rt.svc, resolver))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server.
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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// readyHandler reports whether the database answers a ping.
func readyHandler(db *store.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		pingCtx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(pingCtx); err != nil {
			logger.Warn("readiness check failed",
				slog.String("driver", db.Driver()),
				slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, `{"status":"unavailable","database":%q}`, db.Driver())
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","database":%q}`, db.Driver())
	}
}

// RunMCP serves the MCP tools on stdin/stdout as cfg.MCP.UserID. Logs go to
// stderr unless WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	if err := app.config.MCP.Validate(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	rt, err := app.start(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.logger.Info("Starting MCP server", slog.String("user", app.config.MCP.UserID))
	return mcpserver.New(rt.svc, app.config.MCP.UserID).ServeStdio()
}

// ImportJob describes one run of the import command.
type ImportJob struct {
	Dir string
	// UserID owns the imported items.
	UserID string
	// Project is a project id, slug or name. Empty selects the user's
	// default project; an unknown name creates the project.
	Project string
	Prune   bool
	Watch   bool
}

// RunImport imports the Markdown files of job.Dir and, when job.Watch is
// set, keeps importing changes until ctx is cancelled or a signal arrives.
func RunImport(ctx context.Context, job ImportJob, opts ...Option) (ingest.Report, error) {
	app, err := newApplication(opts)
	if err != nil {
		return ingest.Report{}, err
	}
	if job.UserID == "" {
		return ingest.Report{}, fmt.Errorf("import: user is required")
	}
	if _, err := os.Stat(job.Dir); err != nil {
		return ingest.Report{}, fmt.Errorf("import: %w", err)
	}
	rt, err := app.start(ctx)
	if err != nil {
		return ingest.Report{}, err
	}
	defer rt.close()

	project, err := resolveProject(ctx, store.NewProjectRepo(rt.db), job.UserID, job.Project)
	if err != nil {
		return ingest.Report{}, fmt.Errorf("import: %w", err)
	}

	lib := library.New(store.NewDataRepo(rt.db),
		library.WithLogger(rt.logger),
		library.WithScope(library.Scope{OwnerID: job.UserID, ProjectID: project.ID}),
	)
	defer lib.Close()

	im := ingest.NewImporter(lib, project.ID,
		ingest.WithPrune(job.Prune),
		ingest.WithLogger(rt.logger),
		ingest.WithCallback(func(kind, path string) {
			rt.logger.Info("Imported", slog.String("kind", kind), slog.String("path", path))
		}),
	)

	if !job.Watch {
		return im.Sync(ctx, job.Dir)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	rt.logger.Info("Watching directory", slog.String("dir", job.Dir), slog.String("project", project.Slug))
	if err := im.Watch(ctx, job.Dir); err != nil && !errors.Is(err, context.Canceled) {
		return ingest.Report{}, err
	}
	return ingest.Report{}, nil
}

// RunMigrate applies pending database migrations.
func RunMigrate(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if err := store.Migrate(app.config.Database.Store()); err != nil {
		return err
	}
	app.logger.Info("Migrations applied", slog.String("driver", app.config.Database.Driver))
	return nil
}

// PrintReport writes a human readable import summary.
func PrintReport(w io.Writer, r ingest.Report) {
	fmt.Fprintf(w, "created: %d, updated: %d, skipped: %d, deleted: %d, failed: %d\n",
		r.Created, r.Updated, r.Skipped, r.Deleted, r.Failed)
}

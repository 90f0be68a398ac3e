package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/lib/pq"
	"teamboard/teamboard-api/internal/audit"
	"teamboard/teamboard-api/internal/auth"
	"teamboard/teamboard-api/internal/config"
	"teamboard/teamboard-api/internal/httpserver"
	"teamboard/teamboard-api/internal/kvstore"
	"teamboard/teamboard-api/internal/observability"
	"teamboard/teamboard-api/internal/task"
)

type App struct {
	cfg    config.Config
	log    *slog.Logger
	db     *sql.DB
	sqlite *kvstore.SQLiteStore
	server *httpserver.Server
}

func New(cfg config.Config) (*App, error) {
	logger := observability.NewLogger()

	a := &App{cfg: cfg, log: logger}

	var store kvstore.Store
	switch {
	case cfg.DatabaseURL != "":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		a.db = db
		pg, err := kvstore.NewPostgresStore(db)
		if err != nil {
			a.closeStores()
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
		store = pg
		logger.Info("using postgres store")
	case cfg.SQLitePath != "":
		sq, err := kvstore.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("create sqlite store: %w", err)
		}
		a.sqlite = sq
		store = sq
		logger.Info("using sqlite store", "path", cfg.SQLitePath)
	default:
		fs, err := kvstore.NewFileStore(cfg.StateDir)
		if err != nil {
			return nil, fmt.Errorf("create file store: %w", err)
		}
		store = fs
		logger.Info("using file store", "dir", cfg.StateDir)
	}

	directory, err := auth.NewDirectory(store)
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("create user directory: %w", err)
	}

	session, err := auth.NewSession(store, directory)
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := session.Restore(); err != nil {
		a.closeStores()
		return nil, fmt.Errorf("restore session: %w", err)
	}

	collection, err := task.NewCollection(store)
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("create task collection: %w", err)
	}
	if err := collection.Load(); err != nil {
		a.closeStores()
		return nil, fmt.Errorf("load task collection: %w", err)
	}
	collection.Subscribe(func() {
		logger.Debug("task collection changed", "tasks", collection.Len())
	})

	auditLogger := audit.NewLogger(cfg.AuditLogFile)

	a.server = httpserver.New(cfg.HTTP, httpserver.Deps{
		Session:         session,
		Directory:       directory,
		Tasks:           collection,
		Audit:           auditLogger,
		FrontendDistDir: cfg.FrontendDistDir,
	})
	return a, nil
}

func (a *App) closeStores() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.sqlite != nil {
		_ = a.sqlite.Close()
	}
}

func (a *App) Run(ctx context.Context) error {
	defer a.closeStores()

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}

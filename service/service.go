package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wkalt/tablelog/commitstore"
	"github.com/wkalt/tablelog/routes"
	"github.com/wkalt/tablelog/table"
	"github.com/wkalt/tablelog/util/log"
)

/*
This file is the entrypoint for server startup. The server exposes the tables
under a storage prefix over HTTP until it is interrupted or its context is
canceled.
*/

////////////////////////////////////////////////////////////////////////////////

// Service is the table server.
type Service struct{}

// NewService creates a new service.
func NewService() *Service {
	return &Service{}
}

// Start runs the server. It returns nil after a clean shutdown.
func (s *Service) Start(ctx context.Context, options ...Option) error {
	opts, err := readOpts(options...)
	if err != nil {
		return fmt.Errorf("failed to read options: %w", err)
	}
	slog.SetLogLoggerLevel(opts.LogLevel)
	log.Debugf(ctx, "Debug logging enabled")

	tableOpts := []table.Option{}
	if opts.CommitDatabasePath != "" {
		dbpath := opts.CommitDatabasePath + "?_journal=WAL&mode=rwc"
		log.Infof(ctx, "Opening commit database at %s", dbpath)
		db, err := sql.Open("sqlite3", dbpath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		if err = db.Ping(); err != nil {
			return fmt.Errorf("failed to ping database at %s: %w", dbpath, err)
		}
		cs, err := commitstore.NewSQLCommitStore(ctx, db)
		if err != nil {
			return fmt.Errorf("failed to open commit store: %w", err)
		}
		tableOpts = append(tableOpts, table.WithCommitStore(cs))
	}
	if opts.CheckpointInterval != nil {
		tableOpts = append(tableOpts, table.WithCheckpointInterval(*opts.CheckpointInterval))
	}
	catalog := table.NewCatalog(opts.StorageProvider, opts.TablePrefix, tableOpts...)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           routes.MakeRoutes(catalog),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigint := make(chan os.Signal, 1)
	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT)
	signal.Notify(sigterm, syscall.SIGTERM)
	defer signal.Stop(sigint)
	defer signal.Stop(sigterm)

	startErr := make(chan error, 1)
	go func() {
		log.Infow(ctx, "Starting server",
			"port", opts.Port, "storage", opts.StorageProvider, "prefix", opts.TablePrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			startErr <- err
		}
	}()

	select {
	case <-sigint:
		log.Infof(ctx, "Received SIGINT")
	case <-sigterm:
		log.Infof(ctx, "Received SIGTERM")
	case <-ctx.Done():
		log.Infof(ctx, "Context canceled")
	case err := <-startErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Infof(ctx, "Allowing 10 seconds for existing connections to close")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Shutdown(shutdownCtx)
	}()

	select {
	case <-sigint:
		return errors.New("forceful shutdown on second interrupt")
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Infof(ctx, "Server stopped")
		return nil
	}
}

func readOpts(opts ...Option) (*Options, error) {
	options := Options{
		Port:        8089,
		LogLevel:    slog.LevelInfo,
		TablePrefix: "tables",
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.StorageProvider == nil {
		return nil, errors.New("storage provider is required")
	}
	return &options, nil
}

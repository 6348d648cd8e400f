package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/docgrid/docgrid/internal/async"
	"github.com/docgrid/docgrid/internal/config"
	"github.com/docgrid/docgrid/internal/export"
	"github.com/docgrid/docgrid/internal/extraction"
	"github.com/docgrid/docgrid/internal/quota"
	"github.com/docgrid/docgrid/internal/repository"
	"github.com/docgrid/docgrid/internal/server"
	"github.com/docgrid/docgrid/internal/storage"
)

func run(ctx context.Context, log *slog.Logger, cfg *config.Config) error {
	log.InfoContext(ctx, "starting docgridd",
		slog.String("db_driver", cfg.Database.Driver),
		slog.String("provider", cfg.Provider.Name),
		slog.String("http_port", cfg.HTTP.Port),
	)

	db, err := repository.Open(ctx, repository.Config{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		DialTimeout: cfg.Database.DialTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close(log)

	if err := db.HealthCheck(ctx, 3*time.Second); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(db, cfg.Database.Driver, log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	rowsRepo := repository.NewRowRepository(db, log)
	tablesRepo := repository.NewTableRepository(db, log)
	accountsRepo := repository.NewAccountRepository(db, log)

	signer, err := storage.NewGCSSigner(ctx, cfg.Storage.Bucket, log)
	if err != nil {
		return fmt.Errorf("create document signer: %w", err)
	}
	defer signer.Close()

	provider, err := extraction.NewProvider(extraction.ProviderConfig{
		Name:          cfg.Provider.Name,
		APIKey:        cfg.Provider.APIKey,
		Model:         cfg.Provider.Model,
		FallbackModel: cfg.Provider.FallbackModel,
		Timeout:       cfg.Provider.Timeout,
		MaxRetries:    cfg.Provider.MaxRetries,
		BaseDelay:     cfg.Provider.BaseDelay,
	}, log)
	if err != nil {
		return err
	}

	gate := quota.NewGate(accountsRepo, log)
	orch := extraction.NewOrchestrator(rowsRepo, tablesRepo, gate, signer, provider, log)
	queue := async.NewExtractionQueue(orch, log, async.WithWorkers(cfg.Provider.Workers))
	exporter := export.NewService(rowsRepo, tablesRepo, log)

	h := server.NewHandler(rowsRepo, tablesRepo, orch, queue, exporter, log)
	srv := server.NewServer(server.HTTPConfig{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, h, log)

	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "http server listening", slog.String("port", cfg.HTTP.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}

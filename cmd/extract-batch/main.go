// Command extract-batch runs the extraction pipeline over every pending row
// of one table and exits. Useful for reprocessing after schema changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/docgrid/docgrid/internal/extraction"
	"github.com/docgrid/docgrid/internal/quota"
	"github.com/docgrid/docgrid/internal/repository"
	"github.com/docgrid/docgrid/internal/storage"
)

func main() {
	var (
		driver      = flag.String("db-driver", "postgres", "database driver (postgres or sqlite)")
		dsn         = flag.String("db-dsn", os.Getenv("DB_DSN"), "database DSN")
		bucket      = flag.String("bucket", os.Getenv("DOCS_BUCKET"), "documents bucket")
		providerStr = flag.String("provider", "openrouter", "extraction provider")
		accountStr  = flag.String("account", "", "account id")
		tableStr    = flag.String("table", "", "table id")
		parallelism = flag.Int("parallelism", 4, "concurrent extractions")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, *driver, *dsn, *bucket, *providerStr, *accountStr, *tableStr, *parallelism); err != nil {
		log.Error("batch extraction failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, driver, dsn, bucket, providerName, accountStr, tableStr string, parallelism int) error {
	accountID, err := uuid.Parse(accountStr)
	if err != nil {
		return fmt.Errorf("invalid account id: %w", err)
	}
	tableID, err := uuid.Parse(tableStr)
	if err != nil {
		return fmt.Errorf("invalid table id: %w", err)
	}

	db, err := repository.Open(ctx, repository.Config{Driver: driver, DSN: dsn}, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close(log)

	rowsRepo := repository.NewRowRepository(db, log)
	tablesRepo := repository.NewTableRepository(db, log)
	accountsRepo := repository.NewAccountRepository(db, log)

	signer, err := storage.NewGCSSigner(ctx, bucket, log)
	if err != nil {
		return fmt.Errorf("create document signer: %w", err)
	}
	defer signer.Close()

	provider, err := extraction.NewProvider(extraction.ProviderConfig{Name: providerName}, log)
	if err != nil {
		return err
	}

	orch := extraction.NewOrchestrator(rowsRepo, tablesRepo, quota.NewGate(accountsRepo, log), signer, provider, log)

	ids, err := rowsRepo.ListPending(ctx, tableID)
	if err != nil {
		return fmt.Errorf("list pending rows: %w", err)
	}
	log.Info("batch extraction starting", "rows", len(ids), "parallelism", parallelism)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, id := range ids {
		g.Go(func() error {
			res, err := orch.ExtractRow(gctx, accountID, tableID, id)
			if err != nil {
				// Infrastructure fault: stop the batch.
				return fmt.Errorf("row %s: %w", id, err)
			}
			log.Info("row processed", "row_id", id, "status", res.Status)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("batch extraction done", "rows", len(ids), "elapsed", time.Since(start).String())
	return nil
}

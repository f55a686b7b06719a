package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"duit/internal/amqp"
	"duit/internal/config"
	"duit/internal/log"
	recordsgoogle "duit/internal/records/google"
	"duit/internal/storage"
	"duit/internal/worker"
)

// The worker mirrors locally saved draft snapshots to the Snapshots
// sheet. It consumes save notifications from the queue and sweeps the
// database periodically for anything a lost message left behind.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: log.ComponentWorker})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required, the worker has nowhere to mirror snapshots")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize snapshot database", log.FieldError, err)
		os.Exit(1)
	}
	defer repo.Close()

	mirror, err := recordsgoogle.New(ctx, recordsgoogle.Options{
		SpreadsheetID:  cfg.GoogleSpreadsheetID,
		RecordsSheet:   cfg.RecordsSheetName,
		SnapshotsSheet: cfg.SnapshotsSheetName,
		Logger:         logger.WithComponent(log.ComponentRecords),
	})
	if err != nil {
		logger.Error("failed to initialize sheets client", log.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSnapshotSyncWorker(repo, mirror, 0, logger)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
		if err != nil {
			logger.Error("failed to connect to broker", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			return amqpClient.ConsumeSnapshotSaved(ctx, syncWorker.HandleSnapshotMessage)
		})
		logger.Info("consuming snapshot notifications", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("no broker configured, running reconcile loop only")
	}

	g.Go(func() error {
		return syncWorker.RunReconcileLoop(ctx, cfg.ReconcileInterval)
	})
	logger.Info("worker started", "reconcile_interval", cfg.ReconcileInterval.String())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

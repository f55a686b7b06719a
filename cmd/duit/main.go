package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"duit/internal/advisor"
	"duit/internal/amqp"
	"duit/internal/config"
	"duit/internal/fx"
	duithttp "duit/internal/http"
	"duit/internal/log"
	"duit/internal/records"
	recordsgoogle "duit/internal/records/google"
	recordsmemory "duit/internal/records/memory"
	"duit/internal/session"
	"duit/internal/snapshot"
	"duit/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: log.ComponentApp})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	ctx := context.Background()

	var store records.Store
	switch cfg.RecordsBackend {
	case "sheets":
		client, err := recordsgoogle.New(ctx, recordsgoogle.Options{
			SpreadsheetID:  cfg.GoogleSpreadsheetID,
			RecordsSheet:   cfg.RecordsSheetName,
			SnapshotsSheet: cfg.SnapshotsSheetName,
			Logger:         logger.WithComponent(log.ComponentRecords),
		})
		if err != nil {
			// History endpoints answer 503 until credentials are
			// fixed; the dashboard itself keeps working.
			logger.Warn("record history disabled, sheets store unavailable", log.FieldError, err)
		} else {
			store = client
			logger.Info("using sheets record store", log.FieldSheet, cfg.RecordsSheetName)
		}
	default:
		store = recordsmemory.New()
		logger.Info("using in-memory record store")
	}

	var sink *storage.SnapshotSink
	repo, err := storage.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Warn("draft persistence disabled, snapshot database unavailable", log.FieldError, err)
	} else {
		defer repo.Close()
		sink = &storage.SnapshotSink{
			Repo:     repo,
			DeviceID: cfg.DeviceID,
			Logger:   logger.WithComponent(log.ComponentSnapshot),
		}
	}

	var amqpClient *amqp.Client
	if sink != nil && cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
		if err != nil {
			// The reconcile loop in the worker picks up unsent
			// snapshots, so a broker outage at startup is not fatal.
			logger.Warn("snapshot sync disabled, broker unreachable", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			sink.Notify = func(ctx context.Context, snapshotID string, at time.Time) error {
				return amqpClient.PublishSnapshotSaved(ctx, snapshotID, cfg.DeviceID, at)
			}
			logger.Info("snapshot sync enabled")
		}
	}

	rates := fx.NewCached(fx.NewClient(fx.ClientOptions{
		BaseURL: cfg.FXBaseURL,
		Timeout: cfg.FXTimeout,
		Logger:  logger.WithComponent(log.ComponentFX),
	}), cfg.FXCacheTTL)

	sessionOpts := session.Options{
		Store:  store,
		Rates:  rates,
		Logger: logger.WithComponent(log.ComponentSession),
	}
	if sink != nil {
		sessionOpts.Snapshots = sink
	}
	manager := session.NewManager(sessionOpts)
	if repo != nil {
		restoreDraft(ctx, manager, repo, cfg.DeviceID, logger)
	}

	var reviewer advisor.Reviewer
	var models advisor.ModelLister
	if cfg.NarrativeEnabled() {
		gemini := advisor.NewGemini(advisor.GeminiOptions{
			APIKey:    cfg.GeminiAPIKey,
			BaseURL:   cfg.GeminiBaseURL,
			Model:     cfg.GeminiModel,
			Timeout:   cfg.GeminiTimeout,
			MaxTokens: cfg.GeminiMaxTokens,
			Logger:    logger.WithComponent(log.ComponentAdvisor),
		})
		reviewer = gemini
		models = gemini
		logger.Info("narrative review enabled", log.FieldModel, cfg.GeminiModel)
	} else {
		logger.Info("narrative review disabled, no API key configured")
	}

	srv := duithttp.NewServer(duithttp.Options{
		Addr:     ":" + cfg.Port,
		Manager:  manager,
		Reviewer: reviewer,
		Models:   models,
		Logger:   logger.WithComponent(log.ComponentHTTP),
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", log.FieldError, err)
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", log.FieldError, err)
			os.Exit(1)
		}
	}
	logger.Info("server stopped")
}

// restoreDraft rehydrates the working draft from the device's last
// snapshot so edits survive restarts.
func restoreDraft(ctx context.Context, manager *session.Manager, repo *storage.Repository, deviceID string, logger *log.Logger) {
	snap, found, err := repo.LoadSnapshot(ctx, deviceID)
	if err != nil {
		logger.Warn("could not load draft snapshot", log.FieldError, err)
		return
	}
	if !found {
		return
	}
	draft, savedAt := snapshot.Decode(snap.Fields, time.Now())
	manager.Restore(ctx, draft)
	logger.Info("restored draft from snapshot",
		log.FieldSnapshot, snap.ID,
		"saved_at", savedAt.Format(time.RFC3339))
}

// Package worker mirrors locally persisted draft snapshots to the
// shared spreadsheet so other devices can pick them up.
package worker

import (
	"context"
	"fmt"
	"time"

	"duit/internal/amqp"
	"duit/internal/log"
	"duit/internal/records"
	"duit/internal/storage"
)

// SnapshotSyncWorker consumes snapshot notifications and writes the
// referenced snapshots to the mirror. A periodic reconcile sweeps up
// snapshots whose notifications were lost.
type SnapshotSyncWorker struct {
	storage   *storage.Repository
	mirror    records.SnapshotWriter
	batchSize int
	logger    *log.Logger
}

func NewSnapshotSyncWorker(repo *storage.Repository, mirror records.SnapshotWriter, batchSize int, logger *log.Logger) *SnapshotSyncWorker {
	if batchSize <= 0 {
		batchSize = 20
	}
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentWorker})
	}
	return &SnapshotSyncWorker{
		storage:   repo,
		mirror:    mirror,
		batchSize: batchSize,
		logger:    logger,
	}
}

// HandleSnapshotMessage mirrors the snapshot named by one queue
// message. The stored snapshot may already be newer than the message;
// whatever is current gets mirrored, and the id guard in MarkSynced
// keeps newer snapshots pending.
func (w *SnapshotSyncWorker) HandleSnapshotMessage(ctx context.Context, msg *amqp.SnapshotSavedMessage) error {
	snap, found, err := w.storage.LoadSnapshot(ctx, msg.DeviceID)
	if err != nil {
		return fmt.Errorf("load snapshot from storage: %w", err)
	}
	if !found {
		w.logger.WarnContext(ctx, "snapshot message for unknown device",
			log.FieldSnapshot, msg.SnapshotID)
		return nil
	}
	if snap.Synced {
		return nil
	}
	return w.mirrorSnapshot(ctx, snap)
}

// Reconcile mirrors every pending snapshot. It backs up the queue in
// case messages were lost or the worker was down.
func (w *SnapshotSyncWorker) Reconcile(ctx context.Context) error {
	pending, err := w.storage.PendingSnapshots(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending snapshots: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "reconciling pending snapshots", log.FieldRecords, len(pending))
	for _, snap := range pending {
		if err := w.mirrorSnapshot(ctx, snap); err != nil {
			w.logger.ErrorContext(ctx, "snapshot mirror failed",
				log.FieldSnapshot, snap.ID,
				log.FieldError, err)
		}
	}
	return nil
}

// Run consumes the sync queue and reconciles on a timer until the
// context ends.
func (w *SnapshotSyncWorker) RunReconcileLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	// Catch up on anything missed while the worker was down.
	if err := w.Reconcile(ctx); err != nil {
		w.logger.ErrorContext(ctx, "startup reconcile failed", log.FieldError, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				w.logger.ErrorContext(ctx, "reconcile failed", log.FieldError, err)
			}
		}
	}
}

func (w *SnapshotSyncWorker) mirrorSnapshot(ctx context.Context, snap storage.DraftSnapshot) error {
	if err := w.mirror.WriteSnapshot(ctx, snap.DeviceID, snap.Fields, snap.UpdatedAt); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, snap.DeviceID, snap.ID); markErr != nil {
			w.logger.ErrorContext(ctx, "failed to record sync error",
				log.FieldSnapshot, snap.ID,
				log.FieldError, markErr)
		}
		return fmt.Errorf("write snapshot to mirror: %w", err)
	}
	if err := w.storage.MarkSynced(ctx, snap.DeviceID, snap.ID); err != nil {
		// The mirror write went through; only the bookkeeping failed.
		w.logger.ErrorContext(ctx, "failed to mark snapshot synced",
			log.FieldSnapshot, snap.ID,
			log.FieldError, err)
		return nil
	}
	w.logger.InfoContext(ctx, "snapshot mirrored", log.FieldSnapshot, snap.ID)
	return nil
}

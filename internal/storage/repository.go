// Package storage persists draft snapshots in SQLite so the working
// draft survives restarts and can be mirrored to other devices.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"duit/internal/log"

	_ "modernc.org/sqlite"
)

// DraftSnapshot is one persisted draft, one row per device. The
// payload is the flat key-value snapshot encoding.
type DraftSnapshot struct {
	ID           string
	DeviceID     string
	Fields       map[string]string
	UpdatedAt    time.Time
	Synced       bool
	SyncAttempts int
}

type Repository struct {
	db *sql.DB
}

func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveSnapshot stores the latest draft for a device, replacing the
// previous row. Every save gets a fresh snapshot id and resets the
// sync state so the worker picks it up again.
func (r *Repository) SaveSnapshot(ctx context.Context, deviceID string, fields map[string]string, at time.Time) (string, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot payload: %w", err)
	}
	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO draft_snapshots (device_id, snapshot_id, payload, updated_at, synced, sync_attempts)
		VALUES (?, ?, ?, ?, 0, 0)
		ON CONFLICT(device_id) DO UPDATE SET
			snapshot_id = excluded.snapshot_id,
			payload = excluded.payload,
			updated_at = excluded.updated_at,
			synced = 0,
			sync_attempts = 0`,
		deviceID, id, string(payload), at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	return id, nil
}

// LoadSnapshot returns the stored draft for a device, if any.
func (r *Repository) LoadSnapshot(ctx context.Context, deviceID string) (DraftSnapshot, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT snapshot_id, payload, updated_at, synced, sync_attempts
		FROM draft_snapshots WHERE device_id = ?`, deviceID)

	var (
		snap      DraftSnapshot
		payload   string
		updatedAt string
		synced    int
	)
	snap.DeviceID = deviceID
	err := row.Scan(&snap.ID, &payload, &updatedAt, &synced, &snap.SyncAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return DraftSnapshot{}, false, nil
	}
	if err != nil {
		return DraftSnapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	snap.Synced = synced != 0
	if err := json.Unmarshal([]byte(payload), &snap.Fields); err != nil {
		return DraftSnapshot{}, false, fmt.Errorf("unmarshal snapshot payload: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		snap.UpdatedAt = ts
	}
	return snap, true, nil
}

// PendingSnapshots lists snapshots not yet mirrored, oldest first.
func (r *Repository) PendingSnapshots(ctx context.Context, limit int) ([]DraftSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, snapshot_id, payload, updated_at, sync_attempts
		FROM draft_snapshots WHERE synced = 0
		ORDER BY updated_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending snapshots: %w", err)
	}
	defer rows.Close()

	var out []DraftSnapshot
	for rows.Next() {
		var (
			snap      DraftSnapshot
			payload   string
			updatedAt string
		)
		if err := rows.Scan(&snap.DeviceID, &snap.ID, &payload, &updatedAt, &snap.SyncAttempts); err != nil {
			return nil, fmt.Errorf("scan pending snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &snap.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot payload: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			snap.UpdatedAt = ts
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// MarkSynced flags a snapshot as mirrored. The id guard makes sure a
// newer snapshot written in the meantime stays pending.
func (r *Repository) MarkSynced(ctx context.Context, deviceID, snapshotID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE draft_snapshots SET synced = 1
		WHERE device_id = ? AND snapshot_id = ?`, deviceID, snapshotID)
	if err != nil {
		return fmt.Errorf("mark snapshot synced: %w", err)
	}
	return nil
}

// MarkSyncError counts a failed mirror attempt.
func (r *Repository) MarkSyncError(ctx context.Context, deviceID, snapshotID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE draft_snapshots SET sync_attempts = sync_attempts + 1
		WHERE device_id = ? AND snapshot_id = ?`, deviceID, snapshotID)
	if err != nil {
		return fmt.Errorf("mark snapshot sync error: %w", err)
	}
	return nil
}

// SnapshotSink adapts the repository to the session's snapshot hook
// for one device. Notify, when set, announces each saved snapshot to
// the sync queue; a notification failure is logged and swallowed
// because the periodic reconcile covers lost messages.
type SnapshotSink struct {
	Repo     *Repository
	DeviceID string
	Notify   func(ctx context.Context, snapshotID string, at time.Time) error
	Logger   *log.Logger
}

func (s *SnapshotSink) SaveSnapshot(ctx context.Context, fields map[string]string, at time.Time) error {
	id, err := s.Repo.SaveSnapshot(ctx, s.DeviceID, fields, at)
	if err != nil {
		return err
	}
	if s.Notify != nil {
		if err := s.Notify(ctx, id, at); err != nil && s.Logger != nil {
			s.Logger.WarnContext(ctx, "snapshot sync notification failed",
				log.FieldSnapshot, id,
				log.FieldError, err)
		}
	}
	return nil
}

package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"duit/internal/amqp"
	"duit/internal/records/memory"
	"duit/internal/storage"
)

func newRepo(t *testing.T) *storage.Repository {
	t.Helper()
	repo, err := storage.New(filepath.Join(t.TempDir(), "duit-test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestHandleSnapshotMessageMirrorsAndMarks(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	mirror := memory.New()
	w := NewSnapshotSyncWorker(repo, mirror, 10, nil)

	at := time.Now().UTC()
	id, err := repo.SaveSnapshot(ctx, "laptop", map[string]string{"basic_salary": "6000"}, at)
	if err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	msg := amqp.NewSnapshotSavedMessage(id, "laptop", at)
	if err := w.HandleSnapshotMessage(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	fields, ok := mirror.Snapshot("laptop")
	if !ok || fields["basic_salary"] != "6000" {
		t.Errorf("snapshot not mirrored: %v", fields)
	}

	pending, _ := repo.PendingSnapshots(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("mirrored snapshot must be marked synced, %d still pending", len(pending))
	}
}

func TestHandleSnapshotMessageUnknownDevice(t *testing.T) {
	w := NewSnapshotSyncWorker(newRepo(t), memory.New(), 10, nil)
	msg := amqp.NewSnapshotSavedMessage("snap-1", "ghost", time.Now())
	if err := w.HandleSnapshotMessage(context.Background(), msg); err != nil {
		t.Errorf("unknown device must not error (message is stale): %v", err)
	}
}

func TestHandleSnapshotMessageAlreadySynced(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	mirror := memory.New()
	w := NewSnapshotSyncWorker(repo, mirror, 10, nil)

	id, _ := repo.SaveSnapshot(ctx, "laptop", map[string]string{"v": "1"}, time.Now().UTC())
	repo.MarkSynced(ctx, "laptop", id)

	msg := amqp.NewSnapshotSavedMessage(id, "laptop", time.Now())
	if err := w.HandleSnapshotMessage(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, ok := mirror.Snapshot("laptop"); ok {
		t.Error("already-synced snapshot must not be mirrored again")
	}
}

type failingMirror struct {
	err error
}

func (m *failingMirror) WriteSnapshot(context.Context, string, map[string]string, time.Time) error {
	return m.err
}

func TestHandleSnapshotMessageMirrorFailure(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	w := NewSnapshotSyncWorker(repo, &failingMirror{err: errors.New("quota exceeded")}, 10, nil)

	id, _ := repo.SaveSnapshot(ctx, "laptop", map[string]string{"v": "1"}, time.Now().UTC())
	msg := amqp.NewSnapshotSavedMessage(id, "laptop", time.Now())

	if err := w.HandleSnapshotMessage(ctx, msg); err == nil {
		t.Fatal("mirror failure must surface so the delivery is requeued")
	}

	snap, _, _ := repo.LoadSnapshot(ctx, "laptop")
	if snap.Synced {
		t.Error("failed mirror must stay pending")
	}
	if snap.SyncAttempts != 1 {
		t.Errorf("expected 1 recorded attempt, got %d", snap.SyncAttempts)
	}
}

func TestReconcileSweepsPending(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	mirror := memory.New()
	w := NewSnapshotSyncWorker(repo, mirror, 10, nil)

	now := time.Now().UTC()
	repo.SaveSnapshot(ctx, "laptop", map[string]string{"v": "1"}, now)
	repo.SaveSnapshot(ctx, "phone", map[string]string{"v": "2"}, now.Add(time.Second))

	if err := w.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	for _, device := range []string{"laptop", "phone"} {
		if _, ok := mirror.Snapshot(device); !ok {
			t.Errorf("device %s not mirrored", device)
		}
	}
	pending, _ := repo.PendingSnapshots(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("reconcile must drain the pending set, %d left", len(pending))
	}
}

// Package records defines the record-store ports and the tabular row
// codec shared by the Google Sheets adapter and the in-memory adapter.
package records

import (
	"context"
	"errors"
	"time"

	"duit/internal/core"
)

var (
	// ErrStoreUnavailable signals a missing or misconfigured backing
	// store; callers treat it as a disabled feature, not a crash.
	ErrStoreUnavailable = errors.New("record store unavailable")
)

type (
	// Store persists one HistoryRecord per PeriodKey. Upsert replaces
	// any existing row with the same (Month, Year); the store never
	// holds two rows for one key.
	Store interface {
		List(ctx context.Context) ([]core.HistoryRecord, error)
		Find(ctx context.Context, key core.PeriodKey) (core.HistoryRecord, bool, error)
		Upsert(ctx context.Context, rec core.HistoryRecord) error
		// Delete removes the given keys and returns how many rows were
		// actually removed. Absent keys are not an error.
		Delete(ctx context.Context, keys []core.PeriodKey) (int, error)
	}

	// SnapshotWriter mirrors a cross-device draft snapshot, one row
	// per device id, latest write wins.
	SnapshotWriter interface {
		WriteSnapshot(ctx context.Context, deviceID string, fields map[string]string, at time.Time) error
	}
)

// Package memory is an in-memory record store used for local
// development and tests. It mirrors the Sheets adapter's semantics,
// including upsert-by-period and count-returning deletes.
package memory

import (
	"context"
	"sync"
	"time"

	"duit/internal/core"
	"duit/internal/records"
)

type Store struct {
	mu        sync.Mutex
	items     []core.HistoryRecord
	snapshots map[string]map[string]string
}

var (
	_ records.Store          = (*Store)(nil)
	_ records.SnapshotWriter = (*Store)(nil)
)

func New() *Store {
	return &Store{snapshots: make(map[string]map[string]string)}
}

// Seed preloads records without going through Upsert validation paths.
func Seed(recs ...core.HistoryRecord) *Store {
	s := New()
	s.items = append(s.items, recs...)
	return s
}

func (s *Store) List(_ context.Context) ([]core.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.HistoryRecord, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *Store) Find(_ context.Context, key core.PeriodKey) (core.HistoryRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.items {
		if rec.Period == key {
			return rec, true, nil
		}
	}
	return core.HistoryRecord{}, false, nil
}

func (s *Store) Upsert(_ context.Context, rec core.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.items {
		if existing.Period == rec.Period {
			s.items[i] = rec
			return nil
		}
	}
	s.items = append(s.items, rec)
	return nil
}

func (s *Store) Delete(_ context.Context, keys []core.PeriodKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[core.PeriodKey]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	kept := s.items[:0]
	removed := 0
	for _, rec := range s.items {
		if _, hit := wanted[rec.Period]; hit {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.items = kept
	return removed, nil
}

func (s *Store) WriteSnapshot(_ context.Context, deviceID string, fields map[string]string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	s.snapshots[deviceID] = cp
	return nil
}

// Snapshot returns the last snapshot mirrored for a device.
func (s *Store) Snapshot(deviceID string) (map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.snapshots[deviceID]
	return fields, ok
}

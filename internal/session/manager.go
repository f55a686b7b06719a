// Package session holds the single working draft and drives every
// state transition: editing, period switches, currency switches, and
// the load/save/delete flows against the record store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"duit/internal/core"
	"duit/internal/fx"
	"duit/internal/log"
	"duit/internal/records"
	"duit/internal/snapshot"
)

// ErrNoRecord is returned when a load names a period with no saved
// record.
var ErrNoRecord = errors.New("no saved record for period")

// SnapshotSink receives the working draft after each edit so it can
// survive restarts and reach other devices.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, fields map[string]string, at time.Time) error
}

// Manager serializes all access to the working draft. The draft always
// belongs to exactly one (period, currency) pair; transitions replace
// it wholesale, never partially.
type Manager struct {
	store     records.Store
	rates     fx.RateSource
	snapshots SnapshotSink
	logger    *log.Logger
	now       func() time.Time

	mu    sync.Mutex
	draft core.DraftRecord
}

type Options struct {
	Store     records.Store
	Rates     fx.RateSource
	Snapshots SnapshotSink
	Logger    *log.Logger
	Now       func() time.Time
}

func NewManager(opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Component: log.ComponentSession})
	}
	if opts.Rates == nil {
		opts.Rates = fx.DefaultStatic()
	}
	return &Manager{
		store:     opts.Store,
		rates:     opts.Rates,
		snapshots: opts.Snapshots,
		logger:    opts.Logger,
		now:       opts.Now,
		draft:     core.DefaultDraft(core.CurrentPeriod(opts.Now())),
	}
}

// State returns the working draft and its derived metrics.
func (m *Manager) State() (core.DraftRecord, core.Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.draft.Clone()
	return d, core.Compute(d)
}

// UpdateDraft replaces the editable fields of the working draft. The
// active period and currency are owned by their own transitions, so
// whatever the caller sent for those is overwritten. The updated draft
// is snapshotted; a snapshot failure is logged but never blocks the
// edit.
func (m *Manager) UpdateDraft(ctx context.Context, d core.DraftRecord) (core.DraftRecord, core.Metrics, error) {
	m.mu.Lock()
	d.Period = m.draft.Period
	d.Currency = m.draft.Currency
	if err := d.Validate(); err != nil {
		m.mu.Unlock()
		return core.DraftRecord{}, core.Metrics{}, err
	}
	m.draft = d.Clone()
	out := m.draft.Clone()
	m.mu.Unlock()

	m.persistSnapshot(ctx, out)
	return out, core.Compute(out), nil
}

// SwitchPeriod moves the session to another period. A saved record for
// that period replaces the whole draft, currency included; otherwise
// the draft resets to the default template in the base currency.
// Switching to the already-active period changes nothing.
func (m *Manager) SwitchPeriod(ctx context.Context, key core.PeriodKey) (core.DraftRecord, core.Metrics, error) {
	if err := key.Validate(); err != nil {
		return core.DraftRecord{}, core.Metrics{}, err
	}

	m.mu.Lock()
	if key == m.draft.Period {
		d := m.draft.Clone()
		m.mu.Unlock()
		return d, core.Compute(d), nil
	}
	m.mu.Unlock()

	next := core.DefaultDraft(key)
	if m.store != nil {
		rec, found, err := m.store.Find(ctx, key)
		if err != nil {
			return core.DraftRecord{}, core.Metrics{}, fmt.Errorf("look up record: %w", err)
		}
		if found {
			next = rec.Draft()
		}
	}

	m.mu.Lock()
	m.draft = next
	out := m.draft.Clone()
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "period switched",
		log.FieldMonth, key.Month,
		log.FieldYear, key.Year,
		log.FieldCurrency, string(out.Currency))
	m.persistSnapshot(ctx, out)
	return out, core.Compute(out), nil
}

// SwitchCurrency converts every monetary amount in the draft to the
// target currency, passing through the base currency. Both legs must
// succeed; when either rate is unavailable the draft stays exactly as
// it was.
func (m *Manager) SwitchCurrency(ctx context.Context, target core.Currency) (core.DraftRecord, core.Metrics, error) {
	if !target.Valid() {
		return core.DraftRecord{}, core.Metrics{}, core.ErrInvalidCurrency
	}

	m.mu.Lock()
	current := m.draft.Currency
	m.mu.Unlock()
	if target == current {
		d, met := m.State()
		return d, met, nil
	}

	toBase := 1.0
	if current != core.BaseCurrency {
		r, err := m.rates.Rate(ctx, current, core.BaseCurrency)
		if err != nil {
			return core.DraftRecord{}, core.Metrics{}, err
		}
		toBase = r
	}
	fromBase := 1.0
	if target != core.BaseCurrency {
		r, err := m.rates.Rate(ctx, core.BaseCurrency, target)
		if err != nil {
			return core.DraftRecord{}, core.Metrics{}, err
		}
		fromBase = r
	}

	m.mu.Lock()
	if m.draft.Currency != current {
		// Lost the race to another currency switch; retry from scratch.
		m.mu.Unlock()
		return m.SwitchCurrency(ctx, target)
	}
	next := m.draft.Clone()
	next.ScaleAmounts(toBase)
	next.ScaleAmounts(fromBase)
	next.Currency = target
	m.draft = next
	out := m.draft.Clone()
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "currency switched",
		log.FieldCurrency, string(target),
		log.FieldRate, toBase*fromBase)
	m.persistSnapshot(ctx, out)
	return out, core.Compute(out), nil
}

/// LoadRecord jumps the session to a saved record: period, currency,
// and amounts all come from the store.
func (m *Manager) LoadRecord(ctx context.Context, key core.PeriodKey) (core.DraftRecord, core.Metrics, error) {
	if err := key.Validate(); err != nil {
		return core.DraftRecord{}, core.Metrics{}, err
	}
	if m.store == nil {
		return core.DraftRecord{}, core.Metrics{}, records.ErrStoreUnavailable
	}
	rec, found, err := m.store.Find(ctx, key)
	if err != nil {
		return core.DraftRecord{}, core.Metrics{}, fmt.Errorf("look up record: %w", err)
	}
	if !found {
		return core.DraftRecord{}, core.Metrics{}, fmt.Errorf("%w: %s", ErrNoRecord, key.Label())
	}

	m.mu.Lock()
	m.draft = rec.Draft()
	out := m.draft.Clone()
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "record loaded", log.FieldMonth, key.Month, log.FieldYear, key.Year)
	m.persistSnapshot(ctx, out)
	return out, core.Compute(out), nil
}

// Save snapshots the working draft with its derived totals and upserts
// it into the store under the draft's (Month, Year). Saving the same
// period again replaces the earlier record.
func (m *Manager) Save(ctx context.Context) (core.HistoryRecord, error) {
	if m.store == nil {
		return core.HistoryRecord{}, records.ErrStoreUnavailable
	}

	m.mu.Lock()
	d := m.draft.Clone()
	m.mu.Unlock()
	if err := d.Validate(); err != nil {
		return core.HistoryRecord{}, err
	}

	rec := core.Snapshot(d, core.Compute(d), m.now())
	if err := m.store.Upsert(ctx, rec); err != nil {
		return core.HistoryRecord{}, fmt.Errorf("save record: %w", err)
	}
	m.logger.InfoContext(ctx, "record saved",
		log.FieldMonth, rec.Period.Month,
		log.FieldYear, rec.Period.Year)
	return rec, nil
}

// Delete removes the given periods from the store. The working draft
// is untouched, even when its own period is among the deleted keys.
func (m *Manager) Delete(ctx context.Context, keys []core.PeriodKey) (int, error) {
	if m.store == nil {
		return 0, records.ErrStoreUnavailable
	}
	for _, k := range keys {
		if err := k.Validate(); err != nil {
			return 0, err
		}
	}
	n, err := m.store.Delete(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	if n == 0 {
		m.logger.InfoContext(ctx, "no matching record found", log.FieldRecords, len(keys))
	} else {
		m.logger.InfoContext(ctx, "records deleted", log.FieldRecords, n)
	}
	return n, nil
}

// History lists every saved record.
func (m *Manager) History(ctx context.Context) ([]core.HistoryRecord, error) {
	if m.store == nil {
		return nil, records.ErrStoreUnavailable
	}
	return m.store.List(ctx)
}

// Restore replaces the working draft from a persisted snapshot, used
// once at startup. Invalid snapshots are ignored.
func (m *Manager) Restore(ctx context.Context, d core.DraftRecord) {
	if err := d.Validate(); err != nil {
		m.logger.WarnContext(ctx, "ignoring invalid draft snapshot", log.FieldError, err)
		return
	}
	m.mu.Lock()
	m.draft = d.Clone()
	m.mu.Unlock()
	m.logger.InfoContext(ctx, "draft restored",
		log.FieldMonth, d.Period.Month,
		log.FieldYear, d.Period.Year,
		log.FieldCurrency, string(d.Currency))
}

func (m *Manager) persistSnapshot(ctx context.Context, d core.DraftRecord) {
	if m.snapshots == nil {
		return
	}
	at := m.now()
	if err := m.snapshots.SaveSnapshot(ctx, snapshot.Encode(d, at), at); err != nil {
		m.logger.WarnContext(ctx, "draft snapshot not persisted", log.FieldError, err)
	}
}

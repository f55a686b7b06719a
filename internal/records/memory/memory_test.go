package memory

import (
	"context"
	"testing"
	"time"

	"duit/internal/core"
)

func record(month string, year int, savings float64) core.HistoryRecord {
	d := core.DefaultDraft(core.PeriodKey{Month: month, Year: year})
	d.CurrentSavings = savings
	return core.Snapshot(d, core.Compute(d), time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestUpsertReplacesSamePeriod(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Upsert(ctx, record("March", 2026, 1000)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(ctx, record("March", 2026, 2000)); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	recs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected one record per period, got %d", len(recs))
	}
	if recs[0].CurrentSavings != 2000 {
		t.Errorf("upsert must replace, got savings %v", recs[0].CurrentSavings)
	}
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	s := Seed(record("March", 2026, 1000), record("April", 2026, 1100))

	rec, found, err := s.Find(ctx, core.PeriodKey{Month: "April", Year: 2026})
	if err != nil || !found {
		t.Fatalf("expected to find April 2026, got found=%v err=%v", found, err)
	}
	if rec.CurrentSavings != 1100 {
		t.Errorf("wrong record returned: %+v", rec)
	}

	if _, found, _ := s.Find(ctx, core.PeriodKey{Month: "May", Year: 2026}); found {
		t.Error("absent period must not be found")
	}
}

func TestDeleteCountsAndIgnoresAbsent(t *testing.T) {
	ctx := context.Background()
	s := Seed(record("March", 2026, 1000), record("April", 2026, 1100))

	n, err := s.Delete(ctx, []core.PeriodKey{
		{Month: "March", Year: 2026},
		{Month: "December", Year: 2025},
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deletion, got %d", n)
	}

	recs, _ := s.List(ctx)
	if len(recs) != 1 || recs[0].Period.Month != "April" {
		t.Errorf("unexpected remaining records: %+v", recs)
	}

	if n, _ := s.Delete(ctx, []core.PeriodKey{{Month: "March", Year: 2026}}); n != 0 {
		t.Errorf("deleting an absent key must be a no-op, got %d", n)
	}
}

func TestWriteSnapshotLatestWins(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	if err := s.WriteSnapshot(ctx, "laptop", map[string]string{"basic_salary": "6000"}, now); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	if err := s.WriteSnapshot(ctx, "laptop", map[string]string{"basic_salary": "7000"}, now); err != nil {
		t.Fatalf("overwrite snapshot: %v", err)
	}

	fields, ok := s.Snapshot("laptop")
	if !ok {
		t.Fatal("expected a snapshot for device laptop")
	}
	if fields["basic_salary"] != "7000" {
		t.Errorf("latest write must win, got %q", fields["basic_salary"])
	}
}

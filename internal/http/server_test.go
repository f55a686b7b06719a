package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"duit/internal/advisor"
	"duit/internal/core"
	"duit/internal/fx"
	"duit/internal/records/memory"
	"duit/internal/session"
)

var testNow = time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

type stubReviewer struct {
	review string
	err    error
}

func (s *stubReviewer) Review(context.Context, advisor.Summary) (string, error) {
	return s.review, s.err
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	if opts.Manager == nil {
		opts.Manager = session.NewManager(session.Options{
			Store: memory.New(),
			Rates: fx.DefaultStatic(),
			Now:   func() time.Time { return testNow },
		})
	}
	srv := NewServer(opts)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown(context.Background())
	})
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, fields
}

func draftFrom(t *testing.T, fields map[string]json.RawMessage) core.DraftRecord {
	t.Helper()
	var d core.DraftRecord
	if err := json.Unmarshal(fields["draft"], &d); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	return d
}

func metricsFrom(t *testing.T, fields map[string]json.RawMessage) core.Metrics {
	t.Helper()
	var m core.Metrics
	if err := json.Unmarshal(fields["metrics"], &m); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	return m
}

func TestDashboard(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, fields := doJSON(t, http.MethodGet, ts.URL+"/api/v1/dashboard", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	d := draftFrom(t, fields)
	if d.Period.Month != "March" || d.Period.Year != 2026 {
		t.Errorf("expected current period, got %+v", d.Period)
	}
	m := metricsFrom(t, fields)
	if m.NetIncome != 5457.35 {
		t.Errorf("expected template net income 5457.35, got %v", m.NetIncome)
	}

	var horizons []int
	if err := json.Unmarshal(fields["projection_horizons"], &horizons); err != nil || len(horizons) != 4 {
		t.Errorf("expected 4 projection horizons, got %v (%v)", horizons, err)
	}
}

func TestUpdateDraftEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})

	edit := core.DefaultDraft(core.PeriodKey{Month: "March", Year: 2026})
	edit.BasicSalary = 7500

	resp, fields := doJSON(t, http.MethodPut, ts.URL+"/api/v1/draft", edit)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if d := draftFrom(t, fields); d.BasicSalary != 7500 {
		t.Errorf("edit lost, got %v", d.BasicSalary)
	}
}

func TestUpdateDraftInvalidEPFRate(t *testing.T) {
	ts := newTestServer(t, Options{})

	edit := core.DefaultDraft(core.PeriodKey{Month: "March", Year: 2026})
	edit.EPFRate = 50

	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/api/v1/draft", edit)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", resp.StatusCode)
	}
}

func TestSwitchPeriodEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, fields := doJSON(t, http.MethodPost, ts.URL+"/api/v1/period",
		map[string]any{"month": "April", "year": 2026})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if d := draftFrom(t, fields); d.Period.Month != "April" {
		t.Errorf("period not switched: %+v", d.Period)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/period",
		map[string]any{"month": "Aprile", "year": 2026})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bad month should be 422, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/period",
		map[string]any{"month": "April", "year": 2050})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("out-of-range year should be 422, got %d", resp.StatusCode)
	}
}

func TestSwitchCurrencyEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, fields := doJSON(t, http.MethodPost, ts.URL+"/api/v1/currency",
		map[string]any{"currency": "USD"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if d := draftFrom(t, fields); d.Currency != core.USD {
		t.Errorf("currency not switched: %s", d.Currency)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/currency",
		map[string]any{"currency": "BTC"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("unknown currency should be 422, got %d", resp.StatusCode)
	}
}

func TestSwitchCurrencyRateUnavailable(t *testing.T) {
	manager := session.NewManager(session.Options{
		Store: memory.New(),
		Rates: fx.RateFunc(func(context.Context, core.Currency, core.Currency) (float64, error) {
			return 0, fx.ErrRateUnavailable
		}),
		Now: func() time.Time { return testNow },
	})
	ts := newTestServer(t, Options{Manager: manager})

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/currency",
		map[string]any{"currency": "USD"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("unavailable rate should be 502, got %d", resp.StatusCode)
	}
}

func TestSaveLoadDeleteFlow(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, fields := doJSON(t, http.MethodPost, ts.URL+"/api/v1/records/save", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status %d", resp.StatusCode)
	}
	var rec core.HistoryRecord
	if err := json.Unmarshal(fields["record"], &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.Balance != 1157.35 {
		t.Errorf("saved record balance should be 1157.35, got %v", rec.Balance)
	}

	resp, fields = doJSON(t, http.MethodGet, ts.URL+"/api/v1/records", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status %d", resp.StatusCode)
	}
	var recs []core.HistoryRecord
	if err := json.Unmarshal(fields["records"], &recs); err != nil || len(recs) != 1 {
		t.Fatalf("expected one record, got %v (%v)", recs, err)
	}

	resp, fields = doJSON(t, http.MethodPost, ts.URL+"/api/v1/records/load",
		map[string]any{"month": "March", "year": 2026})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load status %d", resp.StatusCode)
	}
	if d := draftFrom(t, fields); d.Period.Month != "March" {
		t.Errorf("load did not land on March: %+v", d.Period)
	}

	resp, fields = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/records",
		map[string]any{"periods": []map[string]any{{"month": "March", "year": 2026}}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d", resp.StatusCode)
	}
	var deleted int
	json.Unmarshal(fields["deleted"], &deleted)
	if deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", deleted)
	}

	// Deleting again is a no-op with an explanatory message.
	resp, fields = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/records",
		map[string]any{"periods": []map[string]any{{"month": "March", "year": 2026}}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second delete status %d", resp.StatusCode)
	}
	var message string
	json.Unmarshal(fields["message"], &message)
	if message != "no matching record found" {
		t.Errorf("unexpected message %q", message)
	}
}

func TestLoadAbsentRecordIs404(t *testing.T) {
	ts := newTestServer(t, Options{})
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/records/load",
		map[string]any{"month": "July", "year": 2027})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestProjectionEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, fields := doJSON(t, http.MethodGet, ts.URL+"/api/v1/projection?months=36&rates=3,3.5,4", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var points []core.ProjectionPoint
	if err := json.Unmarshal(fields["points"], &points); err != nil {
		t.Fatalf("decode points: %v", err)
	}
	if len(points) != 36 {
		t.Errorf("expected 36 points, got %d", len(points))
	}
	last := points[len(points)-1]
	if last.RealPurchasingPower >= last.NominalWealth {
		t.Errorf("positive inflation must erode purchasing power: %+v", last)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/projection?months=13", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("unknown horizon should be 422, got %d", resp.StatusCode)
	}
}

func TestReviewEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{Reviewer: &stubReviewer{review: "Looks healthy."}})

	resp, fields := doJSON(t, http.MethodPost, ts.URL+"/api/v1/review", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var review string
	json.Unmarshal(fields["review"], &review)
	if review != "Looks healthy." {
		t.Errorf("unexpected review %q", review)
	}
}

func TestReviewWithoutReviewerIs503(t *testing.T) {
	ts := newTestServer(t, Options{})
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/review", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, Options{})
	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/api/v1/draft", map[string]any{})
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestBadJSONBody(t *testing.T) {
	ts := newTestServer(t, Options{})
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/draft", strings.NewReader("{oops"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status %d", path, resp.StatusCode)
		}
	}
}

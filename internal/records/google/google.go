// Package google stores financial records in a Google Sheets
// spreadsheet, one row per (Month, Year) plus a header row.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"duit/internal/core"
	"duit/internal/log"
	"duit/internal/records"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc            *gsheet.Service
	spreadsheetID  string
	recordsSheet   string
	snapshotsSheet string
	logger         *log.Logger
}

// Ensure interface conformance
var (
	_ records.Store          = (*Client)(nil)
	_ records.SnapshotWriter = (*Client)(nil)
)

type Options struct {
	SpreadsheetID  string
	RecordsSheet   string
	SnapshotsSheet string
	Logger         *log.Logger
}

// New creates a Sheets-backed record store using Service Account
// credentials from the environment (GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS).
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if opts.RecordsSheet == "" {
		opts.RecordsSheet = "Records"
	}
	if opts.SnapshotsSheet == "" {
		opts.SnapshotsSheet = "Snapshots"
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Component: log.ComponentRecords})
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:            svc,
		spreadsheetID:  opts.SpreadsheetID,
		recordsSheet:   opts.RecordsSheet,
		snapshotsSheet: opts.SnapshotsSheet,
		logger:         opts.Logger,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// List returns every stored record, newest year first within the sheet
// order left untouched. Rows that do not parse are skipped.
func (c *Client) List(ctx context.Context) ([]core.HistoryRecord, error) {
	rows, err := c.readRows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.HistoryRecord, 0, len(rows))
	for i, row := range rows {
		rec, ok := records.DecodeRow(row)
		if !ok {
			if i > 0 {
				c.logger.WarnContext(ctx, "skipping unparseable record row", log.FieldRowIndex, i+1)
			}
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) Find(ctx context.Context, key core.PeriodKey) (core.HistoryRecord, bool, error) {
	rows, err := c.readRows(ctx)
	if err != nil {
		return core.HistoryRecord{}, false, err
	}
	for _, row := range rows {
		rec, ok := records.DecodeRow(row)
		if ok && rec.Period == key {
			return rec, true, nil
		}
	}
	return core.HistoryRecord{}, false, nil
}

// Upsert writes the record into the row holding its (Month, Year), or
// appends a new row when the key is not present yet.
func (c *Client) Upsert(ctx context.Context, rec core.HistoryRecord) error {
	if err := c.ensureHeader(ctx, c.recordsSheet, records.Header); err != nil {
		return err
	}
	rows, err := c.readRows(ctx)
	if err != nil {
		return err
	}
	// Rows are 1-based in A1 notation; row 1 is the header.
	targetRow := len(rows) + 2
	for i, row := range rows {
		if existing, ok := records.DecodeRow(row); ok && existing.Period == rec.Period {
			targetRow = i + 2
			break
		}
	}

	rng := fmt.Sprintf("%s!A%d:O%d", c.recordsSheet, targetRow, targetRow)
	vr := &gsheet.ValueRange{Values: [][]any{records.EncodeRow(rec)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	c.logger.InfoContext(ctx, "record saved",
		log.FieldMonth, rec.Period.Month,
		log.FieldYear, rec.Period.Year,
		log.FieldRowIndex, targetRow)
	return nil
}

// Delete removes the rows matching the given keys. Rows are deleted
// bottom-up so earlier deletions do not shift later indexes.
func (c *Client) Delete(ctx context.Context, keys []core.PeriodKey) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	rows, err := c.readRows(ctx)
	if err != nil {
		return 0, err
	}
	wanted := make(map[core.PeriodKey]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	// Zero-based sheet row indexes (header is row 0).
	var indexes []int
	for i, row := range rows {
		if rec, ok := records.DecodeRow(row); ok {
			if _, hit := wanted[rec.Period]; hit {
				indexes = append(indexes, i+1)
			}
		}
	}
	if len(indexes) == 0 {
		return 0, nil
	}

	sheetID, err := c.sheetID(ctx, c.recordsSheet)
	if err != nil {
		return 0, err
	}
	reqs := make([]*gsheet.Request, 0, len(indexes))
	for i := len(indexes) - 1; i >= 0; i-- {
		reqs = append(reqs, &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(indexes[i]),
					EndIndex:   int64(indexes[i] + 1),
				},
			},
		})
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("delete rows: %w", err)
	}
	c.logger.InfoContext(ctx, "records deleted", log.FieldRecords, len(indexes))
	return len(indexes), nil
}

var snapshotHeader = []string{"Device", "Updated At", "Payload"}

// WriteSnapshot mirrors a draft snapshot into the snapshots sheet, one
// row per device, replacing any previous row for the same device.
func (c *Client) WriteSnapshot(ctx context.Context, deviceID string, fields map[string]string, at time.Time) error {
	if err := c.ensureHeader(ctx, c.snapshotsSheet, snapshotHeader); err != nil {
		return err
	}
	rng := fmt.Sprintf("%s!A:C", c.snapshotsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	targetRow := len(resp.Values) + 1
	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == deviceID {
			targetRow = i + 1
			break
		}
	}

	payload := encodeSnapshotPayload(fields)
	writeRng := fmt.Sprintf("%s!A%d:C%d", c.snapshotsSheet, targetRow, targetRow)
	vr := &gsheet.ValueRange{Values: [][]any{{deviceID, at.UTC().Format(time.RFC3339), payload}}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", writeRng, err)
	}
	return nil
}

func (c *Client) readRows(ctx context.Context) ([][]string, error) {
	rng := fmt.Sprintf("%s!A:O", c.recordsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		if isMissingSheet(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		out = append(out, toStrings(row))
	}
	// Drop the header row if present.
	if len(out) > 0 && strings.EqualFold(cellAt(out[0], 0), "Month") {
		out = out[1:]
	}
	return out, nil
}

// ensureHeader creates the sheet tab and writes the header row when
// the tab is missing or empty.
func (c *Client) ensureHeader(ctx context.Context, sheetName string, header []string) error {
	if _, err := c.sheetID(ctx, sheetName); err != nil {
		if !errors.Is(err, errSheetNotFound) {
			return err
		}
		_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
			Requests: []*gsheet.Request{{
				AddSheet: &gsheet.AddSheetRequest{
					Properties: &gsheet.SheetProperties{Title: sheetName},
				},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("create sheet %s: %w", sheetName, err)
		}
		c.logger.InfoContext(ctx, "created sheet tab", log.FieldSheet, sheetName)
	}

	rng := fmt.Sprintf("%s!A1:%s1", sheetName, columnLetter(len(header)))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{
		Values: [][]any{row},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	return nil
}

var errSheetNotFound = errors.New("sheet tab not found")

func (c *Client) sheetID(ctx context.Context, sheetName string) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == sheetName {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", errSheetNotFound, sheetName)
}

func isMissingSheet(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unable to parse range")
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// columnLetter maps a 1-based column count to its A1 letter. Sheets
// here never grow past 26 columns.
func columnLetter(n int) string {
	if n < 1 || n > 26 {
		return "Z"
	}
	return string(rune('A' + n - 1))
}

// encodeSnapshotPayload serializes the flat key-value snapshot into a
// single cell as "k=v" pairs separated by newlines. Values hold JSON
// arrays, so newline is the only safe separator.
func encodeSnapshotPayload(fields map[string]string) string {
	var b strings.Builder
	first := true
	for _, k := range sortedKeys(fields) {
		if !first {
			b.WriteByte('\n')
		}
		first = false
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

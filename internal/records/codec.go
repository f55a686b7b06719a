package records

import (
	"strconv"
	"strings"
	"time"

	"duit/internal/core"
	"duit/internal/snapshot"
)

// Header is the first row of the records sheet. Column order is the
// wire format; both adapters and any human editing the spreadsheet
// rely on it.
var Header = []string{
	"Month", "Year", "Currency",
	"Basic Salary", "Allowances", "Variable Income", "Current Savings", "EPF Rate",
	"Expenses", "Deductions",
	"Net Income", "Total Expenses", "Balance", "EPF Amount",
	"Saved At",
}

// EncodeRow flattens a record into one sheet row matching Header.
func EncodeRow(r core.HistoryRecord) []any {
	return []any{
		r.Period.Month,
		r.Period.Year,
		string(r.Currency),
		r.BasicSalary,
		r.Allowances,
		r.VariableIncome,
		r.CurrentSavings,
		r.EPFRate,
		snapshot.EncodeItems(r.Expenses),
		snapshot.EncodeItems(r.Deductions),
		r.NetIncome,
		r.TotalExpenses,
		r.Balance,
		r.EPFAmount,
		r.SavedAt.UTC().Format(time.RFC3339),
	}
}

// DecodeRow parses one sheet row. Rows with an unrecognizable key are
// rejected (ok=false); malformed line-item JSON degrades to an empty
// collection instead of failing, per the "treat bad data as no data"
// rule. Monetary cells that fail to parse become zero.
func DecodeRow(cols []string) (core.HistoryRecord, bool) {
	if len(cols) < 3 {
		return core.HistoryRecord{}, false
	}
	month := strings.TrimSpace(cols[0])
	if _, valid := core.MonthIndex(month); !valid {
		return core.HistoryRecord{}, false
	}
	year, err := strconv.Atoi(strings.TrimSpace(cols[1]))
	if err != nil {
		return core.HistoryRecord{}, false
	}

	rec := core.HistoryRecord{
		Period:   core.PeriodKey{Month: month, Year: year},
		Currency: core.BaseCurrency,
	}
	if c, err := core.ParseCurrency(strings.TrimSpace(cols[2])); err == nil {
		rec.Currency = c
	}
	rec.BasicSalary = floatCell(cols, 3)
	rec.Allowances = floatCell(cols, 4)
	rec.VariableIncome = floatCell(cols, 5)
	rec.CurrentSavings = floatCell(cols, 6)
	rec.EPFRate = int(floatCell(cols, 7))
	if items, err := snapshot.DecodeItems(cell(cols, 8)); err == nil {
		rec.Expenses = items
	}
	if items, err := snapshot.DecodeItems(cell(cols, 9)); err == nil {
		rec.Deductions = items
	}
	rec.NetIncome = floatCell(cols, 10)
	rec.TotalExpenses = floatCell(cols, 11)
	rec.Balance = floatCell(cols, 12)
	rec.EPFAmount = floatCell(cols, 13)
	if ts, err := time.Parse(time.RFC3339, cell(cols, 14)); err == nil {
		rec.SavedAt = ts
	}
	return rec, true
}

func cell(cols []string, idx int) string {
	if idx < 0 || idx >= len(cols) {
		return ""
	}
	return strings.TrimSpace(cols[idx])
}

func floatCell(cols []string, idx int) float64 {
	s := cell(cols, idx)
	if s == "" {
		return 0
	}
	// Sheets may hand back comma decimals depending on locale.
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// Package snapshot encodes the cross-device draft sync payload: a flat
// key-value map that any device can write and any device can load,
// tolerating missing fields by falling back to the default template.
package snapshot

import (
	"encoding/json"
	"strconv"
	"time"

	"duit/internal/core"
)

// Field keys of the flat payload.
const (
	KeyTimestamp      = "timestamp"
	KeyExpenses       = "expenses"
	KeyDeductions     = "deductions"
	KeyBasicSalary    = "basic_salary"
	KeyAllowances     = "allowances"
	KeyVariableIncome = "variable_income"
	KeyCurrentSavings = "current_savings"
	KeyEPFRate        = "epf_rate"
	KeyMonth          = "month"
	KeyYear           = "year"
	KeyCurrency       = "currency"
)

// Encode flattens a draft into the sync payload. Line-item collections
// are serialized as JSON arrays of objects.
func Encode(d core.DraftRecord, at time.Time) map[string]string {
	return map[string]string{
		KeyTimestamp:      at.UTC().Format(time.RFC3339),
		KeyExpenses:       encodeItems(d.Expenses),
		KeyDeductions:     encodeItems(d.Deductions),
		KeyBasicSalary:    formatFloat(d.BasicSalary),
		KeyAllowances:     formatFloat(d.Allowances),
		KeyVariableIncome: formatFloat(d.VariableIncome),
		KeyCurrentSavings: formatFloat(d.CurrentSavings),
		KeyEPFRate:        strconv.Itoa(d.EPFRate),
		KeyMonth:          d.Period.Month,
		KeyYear:           strconv.Itoa(d.Period.Year),
		KeyCurrency:       string(d.Currency),
	}
}

// Decode rebuilds a draft from a payload. Every field is optional: a
// missing or malformed value falls back to the default template for
// the current period. Decode never fails on a partial payload.
func Decode(fields map[string]string, now time.Time) (core.DraftRecord, time.Time) {
	d := core.DefaultDraft(core.CurrentPeriod(now))

	if v, ok := fields[KeyMonth]; ok {
		if _, valid := core.MonthIndex(v); valid {
			d.Period.Month = v
		}
	}
	if v, ok := fields[KeyYear]; ok {
		if y, err := strconv.Atoi(v); err == nil && y >= core.MinYear && y <= core.MaxYear {
			d.Period.Year = y
		}
	}
	if v, ok := fields[KeyCurrency]; ok {
		if c, err := core.ParseCurrency(v); err == nil {
			d.Currency = c
		}
	}
	d.BasicSalary = floatOr(fields, KeyBasicSalary, d.BasicSalary)
	d.Allowances = floatOr(fields, KeyAllowances, d.Allowances)
	d.VariableIncome = floatOr(fields, KeyVariableIncome, d.VariableIncome)
	d.CurrentSavings = floatOr(fields, KeyCurrentSavings, d.CurrentSavings)
	if v, ok := fields[KeyEPFRate]; ok {
		if r, err := strconv.Atoi(v); err == nil && r >= core.MinEPFRate && r <= core.MaxEPFRate {
			d.EPFRate = r
		}
	}
	if v, ok := fields[KeyExpenses]; ok {
		if items, err := DecodeItems(v); err == nil {
			d.Expenses = items
		}
	}
	if v, ok := fields[KeyDeductions]; ok {
		if items, err := DecodeItems(v); err == nil {
			d.Deductions = items
		}
	}

	at := now
	if v, ok := fields[KeyTimestamp]; ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			at = ts
		}
	}
	return d, at
}

// DecodeItems parses a serialized array-of-objects line-item cell.
func DecodeItems(s string) ([]core.LineItem, error) {
	if s == "" {
		return nil, nil
	}
	var items []core.LineItem
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func encodeItems(items []core.LineItem) string {
	if items == nil {
		items = []core.LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// EncodeItems serializes a line-item collection as a JSON array cell.
func EncodeItems(items []core.LineItem) string {
	return encodeItems(items)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func floatOr(fields map[string]string, key string, fallback float64) float64 {
	v, ok := fields[key]
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

package core

import (
	"errors"
	"fmt"
	"time"
)

// Supported display currencies. MYR is the base currency every
// cross-currency conversion is routed through.
const (
	MYR Currency = "MYR"
	USD Currency = "USD"
	GBP Currency = "GBP"
	SGD Currency = "SGD"
	EUR Currency = "EUR"
	AUD Currency = "AUD"
	JPY Currency = "JPY"

	BaseCurrency = MYR
)

const (
	MinYear = 2020
	MaxYear = 2030

	MinEPFRate = 0
	MaxEPFRate = 20
)

type (
	Currency string

	// PeriodKey identifies one financial record: a calendar month name
	// plus a year. At most one persisted record exists per key.
	PeriodKey struct {
		Month string `json:"month"`
		Year  int    `json:"year"`
	}

	// LineItem is a single expense or deduction row. Categories need
	// not be unique; duplicates are summed independently.
	LineItem struct {
		Category string  `json:"category"`
		Amount   float64 `json:"amount"`
	}

	// DraftRecord is the in-memory working copy of one period's
	// financial inputs. Every monetary field is denominated in the
	// single Currency field.
	DraftRecord struct {
		Period         PeriodKey  `json:"period"`
		Currency       Currency   `json:"currency"`
		BasicSalary    float64    `json:"basic_salary"`
		Allowances     float64    `json:"allowances"`
		VariableIncome float64    `json:"variable_income"`
		CurrentSavings float64    `json:"current_savings"`
		EPFRate        int        `json:"epf_rate"`
		Expenses       []LineItem `json:"expenses"`
		Deductions     []LineItem `json:"deductions"`
	}

	// HistoryRecord is a persisted snapshot of a draft plus the
	// derived totals at save time. It has no live binding to the
	// draft it was copied from.
	HistoryRecord struct {
		Period         PeriodKey  `json:"period"`
		Currency       Currency   `json:"currency"`
		BasicSalary    float64    `json:"basic_salary"`
		Allowances     float64    `json:"allowances"`
		VariableIncome float64    `json:"variable_income"`
		CurrentSavings float64    `json:"current_savings"`
		EPFRate        int        `json:"epf_rate"`
		Expenses       []LineItem `json:"expenses"`
		Deductions     []LineItem `json:"deductions"`
		NetIncome      float64    `json:"net_income"`
		TotalExpenses  float64    `json:"total_expenses"`
		Balance        float64    `json:"balance"`
		EPFAmount      float64    `json:"epf_amount"`
		SavedAt        time.Time  `json:"saved_at"`
	}
)

var (
	ErrInvalidMonth    = errors.New("invalid month name")
	ErrInvalidYear     = errors.New("year out of range")
	ErrInvalidCurrency = errors.New("unsupported currency")
	ErrInvalidEPFRate  = errors.New("epf rate out of range")
)

// Currencies lists every supported currency in display order.
var Currencies = []Currency{MYR, USD, GBP, SGD, EUR, AUD, JPY}

var monthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthNames returns the twelve calendar month names in order.
func MonthNames() []string {
	out := make([]string, len(monthNames))
	copy(out, monthNames)
	return out
}

// MonthIndex returns the 1-based index of a month name, or false when
// the name is not one of the twelve calendar months.
func MonthIndex(name string) (int, bool) {
	for i, m := range monthNames {
		if m == name {
			return i + 1, true
		}
	}
	return 0, false
}

func (c Currency) Valid() bool {
	switch c {
	case MYR, USD, GBP, SGD, EUR, AUD, JPY:
		return true
	default:
		return false
	}
}

// ParseCurrency validates a currency code from user input.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
	}
	return c, nil
}

func (k PeriodKey) Validate() error {
	if _, ok := MonthIndex(k.Month); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidMonth, k.Month)
	}
	if k.Year < MinYear || k.Year > MaxYear {
		return fmt.Errorf("%w: %d (allowed %d-%d)", ErrInvalidYear, k.Year, MinYear, MaxYear)
	}
	return nil
}

// Label renders the key for display and prompts, e.g. "March 2026".
func (k PeriodKey) Label() string {
	return fmt.Sprintf("%s %d", k.Month, k.Year)
}

// CurrentPeriod returns the period key for the wall-clock month.
func CurrentPeriod(now time.Time) PeriodKey {
	return PeriodKey{Month: monthNames[int(now.Month())-1], Year: now.Year()}
}

func (d DraftRecord) Validate() error {
	if err := d.Period.Validate(); err != nil {
		return err
	}
	if !d.Currency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, d.Currency)
	}
	if d.EPFRate < MinEPFRate || d.EPFRate > MaxEPFRate {
		return fmt.Errorf("%w: %d (allowed %d-%d)", ErrInvalidEPFRate, d.EPFRate, MinEPFRate, MaxEPFRate)
	}
	return nil
}

// Clone returns a deep copy so callers can hand out drafts without
// sharing the line-item slices.
func (d DraftRecord) Clone() DraftRecord {
	out := d
	out.Expenses = append([]LineItem(nil), d.Expenses...)
	out.Deductions = append([]LineItem(nil), d.Deductions...)
	return out
}

// ScaleAmounts multiplies every monetary field by factor. EPFRate is a
// percentage and is left untouched.
func (d *DraftRecord) ScaleAmounts(factor float64) {
	d.BasicSalary *= factor
	d.Allowances *= factor
	d.VariableIncome *= factor
	d.CurrentSavings *= factor
	for i := range d.Expenses {
		d.Expenses[i].Amount *= factor
	}
	for i := range d.Deductions {
		d.Deductions[i].Amount *= factor
	}
}

// DefaultDraft returns the fixed template a never-before-seen period
// starts from, denominated in the base currency.
func DefaultDraft(period PeriodKey) DraftRecord {
	return DraftRecord{
		Period:         period,
		Currency:       BaseCurrency,
		BasicSalary:    6000,
		Allowances:     500,
		VariableIncome: 0,
		CurrentSavings: 10000,
		EPFRate:        11,
		Expenses: []LineItem{
			{Category: "Housing (Rent/Loan)", Amount: 1500},
			{Category: "Car Loan/Transport", Amount: 800},
			{Category: "Food & Groceries", Amount: 1000},
			{Category: "Utilities & Telco", Amount: 300},
			{Category: "PTPTN / Education Loan", Amount: 200},
			{Category: "Savings / Investments", Amount: 500},
		},
		Deductions: []LineItem{
			{Category: "SOCSO / PERKESO", Amount: 19.75},
			{Category: "EIS / SIP", Amount: 7.90},
			{Category: "PCB (Monthly Tax)", Amount: 300.00},
		},
	}
}

// Snapshot copies a draft plus its computed metrics into a
// HistoryRecord ready for persistence.
func Snapshot(d DraftRecord, m Metrics, at time.Time) HistoryRecord {
	c := d.Clone()
	return HistoryRecord{
		Period:         c.Period,
		Currency:       c.Currency,
		BasicSalary:    c.BasicSalary,
		Allowances:     c.Allowances,
		VariableIncome: c.VariableIncome,
		CurrentSavings: c.CurrentSavings,
		EPFRate:        c.EPFRate,
		Expenses:       c.Expenses,
		Deductions:     c.Deductions,
		NetIncome:      m.NetIncome,
		TotalExpenses:  m.TotalExpenses,
		Balance:        m.MonthlySurplus,
		EPFAmount:      m.EPFAmount,
		SavedAt:        at,
	}
}

// Draft converts a persisted record back into a working draft. The
// result is a disconnected copy.
func (r HistoryRecord) Draft() DraftRecord {
	return DraftRecord{
		Period:         r.Period,
		Currency:       r.Currency,
		BasicSalary:    r.BasicSalary,
		Allowances:     r.Allowances,
		VariableIncome: r.VariableIncome,
		CurrentSavings: r.CurrentSavings,
		EPFRate:        r.EPFRate,
		Expenses:       append([]LineItem(nil), r.Expenses...),
		Deductions:     append([]LineItem(nil), r.Deductions...),
	}
}

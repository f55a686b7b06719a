// Package core holds the domain model and the pure calculation layer:
// derived income metrics and the multi-year wealth projection. Nothing
// in this package performs I/O.
package core

// Metrics are the derived totals recomputed from a draft on every
// interaction. NetIncome and MonthlySurplus may be negative; a deficit
// is a meaningful state, not an error.
type Metrics struct {
	EPFAmount       float64 `json:"epf_amount"`
	TotalDeductions float64 `json:"total_deductions"`
	GrossIncome     float64 `json:"gross_income"`
	NetIncome       float64 `json:"net_income"`
	TotalExpenses   float64 `json:"total_expenses"`
	MonthlySurplus  float64 `json:"monthly_surplus"`
}

// SumAmounts totals a line-item collection. An empty or nil collection
// sums to zero.
func SumAmounts(items []LineItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Amount
	}
	return total
}

// Compute derives all metrics from a draft. EPF applies to basic
// salary plus allowances only; variable income is excluded from the
// statutory base.
func Compute(d DraftRecord) Metrics {
	epf := (d.BasicSalary + d.Allowances) * float64(d.EPFRate) / 100
	totalDeductions := epf + SumAmounts(d.Deductions)
	gross := d.BasicSalary + d.Allowances + d.VariableIncome
	net := gross - totalDeductions
	totalExpenses := SumAmounts(d.Expenses)
	return Metrics{
		EPFAmount:       epf,
		TotalDeductions: totalDeductions,
		GrossIncome:     gross,
		NetIncome:       net,
		TotalExpenses:   totalExpenses,
		MonthlySurplus:  net - totalExpenses,
	}
}

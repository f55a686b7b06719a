// Package advisor turns a period's financial summary into a narrative
// review using a generative language model.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"duit/internal/core"
)

// ErrDisabled is returned when no model backend is configured.
var ErrDisabled = errors.New("advisor is not configured")

// Summary is everything the model needs to review one period. Amounts
// are already in the summary's currency; the prompt names the code so
// the model never guesses the unit.
type Summary struct {
	Period     core.PeriodKey
	Currency   core.Currency
	Draft      core.DraftRecord
	Metrics    core.Metrics
	Projection []core.ProjectionPoint
}

// Reviewer produces a narrative review for a period summary.
type Reviewer interface {
	Review(ctx context.Context, s Summary) (string, error)
}

// ModelLister reports which model backends are available.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

const systemPrompt = `You are a pragmatic personal finance reviewer for a single-person household in Malaysia. Review the month's figures and respond with a short assessment: call out the savings rate, the biggest expense categories, any deduction anomalies, and one or two concrete next steps. Keep it under 250 words, plain text, no markdown headings.`

// BuildPrompt renders the user prompt from a summary. Output is
// deterministic so reviews are reproducible for a given draft.
func BuildPrompt(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Period: %s\n", s.Period.Label())
	fmt.Fprintf(&b, "Currency: %s (all amounts below are in this currency)\n\n", s.Currency)

	fmt.Fprintf(&b, "Income\n")
	fmt.Fprintf(&b, "- Basic salary: %.2f\n", s.Draft.BasicSalary)
	fmt.Fprintf(&b, "- Fixed allowances: %.2f\n", s.Draft.Allowances)
	fmt.Fprintf(&b, "- Variable income: %.2f\n", s.Draft.VariableIncome)
	fmt.Fprintf(&b, "- Current savings: %.2f\n\n", s.Draft.CurrentSavings)

	fmt.Fprintf(&b, "Statutory\n")
	fmt.Fprintf(&b, "- EPF rate: %d%% (contribution %.2f, on basic salary plus allowances only)\n", s.Draft.EPFRate, s.Metrics.EPFAmount)
	writeItems(&b, "Deductions", s.Draft.Deductions)
	writeItems(&b, "Expenses", s.Draft.Expenses)

	fmt.Fprintf(&b, "Derived\n")
	fmt.Fprintf(&b, "- Gross income: %.2f\n", s.Metrics.GrossIncome)
	fmt.Fprintf(&b, "- Total deductions: %.2f\n", s.Metrics.TotalDeductions)
	fmt.Fprintf(&b, "- Net income: %.2f\n", s.Metrics.NetIncome)
	fmt.Fprintf(&b, "- Total expenses: %.2f\n", s.Metrics.TotalExpenses)
	fmt.Fprintf(&b, "- Monthly surplus: %.2f\n", s.Metrics.MonthlySurplus)

	if len(s.Projection) > 0 {
		last := s.Projection[len(s.Projection)-1]
		fmt.Fprintf(&b, "- Projected wealth after %d months: %.2f nominal, %.2f in today's purchasing power\n",
			len(s.Projection), last.NominalWealth, last.RealPurchasingPower)
	}
	return b.String()
}

func writeItems(b *strings.Builder, title string, items []core.LineItem) {
	fmt.Fprintf(b, "%s\n", title)
	if len(items) == 0 {
		fmt.Fprintf(b, "- none\n")
	}
	sorted := make([]core.LineItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })
	for _, it := range sorted {
		fmt.Fprintf(b, "- %s: %.2f\n", it.Category, it.Amount)
	}
	b.WriteByte('\n')
}

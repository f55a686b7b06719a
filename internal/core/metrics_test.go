package core

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeScenario(t *testing.T) {
	// Reference scenario: 6000 basic, 500 allowances, 11% EPF,
	// statutory deductions 19.75 + 7.90 + 300.00, expenses 4300.
	d := DraftRecord{
		Period:      PeriodKey{Month: "March", Year: 2025},
		Currency:    MYR,
		BasicSalary: 6000,
		Allowances:  500,
		EPFRate:     11,
		Deductions: []LineItem{
			{Category: "SOCSO / PERKESO", Amount: 19.75},
			{Category: "EIS / SIP", Amount: 7.90},
			{Category: "PCB (Monthly Tax)", Amount: 300.00},
		},
		Expenses: []LineItem{
			{Category: "Housing", Amount: 2000},
			{Category: "Food", Amount: 2300},
		},
	}

	m := Compute(d)

	if !almostEqual(m.EPFAmount, 715.00) {
		t.Errorf("expected EPF amount 715.00, got %v", m.EPFAmount)
	}
	if !almostEqual(m.TotalDeductions, 1042.65) {
		t.Errorf("expected total deductions 1042.65, got %v", m.TotalDeductions)
	}
	if !almostEqual(m.NetIncome, 5457.35) {
		t.Errorf("expected net income 5457.35, got %v", m.NetIncome)
	}
	if !almostEqual(m.TotalExpenses, 4300) {
		t.Errorf("expected total expenses 4300, got %v", m.TotalExpenses)
	}
	if !almostEqual(m.MonthlySurplus, 1157.35) {
		t.Errorf("expected balance 1157.35, got %v", m.MonthlySurplus)
	}
}

func TestComputeEmptyCollections(t *testing.T) {
	d := DraftRecord{BasicSalary: 1000, EPFRate: 0}

	m := Compute(d)

	if m.TotalExpenses != 0 {
		t.Errorf("empty expenses should sum to 0, got %v", m.TotalExpenses)
	}
	if m.TotalDeductions != 0 {
		t.Errorf("empty deductions should sum to 0, got %v", m.TotalDeductions)
	}
	if m.NetIncome != 1000 {
		t.Errorf("expected net income 1000, got %v", m.NetIncome)
	}
}

func TestComputeNegativeNetIncome(t *testing.T) {
	// Deductions exceeding income must yield a negative net income,
	// not a clamped zero.
	d := DraftRecord{
		BasicSalary: 100,
		EPFRate:     11,
		Deductions:  []LineItem{{Category: "Loan garnishment", Amount: 500}},
	}

	m := Compute(d)

	if m.NetIncome >= 0 {
		t.Errorf("expected negative net income, got %v", m.NetIncome)
	}
	if !almostEqual(m.NetIncome, 100-11-500) {
		t.Errorf("expected net income -411, got %v", m.NetIncome)
	}
}

func TestComputeVariableIncomeExcludedFromEPF(t *testing.T) {
	d := DraftRecord{BasicSalary: 1000, Allowances: 200, VariableIncome: 5000, EPFRate: 10}

	m := Compute(d)

	if !almostEqual(m.EPFAmount, 120) {
		t.Errorf("EPF must apply to basic+allowances only, got %v", m.EPFAmount)
	}
	if !almostEqual(m.GrossIncome, 6200) {
		t.Errorf("expected gross income 6200, got %v", m.GrossIncome)
	}
}

func TestSumAmountsDuplicateCategories(t *testing.T) {
	items := []LineItem{
		{Category: "Food", Amount: 100},
		{Category: "Food", Amount: 50},
		{Category: "", Amount: -25},
	}

	// Duplicate categories are summed independently and negative or
	// zero-category rows still count.
	if got := SumAmounts(items); !almostEqual(got, 125) {
		t.Errorf("expected 125, got %v", got)
	}
	if got := SumAmounts(nil); got != 0 {
		t.Errorf("nil collection should sum to 0, got %v", got)
	}
}

package core

import (
	"math"
	"testing"
)

func TestProjectZeroInflationEqualsNominal(t *testing.T) {
	points, err := Project(10000, 500, 12, []float64{0.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 12 {
		t.Fatalf("expected 12 points, got %d", len(points))
	}
	for _, p := range points {
		if p.NominalWealth != p.RealPurchasingPower {
			t.Errorf("month %d: with 0%% inflation real %v must equal nominal %v",
				p.MonthIndex, p.RealPurchasingPower, p.NominalWealth)
		}
	}
	if points[0].NominalWealth != 10500 {
		t.Errorf("expected first point 10500, got %v", points[0].NominalWealth)
	}
	if points[11].NominalWealth != 16000 {
		t.Errorf("expected last point 16000, got %v", points[11].NominalWealth)
	}
}

func TestProjectShortRateListFallsBackToDefault(t *testing.T) {
	// 5-year horizon with a single provided rate: years 1-4 use the
	// 3% default and must not error.
	points, err := Project(0, 100, 60, []float64{0.05})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deflator := 1.0
	for m := 0; m < 60; m++ {
		rate := DefaultInflationRate
		if m < 12 {
			rate = 0.05
		}
		deflator *= 1 + rate/12
	}
	want := float64(60) * 100 / deflator
	got := points[59].RealPurchasingPower
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected real purchasing power %v, got %v", want, got)
	}
}

func TestProjectNilRatesUsesDefault(t *testing.T) {
	points, err := Project(1000, 0, 12, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 1000 / math.Pow(1+DefaultInflationRate/12, 12)
	if math.Abs(points[11].RealPurchasingPower-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, points[11].RealPurchasingPower)
	}
}

func TestProjectNegativeSurplus(t *testing.T) {
	points, err := Project(1000, -200, 12, []float64{0.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if points[11].NominalWealth != 1000-12*200 {
		t.Errorf("deficit must draw wealth down, got %v", points[11].NominalWealth)
	}
}

func TestProjectRejectsUnknownHorizon(t *testing.T) {
	for _, h := range []int{0, -12, 24, 13, 121} {
		if _, err := Project(0, 0, h, nil); err == nil {
			t.Errorf("horizon %d should be rejected", h)
		}
	}
	for _, h := range ProjectionHorizons {
		if _, err := Project(0, 0, h, nil); err != nil {
			t.Errorf("horizon %d should be accepted: %v", h, err)
		}
	}
}

func TestProjectDeterministic(t *testing.T) {
	a, err := Project(2500, 75, 36, []float64{0.02, 0.04})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Project(2500, 75, 36, []float64{0.02, 0.04})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("projection must be deterministic, point %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

package core

import (
	"errors"
	"fmt"
)

// DefaultInflationRate fills in for any year the caller did not
// provide an explicit rate for.
const DefaultInflationRate = 0.03

// ProjectionHorizons are the selectable horizons in months.
var ProjectionHorizons = []int{12, 36, 60, 120}

var ErrInvalidHorizon = errors.New("invalid projection horizon")

// ProjectionPoint is one month of the wealth trajectory.
// NominalWealth ignores inflation; RealPurchasingPower deflates it by
// the cumulative inflation factor.
type ProjectionPoint struct {
	MonthIndex          int     `json:"month_index"`
	NominalWealth       float64 `json:"nominal_wealth"`
	RealPurchasingPower float64 `json:"real_purchasing_power"`
}

// ValidHorizon reports whether h is one of the selectable horizons.
func ValidHorizon(h int) bool {
	for _, v := range ProjectionHorizons {
		if v == h {
			return true
		}
	}
	return false
}

// Project computes the wealth trajectory over horizonMonths, adding
// monthlySurplus once per month on top of initialSavings and deflating
// by one-twelfth of the applicable calendar-year inflation rate.
// yearlyInflation is indexed by year offset from the start; years past
// the end of the list use DefaultInflationRate. The computation is
// stateless and recomputed fresh on every call.
func Project(initialSavings, monthlySurplus float64, horizonMonths int, yearlyInflation []float64) ([]ProjectionPoint, error) {
	if !ValidHorizon(horizonMonths) {
		return nil, fmt.Errorf("%w: %d (allowed %v)", ErrInvalidHorizon, horizonMonths, ProjectionHorizons)
	}

	points := make([]ProjectionPoint, 0, horizonMonths)
	nominal := initialSavings
	deflator := 1.0
	for m := 0; m < horizonMonths; m++ {
		rate := DefaultInflationRate
		if yearIdx := m / 12; yearIdx < len(yearlyInflation) {
			rate = yearlyInflation[yearIdx]
		}
		nominal += monthlySurplus
		deflator *= 1 + rate/12
		points = append(points, ProjectionPoint{
			MonthIndex:          m,
			NominalWealth:       nominal,
			RealPurchasingPower: nominal / deflator,
		})
	}
	return points, nil
}

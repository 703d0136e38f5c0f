// Package money holds the decimal conventions shared by proration, duty and levy code.
package money

import "github.com/shopspring/decimal"

// Places is the number of decimal places persisted and reported for monetary amounts.
const Places = 2

// ratioPrecision bounds intermediate division so identical inputs give identical outputs
// regardless of decimal.DivisionPrecision.
const ratioPrecision = 18

var hundred = decimal.NewFromInt(100)

// Round rounds half away from zero to Places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Ratio returns part/whole, or zero when whole is zero.
func Ratio(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.DivRound(whole, ratioPrecision)
}

// Percent returns base * rate/100.
func Percent(base, rate decimal.Decimal) decimal.Decimal {
	return base.Mul(rate).DivRound(hundred, ratioPrecision)
}

// Sum adds values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// WithinTolerance reports |a-b| <= tol.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

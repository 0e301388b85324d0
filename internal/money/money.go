// Package money performs currency arithmetic on float64 amounts through
// decimal so that repeated credits and debits do not accumulate binary
// rounding error. All results are rounded to two decimal places.
package money

import "github.com/shopspring/decimal"

const places = 2

// Round rounds v half away from zero to two decimal places.
func Round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Add returns a+b rounded.
func Add(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(places).InexactFloat64()
}

// Sub returns a-b rounded.
func Sub(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(places).InexactFloat64()
}

// Mul returns a*b rounded.
func Mul(a, b float64) float64 {
	return decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Round(places).InexactFloat64()
}

// Sum returns the rounded sum of vs.
func Sum(vs ...float64) float64 {
	total := decimal.Zero
	for _, v := range vs {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.Round(places).InexactFloat64()
}

// LessThan reports whether a < b at cent precision.
func LessThan(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(places).LessThan(decimal.NewFromFloat(b).Round(places))
}

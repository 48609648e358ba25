package model

import "github.com/shopspring/decimal"

// Decimal places used when comparing and storing values.
const (
	MoneyPlaces int32 = 2
	RatioPlaces int32 = 4
)

// Round rounds v to the given number of decimal places.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// RoundPtr rounds a nullable value, preserving nil.
func RoundPtr(v *float64, places int32) *float64 {
	if v == nil {
		return nil
	}
	r := Round(*v, places)
	return &r
}

// ValuesEqual compares two nullable values at a fixed number of decimal places.
// Two nils are equal; a nil and a number are not.
func ValuesEqual(a, b *float64, places int32) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return decimal.NewFromFloat(*a).Round(places).Equal(decimal.NewFromFloat(*b).Round(places))
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

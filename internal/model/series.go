package model

import (
	"fmt"
	"strings"
)

// seriesKeySeparator joins category code and business unit in artifacts.
const seriesKeySeparator = "::"

// TrendClass labels a P&L category with the shape of its history.
// It selects exactly one forecasting strategy kind.
type TrendClass string

// TrendStatic is assigned to categories without an explicit trend.
const TrendStatic TrendClass = "static"

// NormalizeTrend lower-cases and trims a trend label.
func NormalizeTrend(s string) TrendClass {
	return TrendClass(strings.ToLower(strings.TrimSpace(s)))
}

// SeriesKey identifies one forecastable time series.
type SeriesKey struct {
	CategoryCode string
	BusinessUnit string
}

func (k SeriesKey) String() string {
	return k.CategoryCode + seriesKeySeparator + k.BusinessUnit
}

// ParseSeriesKey is the inverse of SeriesKey.String.
func ParseSeriesKey(s string) (SeriesKey, error) {
	code, bu, ok := strings.Cut(s, seriesKeySeparator)
	if !ok || code == "" || bu == "" {
		return SeriesKey{}, fmt.Errorf("invalid series key %q", s)
	}
	return SeriesKey{CategoryCode: code, BusinessUnit: bu}, nil
}

// HistoricalPoint is one observed month of a series. A nil Value is absent,
// which is distinct from zero.
type HistoricalPoint struct {
	Value *float64
	Month Month
}

// PresentValues returns the non-absent values of points in order.
func PresentValues(points []HistoricalPoint) []float64 {
	values := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Value != nil {
			values = append(values, *p.Value)
		}
	}
	return values
}

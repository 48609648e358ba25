// Package trend groups historical P&L entries into per-trend, per-series windows.
package trend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// ErrInvalidLookback is returned when the lookback window is not positive.
var ErrInvalidLookback = errors.New("lookback must be positive")

// EntryReader reads actual entries in the half-open window (after, through].
type EntryReader interface {
	GetEntriesInRange(ctx context.Context, after, through model.Month) ([]model.Entry, error)
}

// Window is the aggregated view of one lookback window.
type Window struct {
	Series    map[model.TrendClass]map[model.SeriesKey][]model.HistoricalPoint
	Months    []model.Month
	Reference model.Month
}

// Classes returns the trend classes present in the window, sorted.
func (w *Window) Classes() []model.TrendClass {
	classes := make([]model.TrendClass, 0, len(w.Series))
	for class := range w.Series {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// SeriesCount returns the total number of series across classes.
func (w *Window) SeriesCount() int {
	n := 0
	for _, series := range w.Series {
		n += len(series)
	}
	return n
}

// Aggregator builds Windows from stored entries.
type Aggregator struct {
	reader EntryReader
}

// NewAggregator creates an Aggregator reading from reader.
func NewAggregator(reader EntryReader) *Aggregator {
	return &Aggregator{reader: reader}
}

// Aggregate groups the entries with reference-lookback < month <= reference by
// trend class and series key. Every series is aligned to the months observed in
// the window; a missing or NULL value becomes an absent point in place.
func (a *Aggregator) Aggregate(ctx context.Context, reference model.Month, lookback int) (*Window, error) {
	if lookback <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLookback, lookback)
	}

	entries, err := a.reader.GetEntriesInRange(ctx, reference.AddMonths(-lookback), reference)
	if err != nil {
		return nil, fmt.Errorf("failed to read entries for window ending %s: %w", reference, err)
	}

	window := &Window{
		Reference: reference,
		Series:    make(map[model.TrendClass]map[model.SeriesKey][]model.HistoricalPoint),
	}

	type cell struct {
		key   model.SeriesKey
		month model.Month
	}
	values := make(map[cell]*float64, len(entries))
	classOf := make(map[model.SeriesKey]model.TrendClass)
	seen := make(map[model.Month]struct{})

	for _, e := range entries {
		if _, ok := seen[e.Month]; !ok {
			seen[e.Month] = struct{}{}
			window.Months = append(window.Months, e.Month)
		}
		class := e.Trend
		if class == "" {
			class = model.TrendStatic
		}
		classOf[e.Key()] = class
		values[cell{key: e.Key(), month: e.Month}] = e.Value
	}
	model.SortMonths(window.Months)

	for key, class := range classOf {
		points := make([]model.HistoricalPoint, len(window.Months))
		for i, m := range window.Months {
			points[i] = model.HistoricalPoint{Month: m, Value: values[cell{key: key, month: m}]}
		}
		if window.Series[class] == nil {
			window.Series[class] = make(map[model.SeriesKey][]model.HistoricalPoint)
		}
		window.Series[class][key] = points
	}

	slog.Debug("Aggregated trend window",
		"reference", reference.String(),
		"lookback", lookback,
		"months", len(window.Months),
		"classes", len(window.Series),
		"series", window.SeriesCount())

	return window, nil
}

// Recent returns the present values among the last n points of a series.
func Recent(points []model.HistoricalPoint, n int) []float64 {
	if n < len(points) {
		points = points[len(points)-n:]
	}
	return model.PresentValues(points)
}

package pipeline

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/Veraticus/forecast-flow/internal/trend"
)

// predict restores the saved strategy for class and forecasts every series
// of the class in the forecasting window. A series that cannot be predicted
// is omitted without affecting the others.
func (p *Pipeline) predict(class model.TrendClass, series map[model.SeriesKey][]model.HistoricalPoint, months []model.Month) ([]model.ForecastRecord, []OmittedSeries, error) {
	strategy, err := p.artifacts.Load(class, p.registry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to restore %s: %w", class, err)
	}
	contextLength := p.config.ContextLengths.For(strategy.Kind())

	var (
		forecasts []model.ForecastRecord
		omitted   []OmittedSeries
	)
	for _, key := range seriesKeys(series) {
		recent := trend.Recent(series[key], contextLength)

		values, err := strategy.Predict(key, len(months), recent)
		if err == nil {
			err = checkPrediction(values, len(months))
		}
		if err != nil {
			slog.Warn("Series omitted from forecast",
				"trend", string(class),
				"series", key.String(),
				"context", len(recent),
				"error", err)
			omitted = append(omitted, OmittedSeries{Class: class, Key: key, Err: err})
			continue
		}

		for i, month := range months {
			forecasts = append(forecasts, model.ForecastRecord{
				Value:        model.Float(values[i]),
				Month:        month,
				CategoryCode: key.CategoryCode,
				BusinessUnit: key.BusinessUnit,
			})
		}
	}

	slog.Debug("Forecast trend class",
		"trend", string(class),
		"series", len(series)-len(omitted),
		"omitted", len(omitted))

	return forecasts, omitted, nil
}

func checkPrediction(values []float64, steps int) error {
	if len(values) != steps {
		return fmt.Errorf("strategy returned %d values for %d months", len(values), steps)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite forecast at step %d", i+1)
		}
	}
	return nil
}

func seriesKeys(series map[model.SeriesKey][]model.HistoricalPoint) []model.SeriesKey {
	keys := make([]model.SeriesKey, 0, len(series))
	for key := range series {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

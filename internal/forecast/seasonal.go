package forecast

import (
	"encoding/json"
	"fmt"

	"github.com/Veraticus/forecast-flow/internal/model"
	"gonum.org/v1/gonum/stat"
)

const defaultPeriod = 12

// seasonalParams hold the season length and the mean change between the
// same month of consecutive seasons.
type seasonalParams struct {
	Period int     `json:"period"`
	Drift  float64 `json:"drift"`
}

// seasonalStrategy is a seasonal naive forecast with drift: each forecast
// month repeats the same month of the last season plus the learned
// season-over-season change.
type seasonalStrategy struct {
	fitted[seasonalParams]
}

func (s *seasonalStrategy) Kind() Kind { return KindSeasonal }

func (s *seasonalStrategy) period() int {
	return s.Hyper.Int("period", defaultPeriod)
}

func (s *seasonalStrategy) MinContext() int { return s.period() }

func (s *seasonalStrategy) Series() []model.SeriesKey { return s.series() }

func (s *seasonalStrategy) Train(series map[model.SeriesKey][]model.HistoricalPoint, hp Hyperparameters) (TrainReport, error) {
	period := hp.Int("period", defaultPeriod)
	return s.train(series, hp, func(values []float64) (seasonalParams, error) {
		return fitSeasonal(values, period)
	})
}

func fitSeasonal(values []float64, period int) (seasonalParams, error) {
	if len(values) < period {
		return seasonalParams{}, fmt.Errorf("need at least one season of %d values, got %d", period, len(values))
	}

	p := seasonalParams{Period: period}
	if len(values) > period {
		diffs := make([]float64, 0, len(values)-period)
		for t := period; t < len(values); t++ {
			diffs = append(diffs, values[t]-values[t-period])
		}
		p.Drift = stat.Mean(diffs, nil)
	}
	return p, nil
}

func (s *seasonalStrategy) Predict(key model.SeriesKey, steps int, recent []float64) ([]float64, error) {
	p, err := s.lookup(key, steps, recent, s.MinContext())
	if err != nil {
		return nil, err
	}

	season := recent[len(recent)-p.Period:]
	out := make([]float64, steps)
	for h := range out {
		cycles := h/p.Period + 1
		out[h] = season[h%p.Period] + float64(cycles)*p.Drift
	}
	return checkFinite(key, out)
}

func (s *seasonalStrategy) MarshalState() (json.RawMessage, error) { return s.marshal() }

func (s *seasonalStrategy) UnmarshalState(state json.RawMessage) error { return s.unmarshal(state) }

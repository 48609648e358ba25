package forecast

import (
	"encoding/json"
	"errors"

	"github.com/Veraticus/forecast-flow/internal/model"
)

var errEmptySeries = errors.New("series has no present values")

// naiveStrategy repeats the last observed value.
type naiveStrategy struct {
	fitted[float64]
}

func (s *naiveStrategy) Kind() Kind { return KindNaive }

func (s *naiveStrategy) MinContext() int { return 1 }

func (s *naiveStrategy) Series() []model.SeriesKey { return s.series() }

func (s *naiveStrategy) Train(series map[model.SeriesKey][]model.HistoricalPoint, hp Hyperparameters) (TrainReport, error) {
	return s.train(series, hp, func(values []float64) (float64, error) {
		if len(values) == 0 {
			return 0, errEmptySeries
		}
		return values[len(values)-1], nil
	})
}

func (s *naiveStrategy) Predict(key model.SeriesKey, steps int, recent []float64) ([]float64, error) {
	if _, err := s.lookup(key, steps, recent, s.MinContext()); err != nil {
		return nil, err
	}
	last := recent[len(recent)-1]
	out := make([]float64, steps)
	for i := range out {
		out[i] = last
	}
	return checkFinite(key, out)
}

func (s *naiveStrategy) MarshalState() (json.RawMessage, error) { return s.marshal() }

func (s *naiveStrategy) UnmarshalState(state json.RawMessage) error { return s.unmarshal(state) }

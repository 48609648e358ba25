package forecast

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// holtParams are the smoothing weights chosen for one series.
type holtParams struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// holtStrategy is Holt's linear trend exponential smoothing. The weights are
// grid-searched on the training values; level and trend are re-estimated
// from the recent context at prediction time.
type holtStrategy struct {
	fitted[holtParams]
}

func (s *holtStrategy) Kind() Kind { return KindStateSpace }

func (s *holtStrategy) MinContext() int { return 2 }

func (s *holtStrategy) Series() []model.SeriesKey { return s.series() }

func (s *holtStrategy) Train(series map[model.SeriesKey][]model.HistoricalPoint, hp Hyperparameters) (TrainReport, error) {
	return s.train(series, hp, fitHolt)
}

func fitHolt(values []float64) (holtParams, error) {
	if len(values) < 2 {
		return holtParams{}, fmt.Errorf("need at least 2 values, got %d", len(values))
	}

	best := holtParams{Alpha: 0.5, Beta: 0.1}
	bestSSE := math.Inf(1)
	for a := 1; a <= 9; a++ {
		for b := 1; b <= 9; b++ {
			p := holtParams{Alpha: float64(a) / 10, Beta: float64(b) / 10}
			if sse := holtSSE(values, p); sse < bestSSE {
				best, bestSSE = p, sse
			}
		}
	}
	return best, nil
}

// holtSSE is the sum of squared one-step-ahead errors.
func holtSSE(values []float64, p holtParams) float64 {
	level, trend := values[0], values[1]-values[0]
	sse := 0.0
	for t := 1; t < len(values); t++ {
		forecast := level + trend
		if t > 1 {
			sse += (values[t] - forecast) * (values[t] - forecast)
		}
		prev := level
		level = p.Alpha*values[t] + (1-p.Alpha)*forecast
		trend = p.Beta*(level-prev) + (1-p.Beta)*trend
	}
	return sse
}

func (s *holtStrategy) Predict(key model.SeriesKey, steps int, recent []float64) ([]float64, error) {
	p, err := s.lookup(key, steps, recent, s.MinContext())
	if err != nil {
		return nil, err
	}

	level, trend := recent[0], recent[1]-recent[0]
	for t := 1; t < len(recent); t++ {
		prev := level
		level = p.Alpha*recent[t] + (1-p.Alpha)*(level+trend)
		trend = p.Beta*(level-prev) + (1-p.Beta)*trend
	}

	out := make([]float64, steps)
	for h := range out {
		out[h] = level + float64(h+1)*trend
	}
	return checkFinite(key, out)
}

func (s *holtStrategy) MarshalState() (json.RawMessage, error) { return s.marshal() }

func (s *holtStrategy) UnmarshalState(state json.RawMessage) error { return s.unmarshal(state) }

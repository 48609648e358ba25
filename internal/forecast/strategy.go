// Package forecast defines the forecasting strategy contract, the closed
// registry of strategy kinds and the per-trend artifact store.
package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// Strategy errors.
var (
	ErrTrainingFailed      = errors.New("training failed")
	ErrUnknownSeries       = errors.New("unknown series")
	ErrInsufficientContext = errors.New("insufficient context")
	ErrArtifactIO          = errors.New("artifact I/O failed")
	ErrCorruptArtifact     = errors.New("corrupt artifact")
)

// Kind names a forecasting strategy implementation.
type Kind string

// Strategy kinds.
const (
	KindSeasonal   Kind = "seasonal"
	KindStateSpace Kind = "state_space"
	KindSequenceA  Kind = "sequence_a"
	KindSequenceB  Kind = "sequence_b"
	KindNaive      Kind = "naive"
)

// Hyperparameters are numeric training options for a strategy.
type Hyperparameters map[string]float64

// Int returns the named parameter as an int, or def when unset or not positive.
func (h Hyperparameters) Int(name string, def int) int {
	if v, ok := h[name]; ok && v > 0 {
		return int(v)
	}
	return def
}

// Float returns the named parameter, or def when unset or negative.
func (h Hyperparameters) Float(name string, def float64) float64 {
	if v, ok := h[name]; ok && v >= 0 {
		return v
	}
	return def
}

func (h Hyperparameters) clone() Hyperparameters {
	out := make(Hyperparameters, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// TrainReport lists which series were fitted and why the others were not.
type TrainReport struct {
	Failed  map[model.SeriesKey]error
	Trained []model.SeriesKey
}

// Strategy is one forecasting model kind holding a sub-model per series.
//
// Train fits every series independently; one series failing never aborts the
// others, and the call fails with ErrTrainingFailed only when nothing could be
// fitted. Predict returns exactly steps values or fails with ErrUnknownSeries or
// ErrInsufficientContext; short context is never padded.
type Strategy interface {
	Kind() Kind
	Train(series map[model.SeriesKey][]model.HistoricalPoint, hp Hyperparameters) (TrainReport, error)
	Predict(key model.SeriesKey, steps int, recent []float64) ([]float64, error)
	Series() []model.SeriesKey
	MinContext() int
	MarshalState() (json.RawMessage, error)
	UnmarshalState(state json.RawMessage) error
}

// fitted holds per-series parameters keyed by the series key's string form.
type fitted[P any] struct {
	Params map[string]P    `json:"params"`
	Hyper  Hyperparameters `json:"hyperparameters,omitempty"`
}

func (f *fitted[P]) train(series map[model.SeriesKey][]model.HistoricalPoint, hp Hyperparameters, fit func([]float64) (P, error)) (TrainReport, error) {
	f.Hyper = hp.clone()
	f.Params = make(map[string]P, len(series))
	report := TrainReport{Failed: make(map[model.SeriesKey]error)}

	for _, key := range sortedKeys(series) {
		params, err := fit(model.PresentValues(series[key]))
		if err != nil {
			report.Failed[key] = err
			continue
		}
		f.Params[key.String()] = params
		report.Trained = append(report.Trained, key)
	}

	if len(report.Trained) == 0 {
		return report, fmt.Errorf("%w: none of %d series could be fitted", ErrTrainingFailed, len(series))
	}
	return report, nil
}

// lookup returns the parameters for key after checking the context length.
func (f *fitted[P]) lookup(key model.SeriesKey, steps int, recent []float64, minContext int) (P, error) {
	var zero P
	params, ok := f.Params[key.String()]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnknownSeries, key)
	}
	if steps <= 0 {
		return zero, fmt.Errorf("steps must be positive, got %d", steps)
	}
	if len(recent) < minContext {
		return zero, fmt.Errorf("%w: %s has %d points, needs %d", ErrInsufficientContext, key, len(recent), minContext)
	}
	return params, nil
}

func (f *fitted[P]) series() []model.SeriesKey {
	keys := make([]model.SeriesKey, 0, len(f.Params))
	for raw := range f.Params {
		key, err := model.ParseSeriesKey(raw)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func (f *fitted[P]) marshal() (json.RawMessage, error) {
	return json.Marshal(f)
}

func (f *fitted[P]) unmarshal(state json.RawMessage) error {
	var decoded fitted[P]
	if err := json.Unmarshal(state, &decoded); err != nil {
		return err
	}
	if decoded.Params == nil {
		return errors.New("state has no fitted series")
	}
	for raw := range decoded.Params {
		if _, err := model.ParseSeriesKey(raw); err != nil {
			return err
		}
	}
	*f = decoded
	return nil
}

func sortedKeys(series map[model.SeriesKey][]model.HistoricalPoint) []model.SeriesKey {
	keys := make([]model.SeriesKey, 0, len(series))
	for key := range series {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// checkFinite rejects forecasts containing NaN or infinities.
func checkFinite(key model.SeriesKey, values []float64) ([]float64, error) {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite forecast for %s at step %d", key, i+1)
		}
	}
	return values, nil
}

// scaleOf returns the mean absolute value of values, or 1 when it is zero.
func scaleOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += math.Abs(v)
	}
	if len(values) == 0 || sum == 0 {
		return 1
	}
	return sum / float64(len(values))
}

package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/Veraticus/forecast-flow/internal/model"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultLags      = 3
	defaultInputSize = 12
	defaultRidge     = 1.0
	defaultHorizons  = 3
)

// ridgeParams are the fitted coefficients for one series. Coef holds one
// vector per horizon, intercept first; values are divided by Scale before
// fitting and multiplied back after prediction.
type ridgeParams struct {
	Coef  [][]float64 `json:"coef"`
	Scale float64     `json:"scale"`
	Lags  int         `json:"lags"`
}

func (p ridgeParams) apply(h int, window []float64) float64 {
	coef := p.Coef[h]
	y := coef[0]
	for i, x := range window {
		y += coef[i+1] * x
	}
	return y
}

// sequenceHyper reads the options shared by both sequence kinds. Epochs is
// accepted for compatibility with iterative trainers and only recorded.
func sequenceHyper(h Hyperparameters) (lags, inputSize int, ridge float64) {
	return h.Int("lags", defaultLags), h.Int("input_size", defaultInputSize), h.Float("ridge", defaultRidge)
}

func sequenceMinContext(h Hyperparameters) int {
	lags, inputSize, _ := sequenceHyper(h)
	if lags > inputSize {
		return lags
	}
	return inputSize
}

// fitRidge fits one coefficient vector per horizon 1..horizons by ridge
// regression of values[t+h-1] on values[t-lags:t]. The intercept is not
// penalized.
func fitRidge(values []float64, lags, horizons int, lambda float64) (ridgeParams, error) {
	scale := scaleOf(values)
	scaled := make([]float64, len(values))
	for i, v := range values {
		scaled[i] = v / scale
	}

	p := ridgeParams{Scale: scale, Lags: lags}
	for h := 1; h <= horizons; h++ {
		samples := len(scaled) - lags - h + 1
		if samples < 2 {
			return ridgeParams{}, fmt.Errorf("need at least %d values for %d lags at horizon %d, got %d",
				lags+h+1, lags, h, len(values))
		}

		x := mat.NewDense(samples, lags+1, nil)
		y := mat.NewVecDense(samples, nil)
		for row := 0; row < samples; row++ {
			t := row + lags
			x.Set(row, 0, 1)
			for j := 0; j < lags; j++ {
				x.Set(row, j+1, scaled[t-lags+j])
			}
			y.SetVec(row, scaled[t+h-1])
		}

		coef, err := solveRidge(x, y, lambda)
		if err != nil {
			return ridgeParams{}, fmt.Errorf("horizon %d: %w", h, err)
		}
		p.Coef = append(p.Coef, coef)
	}
	return p, nil
}

func solveRidge(x *mat.Dense, y *mat.VecDense, lambda float64) ([]float64, error) {
	_, cols := x.Dims()

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for i := 1; i < cols; i++ {
		xtx.Set(i, i, xtx.At(i, i)+lambda)
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 0) {
			return nil, fmt.Errorf("ridge system is singular: %w", err)
		}
	}
	return mat.Col(nil, 0, &beta), nil
}

func lastN(values []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, values[len(values)-n:])
	return out
}

// autoregressiveStrategy is a one-step ridge autoregression applied
// recursively across the horizon.
type autoregressiveStrategy struct {
	fitted[ridgeParams]
}

func (s *autoregressiveStrategy) Kind() Kind { return KindSequenceA }

func (s *autoregressiveStrategy) MinContext() int { return sequenceMinContext(s.Hyper) }

func (s *autoregressiveStrategy) Series() []model.SeriesKey { return s.series() }

func (s *autoregressiveStrategy) Train(series map[model.SeriesKey][]model.HistoricalPoint, hp Hyperparameters) (TrainReport, error) {
	lags, _, ridge := sequenceHyper(hp)
	return s.train(series, hp, func(values []float64) (ridgeParams, error) {
		return fitRidge(values, lags, 1, ridge)
	})
}

func (s *autoregressiveStrategy) Predict(key model.SeriesKey, steps int, recent []float64) ([]float64, error) {
	p, err := s.lookup(key, steps, recent, s.MinContext())
	if err != nil {
		return nil, err
	}

	window := lastN(recent, p.Lags)
	for i := range window {
		window[i] /= p.Scale
	}

	out := make([]float64, steps)
	for h := range out {
		next := p.apply(0, window)
		out[h] = next * p.Scale
		window = append(window[1:], next)
	}
	return checkFinite(key, out)
}

func (s *autoregressiveStrategy) MarshalState() (json.RawMessage, error) { return s.marshal() }

func (s *autoregressiveStrategy) UnmarshalState(state json.RawMessage) error {
	if err := s.unmarshal(state); err != nil {
		return err
	}
	return validateRidge(s.Params, 1)
}

// directStrategy fits a separate ridge regression per horizon step. Horizons
// beyond the fitted ones are reached by feeding predictions back in.
type directStrategy struct {
	fitted[ridgeParams]
}

func (s *directStrategy) Kind() Kind { return KindSequenceB }

func (s *directStrategy) MinContext() int { return sequenceMinContext(s.Hyper) }

func (s *directStrategy) Series() []model.SeriesKey { return s.series() }

func (s *directStrategy) Train(series map[model.SeriesKey][]model.HistoricalPoint, hp Hyperparameters) (TrainReport, error) {
	lags, _, ridge := sequenceHyper(hp)
	horizons := hp.Int("horizons", defaultHorizons)
	return s.train(series, hp, func(values []float64) (ridgeParams, error) {
		return fitRidge(values, lags, horizons, ridge)
	})
}

func (s *directStrategy) Predict(key model.SeriesKey, steps int, recent []float64) ([]float64, error) {
	p, err := s.lookup(key, steps, recent, s.MinContext())
	if err != nil {
		return nil, err
	}

	window := lastN(recent, p.Lags)
	for i := range window {
		window[i] /= p.Scale
	}

	out := make([]float64, 0, steps)
	for len(out) < steps {
		block := make([]float64, 0, len(p.Coef))
		for h := range p.Coef {
			if len(out)+len(block) == steps {
				break
			}
			block = append(block, p.apply(h, window))
		}
		for _, v := range block {
			out = append(out, v*p.Scale)
		}
		window = lastN(append(window, block...), p.Lags)
	}
	return checkFinite(key, out)
}

func (s *directStrategy) MarshalState() (json.RawMessage, error) { return s.marshal() }

func (s *directStrategy) UnmarshalState(state json.RawMessage) error {
	if err := s.unmarshal(state); err != nil {
		return err
	}
	return validateRidge(s.Params, 0)
}

// validateRidge rejects coefficient sets that cannot be applied. exactHorizons
// of 0 accepts any positive number of horizons.
func validateRidge(params map[string]ridgeParams, exactHorizons int) error {
	for key, p := range params {
		if p.Lags <= 0 || p.Scale == 0 || len(p.Coef) == 0 {
			return fmt.Errorf("series %s: incomplete coefficients", key)
		}
		if exactHorizons > 0 && len(p.Coef) != exactHorizons {
			return fmt.Errorf("series %s: expected %d horizons, got %d", key, exactHorizons, len(p.Coef))
		}
		for _, coef := range p.Coef {
			if len(coef) != p.Lags+1 {
				return fmt.Errorf("series %s: expected %d coefficients, got %d", key, p.Lags+1, len(coef))
			}
		}
	}
	return nil
}

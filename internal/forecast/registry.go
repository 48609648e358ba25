package forecast

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/Veraticus/forecast-flow/internal/model"
)

// constructors is the closed set of strategy kinds.
var constructors = map[Kind]func() Strategy{
	KindSeasonal:   func() Strategy { return &seasonalStrategy{} },
	KindStateSpace: func() Strategy { return &holtStrategy{} },
	KindSequenceA:  func() Strategy { return &autoregressiveStrategy{} },
	KindSequenceB:  func() Strategy { return &directStrategy{} },
	KindNaive:      func() Strategy { return &naiveStrategy{} },
}

// Kinds returns every known strategy kind, sorted.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(constructors))
	for kind := range constructors {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Registry maps trend classes to strategy kinds and builds fresh strategies.
type Registry struct {
	trends map[model.TrendClass]Kind
}

// NewRegistry builds a registry from a trend class to kind mapping. An unknown
// kind is a configuration error.
func NewRegistry(mapping map[string]string) (*Registry, error) {
	if len(mapping) == 0 {
		return nil, fmt.Errorf("%w: empty trend mapping", common.ErrInvalidConfig)
	}

	trends := make(map[model.TrendClass]Kind, len(mapping))
	for trend, rawKind := range mapping {
		if err := checkTrendLabel(model.NormalizeTrend(trend)); err != nil {
			return nil, err
		}
		kind := Kind(strings.ToLower(strings.TrimSpace(rawKind)))
		if _, ok := constructors[kind]; !ok {
			return nil, fmt.Errorf("%w: trend %q maps to unknown strategy kind %q", common.ErrInvalidConfig, trend, rawKind)
		}
		trends[model.NormalizeTrend(trend)] = kind
	}
	return &Registry{trends: trends}, nil
}

// checkTrendLabel rejects trend classes that cannot name an artifact file.
func checkTrendLabel(trend model.TrendClass) error {
	label := string(trend)
	if label == "" || label == "." || label == ".." || strings.ContainsAny(label, `/\`) {
		return fmt.Errorf("%w: invalid trend class %q", common.ErrInvalidConfig, label)
	}
	return nil
}

// KindFor returns the strategy kind for a trend class.
func (r *Registry) KindFor(trend model.TrendClass) (Kind, error) {
	kind, ok := r.trends[model.NormalizeTrend(string(trend))]
	if !ok {
		return "", fmt.Errorf("%w: no strategy mapped for trend %q", common.ErrInvalidConfig, trend)
	}
	return kind, nil
}

// New returns an untrained strategy of the given kind.
func (r *Registry) New(kind Kind) (Strategy, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy kind %q", common.ErrInvalidConfig, kind)
	}
	return ctor(), nil
}

// NewFor returns an untrained strategy for a trend class.
func (r *Registry) NewFor(trend model.TrendClass) (Strategy, error) {
	kind, err := r.KindFor(trend)
	if err != nil {
		return nil, err
	}
	return r.New(kind)
}

// Validate checks that every trend class is mapped. It is run at startup
// against the trends stored on categories.
func (r *Registry) Validate(trends []model.TrendClass) error {
	var errs []error
	seen := make(map[model.TrendClass]bool)
	for _, trend := range trends {
		if seen[trend] {
			continue
		}
		seen[trend] = true
		if _, err := r.KindFor(trend); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ContextLengths is the number of recent points passed to Predict per kind.
type ContextLengths map[Kind]int

// DefaultContextLength applies to kinds without an explicit length.
const DefaultContextLength = 12

// For returns the context length for kind.
func (c ContextLengths) For(kind Kind) int {
	if n, ok := c[kind]; ok && n > 0 {
		return n
	}
	return DefaultContextLength
}

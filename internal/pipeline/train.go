package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// train fits a fresh strategy for class and saves its artifact. A class whose
// training or save fails is not forecast this run.
func (p *Pipeline) train(class model.TrendClass, series map[model.SeriesKey][]model.HistoricalPoint) (TrainedClass, error) {
	strategy, err := p.registry.NewFor(class)
	if err != nil {
		return TrainedClass{}, err
	}
	kind := strategy.Kind()

	report, err := strategy.Train(series, p.config.Hyperparameters[kind])
	if err != nil {
		return TrainedClass{}, fmt.Errorf("failed to train %s with %s: %w", class, kind, err)
	}

	for key, ferr := range report.Failed {
		slog.Warn("Series not trained",
			"trend", string(class),
			"series", key.String(),
			"error", ferr)
	}

	if err := p.artifacts.Save(class, strategy); err != nil {
		return TrainedClass{}, fmt.Errorf("failed to save %s artifact: %w", class, err)
	}

	slog.Info("Trained trend class",
		"trend", string(class),
		"kind", string(kind),
		"series", len(report.Trained),
		"failed", len(report.Failed))

	return TrainedClass{
		Class:  class,
		Kind:   kind,
		Series: len(report.Trained),
		Failed: len(report.Failed),
	}, nil
}

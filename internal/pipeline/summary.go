package pipeline

import (
	"time"

	"github.com/Veraticus/forecast-flow/internal/forecast"
	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/Veraticus/forecast-flow/internal/notify"
	"github.com/google/uuid"
)

// Class-level steps recorded when a trend class is skipped.
const (
	StageTrain   Stage = "train"
	StagePredict Stage = "predict"
)

// TrainedClass reports one trend class trained this run.
type TrainedClass struct {
	Class  model.TrendClass
	Kind   forecast.Kind
	Series int
	Failed int
}

// SkippedClass is a trend class that produced no forecasts this run.
type SkippedClass struct {
	Err   error
	Class model.TrendClass
	Stage Stage
}

// OmittedSeries is a series left out of the forecast.
type OmittedSeries struct {
	Err   error
	Class model.TrendClass
	Key   model.SeriesKey
}

// ChangeCounts tallies upsert outcomes.
type ChangeCounts struct {
	Created   int
	Updated   int
	Unchanged int
}

// Total returns the number of rows written or compared.
func (c ChangeCounts) Total() int {
	return c.Created + c.Updated + c.Unchanged
}

func (c *ChangeCounts) add(status model.ChangeStatus) {
	switch status {
	case model.StatusCreated:
		c.Created++
	case model.StatusUpdated:
		c.Updated++
	case model.StatusUnchanged:
		c.Unchanged++
	}
}

func countForecasts(records []model.ForecastRecord) ChangeCounts {
	var c ChangeCounts
	for _, r := range records {
		c.add(r.ChangeStatus)
	}
	return c
}

func countKPIs(records []model.KPIRecord) ChangeCounts {
	var c ChangeCounts
	for _, r := range records {
		c.add(r.ChangeStatus)
	}
	return c
}

// RunSummary describes one pipeline run.
type RunSummary struct {
	Reference        model.Month
	ForecastMonths   []model.Month
	Trained          []TrainedClass
	SkippedClasses   []SkippedClass
	OmittedSeries    []OmittedSeries
	DeliveryFailures []notify.DeliveryFailure
	Forecasts        ChangeCounts
	KPIs             ChangeCounts
	Notifications    int
	Duration         time.Duration
	ID               uuid.UUID
}

// Empty reports whether the run found no actuals to forecast from.
func (s *RunSummary) Empty() bool {
	return s.Reference.IsZero()
}

// Package pipeline runs one forecast cycle: train per trend class, forecast
// every series, persist forecasts and KPIs, then alert managers whose targets
// are at risk.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/forecast-flow/internal/breach"
	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/Veraticus/forecast-flow/internal/forecast"
	"github.com/Veraticus/forecast-flow/internal/kpi"
	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/Veraticus/forecast-flow/internal/notify"
	"github.com/Veraticus/forecast-flow/internal/service"
	"github.com/Veraticus/forecast-flow/internal/trend"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Stage names a step of a run, reported to the observer as it starts.
type Stage string

// Run stages in execution order.
const (
	StageAggregate Stage = "aggregate"
	StageForecast  Stage = "forecast"
	StagePersist   Stage = "persist"
	StageNotify    Stage = "notify"
)

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{StageAggregate, StageForecast, StagePersist, StageNotify}
}

// Notifier alerts one employee about a flag set.
type Notifier interface {
	Dispatch(ctx context.Context, employee model.Employee, flags model.FlagSet, months []model.Month) (*notify.Result, error)
}

// Config holds the tunables of a run.
type Config struct {
	Hyperparameters     map[forecast.Kind]forecast.Hyperparameters
	ContextLengths      forecast.ContextLengths
	Horizon             int
	TrainingLookback    int
	ForecastingLookback int
	Parallelism         int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Horizon:             3,
		TrainingLookback:    24,
		ForecastingLookback: 24,
		Parallelism:         1,
		ContextLengths:      forecast.ContextLengths{forecast.KindSeasonal: 24},
	}
}

// Pipeline orchestrates forecast runs.
type Pipeline struct {
	storage    service.Storage
	registry   *forecast.Registry
	artifacts  *forecast.ArtifactStore
	notifier   Notifier
	aggregator *trend.Aggregator
	observe    func(Stage)
	config     Config
}

// New creates a pipeline. A nil notifier disables alerting.
func New(storage service.Storage, registry *forecast.Registry, artifacts *forecast.ArtifactStore, notifier Notifier, config Config) *Pipeline {
	defaults := DefaultConfig()
	if config.Horizon <= 0 {
		config.Horizon = defaults.Horizon
	}
	if config.TrainingLookback <= 0 {
		config.TrainingLookback = defaults.TrainingLookback
	}
	if config.ForecastingLookback <= 0 {
		config.ForecastingLookback = defaults.ForecastingLookback
	}
	if config.Parallelism <= 0 {
		config.Parallelism = defaults.Parallelism
	}
	if config.ContextLengths == nil {
		config.ContextLengths = defaults.ContextLengths
	}

	return &Pipeline{
		storage:    storage,
		registry:   registry,
		artifacts:  artifacts,
		notifier:   notifier,
		aggregator: trend.NewAggregator(storage),
		observe:    func(Stage) {},
		config:     config,
	}
}

// OnStage registers fn to be called as each stage starts.
func (p *Pipeline) OnStage(fn func(Stage)) {
	if fn == nil {
		fn = func(Stage) {}
	}
	p.observe = fn
}

// Run executes one forecast cycle against the latest month of actuals.
//
// Class-level training and series-level prediction failures are recorded in
// the summary and never fail the run. A persistence failure rolls back every
// forecast and KPI of the run and is returned, as are failures to alert a
// manager. The summary is always returned, even alongside an error.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{ID: uuid.New()}
	defer func() { summary.Duration = time.Since(start) }()

	log := slog.With("run_id", summary.ID.String())

	reference, err := p.storage.GetLatestEntryMonth(ctx)
	if errors.Is(err, common.ErrNoActuals) {
		log.Info("No actuals loaded, nothing to forecast")
		return summary, nil
	}
	if err != nil {
		return summary, fmt.Errorf("failed to determine reference month: %w", err)
	}

	summary.Reference = reference
	summary.ForecastMonths = model.MonthRange(reference, p.config.Horizon)
	log.Info("Starting forecast run",
		"reference", reference.String(),
		"horizon", p.config.Horizon,
		"training_lookback", p.config.TrainingLookback,
		"forecasting_lookback", p.config.ForecastingLookback)

	p.observe(StageAggregate)
	training, forecasting, err := p.windows(ctx, reference)
	if err != nil {
		return summary, err
	}

	p.observe(StageForecast)
	forecasts, err := p.forecastClasses(ctx, training, forecasting, summary)
	if err != nil {
		return summary, err
	}

	if len(forecasts) == 0 {
		log.Warn("No forecasts produced, skipping persistence and alerts",
			"skipped_classes", len(summary.SkippedClasses),
			"omitted_series", len(summary.OmittedSeries))
		return summary, nil
	}

	p.observe(StagePersist)
	saved, kpis, err := p.persist(ctx, forecasts, summary.ForecastMonths)
	if err != nil {
		return summary, err
	}
	summary.Forecasts = countForecasts(saved)
	summary.KPIs = countKPIs(kpis)

	var runErr error
	if p.notifier != nil {
		p.observe(StageNotify)
		runErr = p.alert(ctx, summary)
	}

	log.Info("Forecast run complete",
		"trained", len(summary.Trained),
		"skipped_classes", len(summary.SkippedClasses),
		"omitted_series", len(summary.OmittedSeries),
		"forecasts_created", summary.Forecasts.Created,
		"forecasts_updated", summary.Forecasts.Updated,
		"notifications", summary.Notifications)

	return summary, runErr
}

func (p *Pipeline) windows(ctx context.Context, reference model.Month) (training, forecasting *trend.Window, err error) {
	training, err = p.aggregator.Aggregate(ctx, reference, p.config.TrainingLookback)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build training window: %w", err)
	}
	if p.config.ForecastingLookback == p.config.TrainingLookback {
		return training, training, nil
	}
	forecasting, err = p.aggregator.Aggregate(ctx, reference, p.config.ForecastingLookback)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build forecasting window: %w", err)
	}
	return training, forecasting, nil
}

// classOutcome is what one trend class contributes to a run.
type classOutcome struct {
	skipped   *SkippedClass
	trained   *TrainedClass
	forecasts []model.ForecastRecord
	omitted   []OmittedSeries
}

// forecastClasses trains and forecasts each class of the training window.
// Classes run with bounded parallelism; within a class train, save and
// predict stay ordered.
func (p *Pipeline) forecastClasses(ctx context.Context, training, forecasting *trend.Window, summary *RunSummary) ([]model.ForecastRecord, error) {
	classes := training.Classes()
	outcomes := make([]classOutcome, len(classes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Parallelism)

	for i, class := range classes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = p.forecastClass(class, training.Series[class], forecasting.Series[class], summary.ForecastMonths)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forecasting interrupted: %w", err)
	}

	var forecasts []model.ForecastRecord
	for _, o := range outcomes {
		if o.skipped != nil {
			summary.SkippedClasses = append(summary.SkippedClasses, *o.skipped)
		}
		if o.trained != nil {
			summary.Trained = append(summary.Trained, *o.trained)
		}
		summary.OmittedSeries = append(summary.OmittedSeries, o.omitted...)
		forecasts = append(forecasts, o.forecasts...)
	}
	return forecasts, nil
}

func (p *Pipeline) forecastClass(class model.TrendClass, trainSeries, predictSeries map[model.SeriesKey][]model.HistoricalPoint, months []model.Month) classOutcome {
	trained, err := p.train(class, trainSeries)
	if err != nil {
		common.LogWarn(err, "Skipping trend class", common.Fields{"trend": string(class), "stage": "train"})
		return classOutcome{skipped: &SkippedClass{Class: class, Stage: StageTrain, Err: err}}
	}

	forecasts, omitted, err := p.predict(class, predictSeries, months)
	if err != nil {
		common.LogWarn(err, "Skipping trend class", common.Fields{"trend": string(class), "stage": "predict"})
		return classOutcome{
			trained: &trained,
			skipped: &SkippedClass{Class: class, Stage: StagePredict, Err: err},
		}
	}

	return classOutcome{trained: &trained, forecasts: forecasts, omitted: omitted}
}

// persist writes forecasts and the KPI forecasts derived from every stored
// forecast of months in a single transaction.
func (p *Pipeline) persist(ctx context.Context, forecasts []model.ForecastRecord, months []model.Month) ([]model.ForecastRecord, []model.KPIRecord, error) {
	tx, err := p.storage.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	saved, err := tx.UpsertForecasts(ctx, forecasts)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to save forecasts: %w", common.ErrPersistence, err)
	}

	snapshot, err := tx.GetForecastsForMonths(ctx, months)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read forecasts: %w", common.ErrPersistence, err)
	}

	records := kpi.SnapshotsFromForecasts(snapshot).Records()
	var kpis []model.KPIRecord
	if len(records) > 0 {
		kpis, err = tx.UpsertKPIForecasts(ctx, records)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: failed to save KPI forecasts: %w", common.ErrPersistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to commit forecasts: %w", common.ErrPersistence, err)
	}

	slog.Debug("Persisted forecasts", "forecasts", len(saved), "kpis", len(kpis))
	return saved, kpis, nil
}

// alert checks every manager's targets against their unit's KPI forecasts.
// One manager failing does not stop the others.
func (p *Pipeline) alert(ctx context.Context, summary *RunSummary) error {
	managers, err := p.storage.GetManagers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load managers: %w", err)
	}

	categories, err := p.storage.GetKPICategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load KPI categories: %w", err)
	}
	categoryOf := kpi.CategoryMap(categories)
	if len(categoryOf) == 0 {
		categoryOf = kpi.DefaultCategories()
	}

	months := summary.ForecastMonths
	var errs []error
	for _, manager := range managers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if manager.BusinessUnit == "" {
			slog.Debug("Manager has no business unit", "employee", manager.ID)
			continue
		}

		result, err := p.alertManager(ctx, manager, months, categoryOf)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to alert %s: %w", manager.ID, err))
			continue
		}
		if result == nil {
			continue
		}
		summary.Notifications++
		summary.DeliveryFailures = append(summary.DeliveryFailures, result.Failures...)
	}

	return errors.Join(errs...)
}

func (p *Pipeline) alertManager(ctx context.Context, manager model.Employee, months []model.Month, categoryOf map[string]string) (*notify.Result, error) {
	forecasts, err := p.storage.GetKPIForecasts(ctx, manager.BusinessUnit, months)
	if err != nil {
		return nil, fmt.Errorf("failed to load KPI forecasts: %w", err)
	}

	params, err := p.storage.GetTargets(ctx, manager.ID, months)
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}

	flags := breach.Detect(manager.ID, kpi.ByMonth(forecasts), breach.Targets(params), categoryOf)
	slog.Debug("Checked targets",
		"employee", manager.ID,
		"business_unit", manager.BusinessUnit,
		"targets", len(params),
		"flags", flags.Count())

	return p.notifier.Dispatch(ctx, manager, flags, months)
}

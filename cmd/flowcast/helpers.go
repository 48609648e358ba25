package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/forecast-flow/internal/config"
	"github.com/Veraticus/forecast-flow/internal/forecast"
	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/Veraticus/forecast-flow/internal/notify"
	"github.com/Veraticus/forecast-flow/internal/pipeline"
	"github.com/Veraticus/forecast-flow/internal/service"
	"github.com/Veraticus/forecast-flow/internal/storage"
)

// initStorage opens the database and brings its schema up to date.
func initStorage(ctx context.Context, cfg *config.Config) (service.Storage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// retryOptions derives channel retry settings from configuration.
func retryOptions(cfg *config.Config) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:    cfg.Notify.RetryAttempts + 1,
		AttemptTimeout: cfg.Notify.Timeout,
	}
}

// buildChannels creates every enabled notification channel.
func buildChannels(cfg *config.Config) ([]notify.Channel, error) {
	var channels []notify.Channel

	if cfg.Notify.WhatsApp.Enabled {
		wa, err := notify.NewWhatsAppChannel(cfg.Notify.WhatsApp)
		if err != nil {
			return nil, fmt.Errorf("failed to configure WhatsApp: %w", err)
		}
		channels = append(channels, wa)
	}

	if cfg.Notify.Email.Enabled {
		email, err := notify.NewEmailChannel(cfg.Notify.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to configure email: %w", err)
		}
		channels = append(channels, email)
	}

	if len(channels) == 0 {
		slog.Info("No notification channels enabled, alerts are stored only")
	}
	return channels, nil
}

// pipelineConfig converts forecast configuration into pipeline settings.
func pipelineConfig(cfg config.ForecastConfig) pipeline.Config {
	lengths := make(forecast.ContextLengths, len(cfg.ContextLength))
	for kind, n := range cfg.ContextLength {
		lengths[forecast.Kind(kind)] = n
	}

	hyper := make(map[forecast.Kind]forecast.Hyperparameters, len(cfg.Hyperparameters))
	for kind, params := range cfg.Hyperparameters {
		hyper[forecast.Kind(kind)] = forecast.Hyperparameters(params)
	}

	return pipeline.Config{
		Horizon:             cfg.Horizon,
		TrainingLookback:    cfg.TrainingLookback,
		ForecastingLookback: cfg.ForecastingLookback,
		Parallelism:         cfg.Parallelism,
		ContextLengths:      lengths,
		Hyperparameters:     hyper,
	}
}

// buildPipeline wires a pipeline from configuration. Every trend class stored
// on a category must be mapped to a strategy kind.
func buildPipeline(ctx context.Context, cfg *config.Config, store service.Storage) (*pipeline.Pipeline, error) {
	registry, err := forecast.NewRegistry(cfg.Forecast.Trends)
	if err != nil {
		return nil, err
	}

	if err := validateTrends(ctx, registry, store); err != nil {
		return nil, err
	}

	artifacts, err := forecast.NewArtifactStore(cfg.Artifacts.Dir)
	if err != nil {
		return nil, err
	}

	channels, err := buildChannels(cfg)
	if err != nil {
		return nil, err
	}
	dispatcher := notify.NewDispatcher(store, channels, retryOptions(cfg))

	return pipeline.New(store, registry, artifacts, dispatcher, pipelineConfig(cfg.Forecast)), nil
}

// validateTrends checks the category trends in storage against the registry.
func validateTrends(ctx context.Context, registry *forecast.Registry, store service.Storage) error {
	byCategory, err := store.GetCategoryTrends(ctx)
	if err != nil {
		return fmt.Errorf("failed to load category trends: %w", err)
	}

	trends := make([]model.TrendClass, 0, len(byCategory))
	for _, trend := range byCategory {
		trends = append(trends, trend)
	}
	return registry.Validate(trends)
}

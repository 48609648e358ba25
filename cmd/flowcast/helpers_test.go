package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/Veraticus/forecast-flow/internal/config"
	"github.com/Veraticus/forecast-flow/internal/forecast"
	"github.com/Veraticus/forecast-flow/internal/model"
	"github.com/Veraticus/forecast-flow/internal/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	v := viper.New()
	v.Set("database.path", filepath.Join(dir, "flowcast.db"))
	v.Set("artifacts.dir", filepath.Join(dir, "artifacts"))
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func TestPipelineConfig(t *testing.T) {
	pc := pipelineConfig(config.ForecastConfig{
		Horizon:             3,
		TrainingLookback:    24,
		ForecastingLookback: 12,
		Parallelism:         2,
		ContextLength:       map[string]int{"seasonal": 24, "naive": 6},
		Hyperparameters:     map[string]map[string]float64{"sequence_a": {"lags": 4}},
	})

	assert.Equal(t, 3, pc.Horizon)
	assert.Equal(t, 24, pc.TrainingLookback)
	assert.Equal(t, 12, pc.ForecastingLookback)
	assert.Equal(t, 2, pc.Parallelism)
	assert.Equal(t, 24, pc.ContextLengths.For(forecast.KindSeasonal))
	assert.Equal(t, 6, pc.ContextLengths.For(forecast.KindNaive))
	assert.Equal(t, forecast.DefaultContextLength, pc.ContextLengths.For(forecast.KindStateSpace))
	assert.Equal(t, 4, pc.Hyperparameters[forecast.KindSequenceA].Int("lags", 0))
}

func TestRetryOptions(t *testing.T) {
	cfg := &config.Config{Notify: config.NotifyConfig{RetryAttempts: 2, Timeout: 10 * time.Second}}
	opts := retryOptions(cfg)
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, 10*time.Second, opts.AttemptTimeout)
}

func TestBuildChannels(t *testing.T) {
	cfg := testConfig(t)

	channels, err := buildChannels(cfg)
	require.NoError(t, err)
	assert.Empty(t, channels)

	cfg.Notify.Email.Enabled = true
	cfg.Notify.Email.From = "alerts@example.com"
	cfg.Notify.WhatsApp.Enabled = true
	cfg.Notify.WhatsApp.PhoneNumberID = "12345"
	cfg.Notify.WhatsApp.AccessToken = "token"

	channels, err = buildChannels(cfg)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "whatsapp", channels[0].Name())
	assert.Equal(t, "email", channels[1].Name())

	cfg.Notify.WhatsApp.AccessToken = ""
	_, err = buildChannels(cfg)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestBuildPipeline_RunsOnEmptyDatabase(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	store, err := initStorage(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	p, err := buildPipeline(ctx, cfg, store)
	require.NoError(t, err)

	summary, err := p.Run(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Empty())
}

func TestBuildPipeline_RejectsUnknownKind(t *testing.T) {
	cfg := testConfig(t)
	cfg.Forecast.Trends = map[string]string{"static": "prophet"}

	_, err := buildPipeline(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestBuildPipeline_RejectsUnmappedCategoryTrend(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	store, err := initStorage(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	fixture := testutil.NewFixture().
		WithBusinessUnit("BB1").
		WithCategory("5000-A001", model.TrendStatic).
		WithCategory("5000-A002", "mystery_trend").
		WithSeries("5000-A002", "BB1", model.NewMonth(2025, time.January), testutil.Linear(12, 10, 0)...)
	require.NoError(t, fixture.Apply(ctx, store))

	p, err := buildPipeline(ctx, cfg, store)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "mystery_trend")

	forecasts, err := store.GetForecastsForMonths(ctx, []model.Month{model.NewMonth(2026, time.January)})
	require.NoError(t, err)
	assert.Empty(t, forecasts)
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.Run(cmd, nil)
	assert.Equal(t, "flowcast dev\n", out.String())
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/forecast-flow/internal/common"
	"github.com/spf13/viper"
)

// Config holds the full runtime configuration for flowcast.
type Config struct {
	Trigger    TriggerConfig
	Database   DatabaseConfig
	Artifacts  ArtifactsConfig
	Logging    LoggingConfig
	Notify     NotifyConfig
	Forecast   ForecastConfig
	Parameters ParametersConfig
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// ArtifactsConfig locates the trained strategy artifacts.
type ArtifactsConfig struct {
	Dir string
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// ForecastConfig controls training and forecasting.
type ForecastConfig struct {
	// Trends maps a trend class to a strategy kind.
	Trends map[string]string
	// ContextLength is the number of recent points fed to Predict, per kind.
	ContextLength map[string]int
	// Hyperparameters are passed to Train, per kind.
	Hyperparameters     map[string]map[string]float64
	Horizon             int
	TrainingLookback    int
	ForecastingLookback int
	Parallelism         int
}

// NotifyConfig controls notification delivery.
type NotifyConfig struct {
	WhatsApp      WhatsAppConfig
	Email         EmailConfig
	RetryAttempts int
	Timeout       time.Duration
}

// WhatsAppConfig configures the WhatsApp Cloud API channel.
type WhatsAppConfig struct {
	APIURL        string
	PhoneNumberID string
	AccessToken   string
	Template      string
	Language      string
	RatePerSecond float64
	Enabled       bool
}

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	Host     string
	Username string
	Password string
	From     string
	FromName string
	Port     int
	Enabled  bool
}

// TriggerConfig controls how runs are started.
type TriggerConfig struct {
	Redis    RedisConfig
	Schedule string
}

// RedisConfig locates the pub/sub topic carrying "data refreshed" signals.
type RedisConfig struct {
	Addr     string
	Password string
	Topic    string
	DB       int
}

// ParametersConfig controls target roll-forward.
type ParametersConfig struct {
	RollForwardMonths int
}

// DefaultTrends is the trend class to strategy kind mapping used when none is configured.
func DefaultTrends() map[string]string {
	return map[string]string{
		"gentle_drift_noise":       "seasonal",
		"gradual_steady_increase":  "state_space",
		"profit_linked":            "sequence_b",
		"proportional_to_sales":    "sequence_a",
		"rate_cycle_rise_ease":     "state_space",
		"sales_seasonal_cycle":     "sequence_b",
		"seasonal_with_short_hump": "seasonal",
		"static":                   "naive",
	}
}

// DefaultContextLength returns the number of recent points passed to Predict per kind.
func DefaultContextLength() map[string]int {
	return map[string]int{
		"seasonal":    24,
		"state_space": 12,
		"sequence_a":  12,
		"sequence_b":  12,
		"naive":       12,
	}
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	dataDir := defaultDataDir()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.path", filepath.Join(dataDir, "flowcast.db"))
	v.SetDefault("artifacts.dir", filepath.Join(dataDir, "artifacts"))

	v.SetDefault("forecast.horizon", 3)
	v.SetDefault("forecast.training_lookback", 24)
	v.SetDefault("forecast.forecasting_lookback", 24)
	v.SetDefault("forecast.parallelism", 1)

	v.SetDefault("notify.retry_attempts", 2)
	v.SetDefault("notify.timeout", 30*time.Second)
	v.SetDefault("notify.whatsapp.api_url", "https://graph.facebook.com/v22.0")
	v.SetDefault("notify.whatsapp.template", "kpi_alert")
	v.SetDefault("notify.whatsapp.language", "en_US")
	v.SetDefault("notify.whatsapp.rate_per_second", 1.0)
	v.SetDefault("notify.email.host", "smtp.gmail.com")
	v.SetDefault("notify.email.port", 587)
	v.SetDefault("notify.email.from_name", "Forecast Alerts")

	v.SetDefault("trigger.redis.addr", "localhost:6379")
	v.SetDefault("trigger.redis.topic", "pnl-data-refreshed")

	v.SetDefault("parameters.roll_forward_months", 3)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "flowcast")
}

// Load builds a Config from v, layering configured values over defaults,
// and validates it. Secrets fall back to the plain environment variables
// used by existing deployments when viper has no value.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Database:  DatabaseConfig{Path: ExpandPath(v.GetString("database.path"))},
		Artifacts: ArtifactsConfig{Dir: ExpandPath(v.GetString("artifacts.dir"))},
		Forecast: ForecastConfig{
			Horizon:             v.GetInt("forecast.horizon"),
			TrainingLookback:    v.GetInt("forecast.training_lookback"),
			ForecastingLookback: v.GetInt("forecast.forecasting_lookback"),
			Parallelism:         v.GetInt("forecast.parallelism"),
			Trends:              DefaultTrends(),
			ContextLength:       DefaultContextLength(),
			Hyperparameters:     make(map[string]map[string]float64),
		},
		Notify: NotifyConfig{
			RetryAttempts: v.GetInt("notify.retry_attempts"),
			Timeout:       v.GetDuration("notify.timeout"),
			WhatsApp: WhatsAppConfig{
				Enabled:       v.GetBool("notify.whatsapp.enabled"),
				APIURL:        v.GetString("notify.whatsapp.api_url"),
				PhoneNumberID: firstNonEmpty(v.GetString("notify.whatsapp.phone_number_id"), os.Getenv("WHATSAPP_PHONE_ID")),
				AccessToken:   firstNonEmpty(v.GetString("notify.whatsapp.access_token"), os.Getenv("WHATSAPP_ACCESS_TOKEN")),
				Template:      v.GetString("notify.whatsapp.template"),
				Language:      v.GetString("notify.whatsapp.language"),
				RatePerSecond: v.GetFloat64("notify.whatsapp.rate_per_second"),
			},
			Email: EmailConfig{
				Enabled:  v.GetBool("notify.email.enabled"),
				Host:     v.GetString("notify.email.host"),
				Port:     v.GetInt("notify.email.port"),
				Username: firstNonEmpty(v.GetString("notify.email.username"), os.Getenv("SENDER_EMAIL")),
				Password: firstNonEmpty(v.GetString("notify.email.password"), os.Getenv("SENDER_PASSWORD")),
				From:     v.GetString("notify.email.from"),
				FromName: v.GetString("notify.email.from_name"),
			},
		},
		Trigger: TriggerConfig{
			Redis: RedisConfig{
				Addr:     firstNonEmpty(os.Getenv("REDIS_URL"), v.GetString("trigger.redis.addr")),
				Password: v.GetString("trigger.redis.password"),
				DB:       v.GetInt("trigger.redis.db"),
				Topic:    firstNonEmpty(os.Getenv("REDIS_TOPIC"), v.GetString("trigger.redis.topic")),
			},
			Schedule: v.GetString("trigger.schedule"),
		},
		Parameters: ParametersConfig{
			RollForwardMonths: v.GetInt("parameters.roll_forward_months"),
		},
	}

	if cfg.Notify.Email.From == "" {
		cfg.Notify.Email.From = cfg.Notify.Email.Username
	}

	for trend, kind := range v.GetStringMapString("forecast.trends") {
		cfg.Forecast.Trends[strings.ToLower(strings.TrimSpace(trend))] = strings.ToLower(strings.TrimSpace(kind))
	}

	lengths := make(map[string]int)
	if err := v.UnmarshalKey("forecast.context_length", &lengths); err != nil {
		return nil, fmt.Errorf("%w: forecast.context_length: %w", common.ErrInvalidConfig, err)
	}
	for kind, n := range lengths {
		cfg.Forecast.ContextLength[strings.ToLower(kind)] = n
	}

	hyper := make(map[string]map[string]float64)
	if err := v.UnmarshalKey("forecast.hyperparameters", &hyper); err != nil {
		return nil, fmt.Errorf("%w: forecast.hyperparameters: %w", common.ErrInvalidConfig, err)
	}
	for kind, params := range hyper {
		cfg.Forecast.Hyperparameters[strings.ToLower(kind)] = params
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("%w: artifacts.dir", common.ErrMissingConfig)
	}

	f := c.Forecast
	if f.Horizon <= 0 {
		return fmt.Errorf("%w: forecast.horizon must be positive, got %d", common.ErrInvalidConfig, f.Horizon)
	}
	if f.TrainingLookback <= 0 || f.ForecastingLookback <= 0 {
		return fmt.Errorf("%w: lookback windows must be positive", common.ErrInvalidConfig)
	}
	if f.Parallelism <= 0 {
		return fmt.Errorf("%w: forecast.parallelism must be positive, got %d", common.ErrInvalidConfig, f.Parallelism)
	}
	if len(f.Trends) == 0 {
		return fmt.Errorf("%w: forecast.trends", common.ErrMissingConfig)
	}
	for kind, n := range f.ContextLength {
		if n <= 0 {
			return fmt.Errorf("%w: forecast.context_length.%s must be positive", common.ErrInvalidConfig, kind)
		}
	}

	if c.Notify.RetryAttempts < 0 {
		return fmt.Errorf("%w: notify.retry_attempts cannot be negative", common.ErrInvalidConfig)
	}
	if c.Notify.Timeout < 0 {
		return fmt.Errorf("%w: notify.timeout cannot be negative", common.ErrInvalidConfig)
	}

	wa := c.Notify.WhatsApp
	if wa.Enabled && (wa.PhoneNumberID == "" || wa.AccessToken == "") {
		return fmt.Errorf("%w: notify.whatsapp requires phone_number_id and access_token", common.ErrMissingConfig)
	}
	if wa.Enabled && wa.RatePerSecond <= 0 {
		return fmt.Errorf("%w: notify.whatsapp.rate_per_second must be positive", common.ErrInvalidConfig)
	}

	em := c.Notify.Email
	if em.Enabled && (em.Host == "" || em.Port <= 0 || em.From == "") {
		return fmt.Errorf("%w: notify.email requires host, port and from", common.ErrMissingConfig)
	}

	if c.Parameters.RollForwardMonths < 0 {
		return fmt.Errorf("%w: parameters.roll_forward_months cannot be negative", common.ErrInvalidConfig)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"operating-hours/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Timezone  TimezoneConfig  `mapstructure:"timezone"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Report    ReportConfig    `mapstructure:"report"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Watch     WatchConfig     `mapstructure:"watch"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// PathsConfig locates the batch inputs and outputs.
type PathsConfig struct {
	Registry       string `mapstructure:"registry"`
	DataDir        string `mapstructure:"data_dir"`
	ProcessedDir   string `mapstructure:"processed_dir"`
	CleanProcessed bool   `mapstructure:"clean_processed"`
}

// TimezoneConfig names the reference zone and the per-region zones.
type TimezoneConfig struct {
	Source  string            `mapstructure:"source"`
	Regions map[string]string `mapstructure:"regions"`
}

// EstimatorConfig tunes the surge detector and the evaluated date range.
type EstimatorConfig struct {
	Threshold        float64       `mapstructure:"threshold"`
	VariabilityRatio float64       `mapstructure:"variability_ratio"`
	MinDuration      time.Duration `mapstructure:"min_duration"`
	From             time.Time     `mapstructure:"from"`
	To               time.Time     `mapstructure:"to"`
}

// PipelineConfig governs the meter fan-out.
type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// ReportConfig sets where run reports are rendered.
type ReportConfig struct {
	XLSXPath string `mapstructure:"xlsx_path"`
	PDFPath  string `mapstructure:"pdf_path"`
}

// MetricsConfig controls the Prometheus textfile output.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// NotifyConfig routes run summaries.
type NotifyConfig struct {
	Timeout  time.Duration  `mapstructure:"timeout"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot target.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// WatchConfig governs periodic re-runs.
type WatchConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	Align        bool          `mapstructure:"align"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

const dateLayout = "2006-01-02"

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OPHOURS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ophours")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("paths.registry", "nmi_info.csv")
	v.SetDefault("paths.data_dir", "ConsumptionData")
	v.SetDefault("paths.processed_dir", "processed_data")
	v.SetDefault("paths.clean_processed", true)

	v.SetDefault("timezone.source", "Australia/Brisbane")
	v.SetDefault("timezone.regions", map[string]string{
		"NSW": "Australia/Sydney",
		"VIC": "Australia/Melbourne",
		"QLD": "Australia/Brisbane",
		"WA":  "Australia/Perth",
	})

	v.SetDefault("estimator.threshold", 0.35)
	v.SetDefault("estimator.variability_ratio", 1.5)
	v.SetDefault("estimator.min_duration", "5h")
	v.SetDefault("estimator.from", "1990-01-01")
	v.SetDefault("estimator.to", "2099-12-31")

	v.SetDefault("pipeline.workers", 4)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.advisory_lock_key", int64(0x6f706872))

	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("watch.interval", "24h")
	v.SetDefault("watch.align", true)
	v.SetDefault("watch.startup_delay", "0s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(dateLayout),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be greater than zero")
	}
	if c.Estimator.Threshold <= 0 || c.Estimator.Threshold >= 1 {
		return fmt.Errorf("estimator.threshold must be between 0 and 1")
	}
	if c.Estimator.VariabilityRatio < 1 {
		return fmt.Errorf("estimator.variability_ratio cannot be below 1")
	}
	if c.Estimator.MinDuration < 0 {
		return fmt.Errorf("estimator.min_duration cannot be negative")
	}
	if c.Estimator.To.Before(c.Estimator.From) {
		return fmt.Errorf("estimator.to must not be before estimator.from")
	}
	if c.Timezone.Source == "" {
		return fmt.Errorf("timezone.source must be configured")
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be greater than zero")
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token must be configured")
		}
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id must be configured")
		}
	}
	return nil
}

// ResolveWorkers returns either the CLI override or config default.
func (c *Config) ResolveWorkers(override int) int {
	if override > 0 {
		return override
	}
	return c.Pipeline.Workers
}

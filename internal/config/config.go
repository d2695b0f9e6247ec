package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// minForecastHistory is the shortest history a forecast may be built from.
const minForecastHistory = 10

// Config holds the full application configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Travelpayouts TravelpayoutsConfig `yaml:"travelpayouts" mapstructure:"travelpayouts"`
	Forecast      ForecastConfig      `yaml:"forecast" mapstructure:"forecast"`
	Export        ExportConfig        `yaml:"export" mapstructure:"export"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// TravelpayoutsConfig configures the upstream data API.
type TravelpayoutsConfig struct {
	Token             string  `yaml:"token" mapstructure:"token"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Currency          string  `yaml:"currency" mapstructure:"currency"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	// MaxRetries is the number of attempts per request; 1 disables retries.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
}

// ForecastConfig tunes decomposition and forecasting.
type ForecastConfig struct {
	HorizonDays    int     `yaml:"horizon_days" mapstructure:"horizon_days"`
	MinHistory     int     `yaml:"min_history" mapstructure:"min_history"`
	Degree         int     `yaml:"degree" mapstructure:"degree"`
	TestFraction   float64 `yaml:"test_fraction" mapstructure:"test_fraction"`
	Seed           uint64  `yaml:"seed" mapstructure:"seed"`
	SeasonalPeriod int     `yaml:"seasonal_period" mapstructure:"seasonal_period"`
	FetchOnMiss    bool    `yaml:"fetch_on_miss" mapstructure:"fetch_on_miss"`
}

// ExportConfig configures report artifacts written to disk.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
// FARECAST_-prefixed variables override the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FARECAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "aviasales_data.db")
	v.SetDefault("travelpayouts.token", "")
	v.SetDefault("travelpayouts.base_url", "https://api.travelpayouts.com")
	v.SetDefault("travelpayouts.currency", "rub")
	v.SetDefault("travelpayouts.timeout_secs", 30)
	v.SetDefault("travelpayouts.requests_per_second", 5)
	v.SetDefault("travelpayouts.max_retries", 1)
	v.SetDefault("forecast.horizon_days", 30)
	v.SetDefault("forecast.min_history", 10)
	v.SetDefault("forecast.degree", 2)
	v.SetDefault("forecast.test_fraction", 0.2)
	v.SetDefault("forecast.seed", 42)
	v.SetDefault("forecast.seasonal_period", 30)
	v.SetDefault("forecast.fetch_on_miss", true)
	v.SetDefault("export.dir", "out")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "refresh", "collect", "forecast", "serve" and "offline". All problems are
// reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Store.Driver != "sqlite" {
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	needsDB := true
	needsToken := false
	switch mode {
	case "refresh", "collect":
		needsToken = true
	case "forecast", "serve":
		needsToken = c.Forecast.FetchOnMiss
	case "offline":
		needsDB = false
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needsDB && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if needsToken && c.Travelpayouts.Token == "" {
		errs = append(errs, "travelpayouts.token is required (FARECAST_TRAVELPAYOUTS_TOKEN)")
	}
	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	f := c.Forecast
	if f.HorizonDays < 1 {
		errs = append(errs, "forecast.horizon_days must be >= 1")
	}
	if f.Degree < 1 {
		errs = append(errs, "forecast.degree must be >= 1")
	}
	if f.MinHistory < minForecastHistory {
		errs = append(errs, fmt.Sprintf("forecast.min_history must be >= %d", minForecastHistory))
	}
	if f.MinHistory <= f.Degree {
		errs = append(errs, "forecast.min_history must exceed forecast.degree")
	}
	if f.SeasonalPeriod < 2 {
		errs = append(errs, "forecast.seasonal_period must be >= 2")
	}
	if f.TestFraction < 0 || f.TestFraction >= 1 {
		errs = append(errs, "forecast.test_fraction must be in [0, 1)")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/antonio-prism/prism-brain/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store          StoreConfig          `yaml:"store" mapstructure:"store"`
	Cache          CacheConfig          `yaml:"cache" mapstructure:"cache"`
	Redis          RedisConfig          `yaml:"redis" mapstructure:"redis"`
	Log            LogConfig            `yaml:"log" mapstructure:"log"`
	Server         ServerConfig         `yaml:"server" mapstructure:"server"`
	Probability    ProbabilityConfig    `yaml:"probability" mapstructure:"probability"`
	Remote         RemoteConfig         `yaml:"remote" mapstructure:"remote"`
	Fetch          FetchConfig          `yaml:"fetch" mapstructure:"fetch"`
	Prioritization PrioritizationConfig `yaml:"prioritization" mapstructure:"prioritization"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig selects where fetched signals are cached.
type CacheConfig struct {
	// Backend is "store" (the configured database), "memory" or "redis".
	Backend string `yaml:"backend" mapstructure:"backend"`
}

// RedisConfig holds Redis connection settings for the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// ProbabilityConfig configures the probability engine.
type ProbabilityConfig struct {
	Weights model.Weights `yaml:"weights" mapstructure:"weights"`
	// IncidentCeilings maps a domain to the incident count that saturates the
	// historical frequency factor at 1.0.
	IncidentCeilings map[string]float64 `yaml:"incident_ceilings" mapstructure:"incident_ceilings"`
	ExposureMid      float64            `yaml:"exposure_mid" mapstructure:"exposure_mid"`
	ExposureLow      float64            `yaml:"exposure_low" mapstructure:"exposure_low"`
}

// RemoteConfig configures the optional remote probability backend.
type RemoteConfig struct {
	URL              string `yaml:"url" mapstructure:"url"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FailureThreshold int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int    `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Timeout returns the remote call budget.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// FetchConfig configures the external signal fetchers.
type FetchConfig struct {
	Live              bool           `yaml:"live" mapstructure:"live"`
	TimeoutSecs       int            `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec        float64        `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	OpenWeatherMapKey string         `yaml:"openweathermap_key" mapstructure:"openweathermap_key"`
	NewsAPIKey        string         `yaml:"newsapi_key" mapstructure:"newsapi_key"`
	OpenWeatherMapURL string         `yaml:"openweathermap_url" mapstructure:"openweathermap_url"`
	NewsAPIURL        string         `yaml:"newsapi_url" mapstructure:"newsapi_url"`
	WorldBankURL      string         `yaml:"worldbank_url" mapstructure:"worldbank_url"`
	TTLHours          map[string]int `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	// Per live client breaker, same knobs as the remote backend breaker.
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Timeout returns the per-call live fetch budget.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// TTL returns the cache TTL for a signal category, defaulting to a week.
func (f FetchConfig) TTL(category string) time.Duration {
	if h, ok := f.TTLHours[category]; ok && h > 0 {
		return time.Duration(h) * time.Hour
	}
	return 168 * time.Hour
}

// PrioritizationConfig holds the default Pareto and relevance cutoffs.
type PrioritizationConfig struct {
	ProcessThresholdPct float64 `yaml:"process_threshold_pct" mapstructure:"process_threshold_pct"`
	MinRiskScore        float64 `yaml:"min_risk_score" mapstructure:"min_risk_score"`
	WorkingDays         int     `yaml:"working_days" mapstructure:"working_days"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRISM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	w := model.DefaultWeights()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prism.db")
	v.SetDefault("cache.backend", "store")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "prism:cache:")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("probability.weights.historical_frequency", w.HistoricalFrequency)
	v.SetDefault("probability.weights.trend_direction", w.TrendDirection)
	v.SetDefault("probability.weights.current_conditions", w.CurrentConditions)
	v.SetDefault("probability.weights.exposure_factor", w.ExposureFactor)
	v.SetDefault("probability.incident_ceilings", map[string]float64{
		"physical":    50,
		"structural":  40,
		"operational": 60,
		"digital":     80,
	})
	v.SetDefault("probability.exposure_mid", 0.6)
	v.SetDefault("probability.exposure_low", 0.3)
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.timeout_secs", 5)
	v.SetDefault("remote.failure_threshold", 3)
	v.SetDefault("remote.reset_timeout_secs", 60)
	v.SetDefault("fetch.live", false)
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.rate_per_sec", 5)
	v.SetDefault("fetch.openweathermap_key", "")
	v.SetDefault("fetch.failure_threshold", 3)
	v.SetDefault("fetch.reset_timeout_secs", 300)
	v.SetDefault("fetch.newsapi_key", "")
	v.SetDefault("fetch.openweathermap_url", "https://api.openweathermap.org/data/2.5")
	v.SetDefault("fetch.newsapi_url", "https://newsapi.org/v2")
	v.SetDefault("fetch.worldbank_url", "https://api.worldbank.org/v2")
	v.SetDefault("fetch.ttl_hours", map[string]int{
		"weather":     24,
		"cyber":       24,
		"news":        168,
		"economic":    168,
		"operational": 168,
	})
	v.SetDefault("prioritization.process_threshold_pct", 80)
	v.SetDefault("prioritization.min_risk_score", 50)
	v.SetDefault("prioritization.working_days", 250)
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres (got %q)", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch c.Cache.Backend {
	case "store", "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required for the redis cache backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.backend must be store, memory or redis (got %q)", c.Cache.Backend))
	}

	errs = append(errs, ValidateWeights(c.Probability.Weights)...)

	for domain, ceiling := range c.Probability.IncidentCeilings {
		if ceiling <= 0 {
			errs = append(errs, fmt.Sprintf("probability.incident_ceilings.%s must be > 0", domain))
		}
	}
	if c.Probability.ExposureLow < 0 || c.Probability.ExposureLow > c.Probability.ExposureMid || c.Probability.ExposureMid > 1 {
		errs = append(errs, "probability exposure values must satisfy 0 <= exposure_low <= exposure_mid <= 1")
	}

	p := c.Prioritization
	if p.ProcessThresholdPct <= 0 || p.ProcessThresholdPct > 100 {
		errs = append(errs, "prioritization.process_threshold_pct must be in (0, 100]")
	}
	if p.MinRiskScore < 0 || p.MinRiskScore > 100 {
		errs = append(errs, "prioritization.min_risk_score must be in [0, 100]")
	}
	if p.WorkingDays <= 0 {
		errs = append(errs, "prioritization.working_days must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// weightTolerance bounds the float error accepted on the weight sum.
const weightTolerance = 1e-6

// ValidateWeights returns one message per problem with w.
func ValidateWeights(w model.Weights) []string {
	var errs []string
	named := []struct {
		name string
		v    float64
	}{
		{"historical_frequency", w.HistoricalFrequency},
		{"trend_direction", w.TrendDirection},
		{"current_conditions", w.CurrentConditions},
		{"exposure_factor", w.ExposureFactor},
	}
	for _, n := range named {
		if n.v < 0 {
			errs = append(errs, fmt.Sprintf("probability.weights.%s must be >= 0", n.name))
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("probability.weights must sum to 1.0, got %.4f", sum))
	}
	return errs
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

package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config represents the runtime configuration of the notification service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Push       PushConfig       `mapstructure:"push"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Sweeps     SweepsConfig     `mapstructure:"sweeps"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	GinMode   string          `mapstructure:"gin_mode"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds ad-hoc dispatches per caller.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	Postgres        DBAuthConfig  `mapstructure:"postgres"`
	MySQL           DBAuthConfig  `mapstructure:"mysql"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options. Redis backs sweep leases
// and shared rate limits; without it both stay in process.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// KafkaConfig configures the record-change subscription.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Group   string   `mapstructure:"group"`
	Topic   string   `mapstructure:"topic"`
}

// PushConfig selects and tunes the push gateway.
type PushConfig struct {
	Provider        string        `mapstructure:"provider"`
	ProjectID       string        `mapstructure:"project_id"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	Timeout         time.Duration `mapstructure:"timeout"`
	AppName         string        `mapstructure:"app_name"`
	Timezone        string        `mapstructure:"timezone"`
}

// AuthConfig captures authentication settings for the dispatch API.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures caller tokens.
type JWTSettings struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"access_token_ttl"`
}

// SweepsConfig schedules and sizes the periodic jobs.
type SweepsConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ReminderSchedule  string        `mapstructure:"reminder_schedule"`
	StatusSchedule    string        `mapstructure:"status_schedule"`
	RetentionSchedule string        `mapstructure:"retention_schedule"`
	ReminderHorizon   time.Duration `mapstructure:"reminder_horizon"`
	RetentionDays     int           `mapstructure:"retention_days"`
	BatchSize         int           `mapstructure:"batch_size"`
	FanOut            int           `mapstructure:"fan_out"`
	LookupBatchSize   int           `mapstructure:"lookup_batch_size"`
	JobTimeout        time.Duration `mapstructure:"job_timeout"`
	Lease             bool          `mapstructure:"lease"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads config.yaml from ./config and paths, then the environment
// (prefix COURTNOTIFY_). A .env file in the working directory is loaded first
// when present; variables already set win over it.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("COURTNOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate reports every setting that prevents startup.
func (c *Config) Validate() error {
	var errs error

	if strings.TrimSpace(c.Auth.JWT.Secret) == "" {
		errs = multierr.Append(errs, errors.New("auth.jwt.secret is required"))
	}

	switch strings.ToLower(strings.TrimSpace(c.Push.Provider)) {
	case "fcm":
		if strings.TrimSpace(c.Push.ProjectID) == "" && strings.TrimSpace(c.Push.CredentialsFile) == "" {
			errs = multierr.Append(errs, errors.New("push.project_id or push.credentials_file is required for fcm"))
		}
	case "log":
	default:
		errs = multierr.Append(errs, fmt.Errorf("push.provider %q is not supported", c.Push.Provider))
	}

	if _, err := c.Push.Location(); err != nil {
		errs = multierr.Append(errs, err)
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" || c.Kafka.Group == "") {
		errs = multierr.Append(errs, errors.New("kafka.brokers, kafka.topic and kafka.group are required when kafka is enabled"))
	}

	if c.Cache.Redis.Enabled && strings.TrimSpace(c.Cache.Redis.Address) == "" {
		errs = multierr.Append(errs, errors.New("cache.redis.address is required when redis is enabled"))
	}

	if errs != nil {
		return fmt.Errorf("config: invalid: %w", errs)
	}
	return nil
}

// Location resolves the timezone used to render match times.
func (p PushConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(p.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("push.timezone %q: %w", name, err)
	}
	return loc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.rate_limit.requests", 30)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/courtnotify.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.query_timeout", "10s")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("database.conn_max_lifetime", "0s")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.group", "courtnotify")
	v.SetDefault("kafka.topic", "record-changes")

	v.SetDefault("push.provider", "log")
	v.SetDefault("push.project_id", "")
	v.SetDefault("push.credentials_file", "")
	v.SetDefault("push.timeout", "10s")
	v.SetDefault("push.app_name", "Tennis Connect")
	v.SetDefault("push.timezone", "UTC")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "")
	v.SetDefault("auth.jwt.audience", "")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("sweeps.enabled", true)
	v.SetDefault("sweeps.reminder_schedule", "@hourly")
	v.SetDefault("sweeps.status_schedule", "@hourly")
	v.SetDefault("sweeps.retention_schedule", "@daily")
	v.SetDefault("sweeps.reminder_horizon", "24h")
	v.SetDefault("sweeps.retention_days", 30)
	v.SetDefault("sweeps.batch_size", 500)
	v.SetDefault("sweeps.fan_out", 8)
	v.SetDefault("sweeps.lookup_batch_size", 100)
	v.SetDefault("sweeps.job_timeout", "10m")
	v.SetDefault("sweeps.lease", true)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

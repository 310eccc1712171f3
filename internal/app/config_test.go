package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/courtnotify/internal/auth"
	"github.com/charlesng35/courtnotify/internal/lock"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 5, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 3*time.Second, cfg.Database.QueryTimeout)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 2, cfg.Cache.Redis.DB)

	require.True(t, cfg.Kafka.Enabled)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "notify-workers", cfg.Kafka.Group)
	require.Equal(t, "tennis.changes", cfg.Kafka.Topic)

	require.Equal(t, "fcm", cfg.Push.Provider)
	require.Equal(t, "Court Club", cfg.Push.AppName)
	require.Equal(t, 10*time.Second, cfg.Push.Timeout)

	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.Equal(t, "*/15 * * * *", cfg.Sweeps.ReminderSchedule)
	require.Equal(t, "@hourly", cfg.Sweeps.StatusSchedule)
	require.Equal(t, 14, cfg.Sweeps.RetentionDays)
	require.Equal(t, 250, cfg.Sweeps.BatchSize)
	require.Equal(t, 24*time.Hour, cfg.Sweeps.ReminderHorizon)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "log", cfg.Push.Provider)
	require.Equal(t, "Tennis Connect", cfg.Push.AppName)
	require.Equal(t, "@daily", cfg.Sweeps.RetentionSchedule)
	require.Equal(t, 30, cfg.Sweeps.RetentionDays)
	require.True(t, cfg.Sweeps.Lease)
	require.False(t, cfg.Kafka.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("COURTNOTIFY_SERVER_PORT", "9191")
	t.Setenv("COURTNOTIFY_AUTH_JWT_SECRET", "from-env")
	t.Setenv("COURTNOTIFY_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("COURTNOTIFY_SWEEPS_JOB_TIMEOUT", "90s")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9191, cfg.Server.Port)
	require.Equal(t, "from-env", cfg.Auth.JWT.Secret)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, 90*time.Second, cfg.Sweeps.JobTimeout)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Config{
		Push:  PushConfig{Provider: "apns", Timezone: "Mars/Olympus"},
		Kafka: KafkaConfig{Enabled: true},
		Cache: CacheConfig{Redis: RedisCacheConfig{Enabled: true}},
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "auth.jwt.secret is required")
	require.Contains(t, msg, `push.provider "apns" is not supported`)
	require.Contains(t, msg, "Mars/Olympus")
	require.Contains(t, msg, "kafka.brokers")
	require.Contains(t, msg, "cache.redis.address")
}

func TestValidateFCMNeedsProject(t *testing.T) {
	cfg := Config{
		Auth: AuthConfig{JWT: JWTSettings{Secret: "s"}},
		Push: PushConfig{Provider: "FCM"},
	}
	require.ErrorContains(t, cfg.Validate(), "push.project_id")

	cfg.Push.CredentialsFile = "/etc/courtnotify/sa.json"
	require.NoError(t, cfg.Validate())
}

func TestPushLocation(t *testing.T) {
	loc, err := PushConfig{}.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)

	loc, err = PushConfig{Timezone: "America/Los_Angeles"}.Location()
	require.NoError(t, err)
	require.Equal(t, "America/Los_Angeles", loc.String())
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{JWT: JWTSettings{
		Secret:   "secret",
		Issuer:   " issuer ",
		Audience: "mobile",
		TTL:      30 * time.Minute,
	}}

	require.Equal(t, auth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		Audience:       "mobile",
		AccessTokenTTL: 30 * time.Minute,
	}, cfg.JWTServiceConfig())

	var empty AuthConfig
	require.Equal(t, auth.DefaultAccessTokenTTL, empty.JWTServiceConfig().AccessTokenTTL)
}

func TestCacheConfigAdapter(t *testing.T) {
	cfg := CacheConfig{Redis: RedisCacheConfig{
		Address:  " redis:6379 ",
		Username: "user",
		Password: "pass",
		DB:       3,
		TLS:      true,
		Timeout:  2 * time.Second,
	}}

	require.Equal(t, lock.RedisConfig{
		Address:  "redis:6379",
		Username: "user",
		Password: "pass",
		DB:       3,
		TLS:      true,
		Timeout:  2 * time.Second,
	}, cfg.RedisClientConfig())
}

func TestDatabaseOpenConfig(t *testing.T) {
	sqlite := DatabaseConfig{Path: "./data/test.sqlite"}.OpenConfig()
	require.Equal(t, "sqlite", sqlite.Driver)
	require.Equal(t, "./data/test.sqlite", sqlite.Path)

	pg := DatabaseConfig{
		Driver:       "PostgreSQL",
		MaxOpenConns: 12,
		Postgres:     DBAuthConfig{Host: "db", Port: 5433, Database: "tennis", Username: "u", Password: "p"},
	}.OpenConfig()
	require.Equal(t, "postgres", pg.Driver)
	require.Equal(t, "db", pg.Host)
	require.Equal(t, 5433, pg.Port)
	require.Equal(t, "tennis", pg.Name)
	require.Equal(t, 12, pg.MaxOpenConns)

	my := DatabaseConfig{Driver: "mysql", MySQL: DBAuthConfig{Host: "mysql", Port: 3306}}.OpenConfig()
	require.Equal(t, "mysql", my.Driver)
	require.Equal(t, "mysql", my.Host)

	unknown := DatabaseConfig{Driver: "oracle"}.OpenConfig()
	require.Equal(t, "oracle", unknown.Driver)
}

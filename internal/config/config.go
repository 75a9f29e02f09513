// Package config loads the service configuration from the environment.
//
// The tier picked by NEXIS_TIER supplies defaults (domain.DefaultConfig or
// domain.ProConfig); NEXIS_* variables override individual settings. An
// optional .env file is read first and never overrides the real environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/nexis/internal/domain"
)

// Load reads .env files (default ".env", missing files are ignored),
// applies environment overrides and validates the result.
func Load(envFiles ...string) (*domain.Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", f, err)
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a configuration from the process environment without validating it.
func FromEnv() (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	if strings.EqualFold(os.Getenv("NEXIS_TIER"), string(domain.TierPro)) {
		cfg = domain.ProConfig()
	}

	e := &env{}

	cfg.Server.Host = e.str("NEXIS_HOST", cfg.Server.Host)
	cfg.Server.Port = e.integer("NEXIS_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = e.integer("NEXIS_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = e.integer("NEXIS_WRITE_TIMEOUT", cfg.Server.WriteTimeout)

	a := &cfg.Assessment
	a.ValidityDays = e.integer("NEXIS_VALIDITY_DAYS", a.ValidityDays)
	a.RequireConsent = e.boolean("NEXIS_REQUIRE_CONSENT", a.RequireConsent)
	a.Workers = e.integer("NEXIS_WORKERS", a.Workers)
	a.AsyncWorker = e.boolean("NEXIS_ASYNC_WORKER", a.AsyncWorker)
	a.WorkerTenants = e.list("NEXIS_TENANTS", a.WorkerTenants)

	r := &cfg.Repository
	r.Driver = e.str("NEXIS_DB_DRIVER", r.Driver)
	r.SQLitePath = e.str("NEXIS_SQLITE_PATH", r.SQLitePath)
	r.PostgresHost = e.str("NEXIS_POSTGRES_HOST", r.PostgresHost)
	r.PostgresPort = e.integer("NEXIS_POSTGRES_PORT", r.PostgresPort)
	r.PostgresUser = e.str("NEXIS_POSTGRES_USER", r.PostgresUser)
	r.PostgresPassword = e.str("NEXIS_POSTGRES_PASSWORD", r.PostgresPassword)
	r.PostgresDB = e.str("NEXIS_POSTGRES_DB", r.PostgresDB)
	r.PostgresSSLMode = e.str("NEXIS_POSTGRES_SSLMODE", r.PostgresSSLMode)
	r.MaxOpenConns = e.integer("NEXIS_DB_MAX_OPEN_CONNS", r.MaxOpenConns)
	r.MaxIdleConns = e.integer("NEXIS_DB_MAX_IDLE_CONNS", r.MaxIdleConns)
	r.ConnMaxLifetime = e.duration("NEXIS_DB_CONN_MAX_LIFETIME", r.ConnMaxLifetime)

	c := &cfg.Cache
	c.Type = e.str("NEXIS_CACHE_TYPE", c.Type)
	c.LocalMaxSize = e.integer("NEXIS_CACHE_SIZE", c.LocalMaxSize)
	c.LocalTTL = e.duration("NEXIS_CACHE_TTL", c.LocalTTL)
	c.RedisAddr = e.str("NEXIS_REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = e.str("NEXIS_REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = e.integer("NEXIS_REDIS_DB", c.RedisDB)
	c.EnableTwoPhase = e.boolean("NEXIS_CACHE_TWO_PHASE", c.EnableTwoPhase)

	b := &cfg.EventBus
	b.Type = e.str("NEXIS_BUS_TYPE", b.Type)
	b.ChannelBufferSize = e.integer("NEXIS_BUS_BUFFER", b.ChannelBufferSize)
	b.NATSUrl = e.str("NEXIS_NATS_URL", b.NATSUrl)
	b.NATSToken = e.str("NEXIS_NATS_TOKEN", b.NATSToken)
	b.NATSMaxReconnects = e.integer("NEXIS_NATS_MAX_RECONNECTS", b.NATSMaxReconnects)
	b.NATSReconnectWait = e.integer("NEXIS_NATS_RECONNECT_WAIT", b.NATSReconnectWait)
	b.NATSQueueGroup = e.str("NEXIS_NATS_QUEUE_GROUP", b.NATSQueueGroup)

	cfg.Auth.Secret = e.str("NEXIS_AUTH_SECRET", cfg.Auth.Secret)
	cfg.Auth.Issuer = e.str("NEXIS_AUTH_ISSUER", cfg.Auth.Issuer)
	cfg.Auth.TokenTTL = e.duration("NEXIS_AUTH_TOKEN_TTL", cfg.Auth.TokenTTL)

	rl := &cfg.RateLimit
	rl.Enabled = e.boolean("NEXIS_RATE_LIMIT", rl.Enabled)
	rl.AssessmentLimit = e.integer("NEXIS_ASSESSMENT_LIMIT", rl.AssessmentLimit)
	rl.AssessmentWindow = e.duration("NEXIS_ASSESSMENT_WINDOW", rl.AssessmentWindow)
	rl.DecisionLimit = e.integer("NEXIS_DECISION_LIMIT", rl.DecisionLimit)
	rl.DecisionWindow = e.duration("NEXIS_DECISION_WINDOW", rl.DecisionWindow)

	cfg.Logging.Level = e.str("NEXIS_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = e.str("NEXIS_LOG_FORMAT", cfg.Logging.Format)
	if e.boolean("NEXIS_DEBUG", false) {
		cfg.Logging.Level = "debug"
	}

	t := &cfg.Tracing
	t.Enabled = e.boolean("NEXIS_TRACING", t.Enabled)
	t.ServiceName = e.str("OTEL_SERVICE_NAME", t.ServiceName)
	t.ExporterType = e.str("NEXIS_TRACING_EXPORTER", t.ExporterType)
	t.Endpoint = e.str("OTEL_EXPORTER_OTLP_ENDPOINT", t.Endpoint)
	t.Insecure = e.boolean("NEXIS_TRACING_INSECURE", t.Insecure)
	t.SampleRatio = e.float("NEXIS_TRACING_SAMPLE_RATIO", t.SampleRatio)

	if err := e.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can start a server.
func Validate(cfg *domain.Config) error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("config: "+format, args...))
		}
	}

	check(cfg.Server.Port > 0 && cfg.Server.Port <= 65535, "NEXIS_PORT must be between 1 and 65535, got %d", cfg.Server.Port)
	check(cfg.Server.ReadTimeout > 0 && cfg.Server.WriteTimeout > 0, "server timeouts must be positive")

	check(cfg.Assessment.ValidityDays > 0, "NEXIS_VALIDITY_DAYS must be positive, got %d", cfg.Assessment.ValidityDays)
	check(cfg.Assessment.Workers > 0, "NEXIS_WORKERS must be positive, got %d", cfg.Assessment.Workers)

	switch cfg.Repository.Driver {
	case "sqlite":
	case "postgres":
		check(cfg.Repository.PostgresHost != "", "NEXIS_POSTGRES_HOST is required for postgres")
	default:
		check(false, "NEXIS_DB_DRIVER must be sqlite or postgres, got %q", cfg.Repository.Driver)
	}

	switch cfg.Cache.Type {
	case "memory", "":
	case "redis":
		check(cfg.Cache.RedisAddr != "", "NEXIS_REDIS_ADDR is required for redis")
	default:
		check(false, "NEXIS_CACHE_TYPE must be memory or redis, got %q", cfg.Cache.Type)
	}

	switch cfg.EventBus.Type {
	case "channel", "":
	case "nats":
		check(cfg.EventBus.NATSUrl != "", "NEXIS_NATS_URL is required for nats")
	default:
		check(false, "NEXIS_BUS_TYPE must be channel or nats, got %q", cfg.EventBus.Type)
	}

	if cfg.Auth.Enabled() {
		check(len(cfg.Auth.Secret) >= 16, "NEXIS_AUTH_SECRET must be at least 16 characters")
		check(cfg.Auth.TokenTTL > 0, "NEXIS_AUTH_TOKEN_TTL must be positive")
	}

	if cfg.RateLimit.Enabled {
		rl := cfg.RateLimit
		check(rl.AssessmentLimit > 0 && rl.AssessmentWindow > 0, "assessment rate limit needs a positive limit and window")
		check(rl.DecisionLimit > 0 && rl.DecisionWindow > 0, "decision rate limit needs a positive limit and window")
	}

	_, levelErr := ParseLevel(cfg.Logging.Level)
	check(levelErr == nil, "NEXIS_LOG_LEVEL must be debug, info, warn or error, got %q", cfg.Logging.Level)
	check(cfg.Logging.Format == "json" || cfg.Logging.Format == "text", "NEXIS_LOG_FORMAT must be json or text, got %q", cfg.Logging.Format)

	if cfg.Tracing.Enabled {
		check(cfg.Tracing.ExporterType == "otlp" || cfg.Tracing.ExporterType == "none",
			"NEXIS_TRACING_EXPORTER must be otlp or none, got %q", cfg.Tracing.ExporterType)
		check(cfg.Tracing.SampleRatio >= 0 && cfg.Tracing.SampleRatio <= 1,
			"NEXIS_TRACING_SAMPLE_RATIO must be between 0 and 1, got %g", cfg.Tracing.SampleRatio)
	}

	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// NewLogger builds the process logger from logging settings.
func NewLogger(cfg domain.LoggingConfig) *slog.Logger {
	level, _ := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// env reads typed variables and collects parse errors.
type env struct {
	errs []error
}

func (e *env) str(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (e *env) integer(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q is not a valid integer", key, v))
		return defaultVal
	}
	return n
}

func (e *env) boolean(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q is not a valid boolean", key, v))
		return defaultVal
	}
	return b
}

func (e *env) float(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q is not a valid number", key, v))
		return defaultVal
	}
	return f
}

func (e *env) duration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q is not a valid duration", key, v))
		return defaultVal
	}
	return d
}

func (e *env) list(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (e *env) err() error {
	if len(e.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(e.errs...))
}

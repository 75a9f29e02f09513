package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/nexis/internal/domain"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tier != domain.TierCommunity {
		t.Errorf("expected community tier, got %s", cfg.Tier)
	}
	if cfg.Repository.Driver != "sqlite" {
		t.Errorf("expected sqlite, got %s", cfg.Repository.Driver)
	}
	if cfg.Assessment.ValidityDays != 90 {
		t.Errorf("expected 90 validity days, got %d", cfg.Assessment.ValidityDays)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestFromEnvProTier(t *testing.T) {
	t.Setenv("NEXIS_TIER", "pro")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tier != domain.TierPro {
		t.Errorf("expected pro tier, got %s", cfg.Tier)
	}
	if cfg.EventBus.Type != "nats" || cfg.Cache.Type != "redis" {
		t.Errorf("expected nats and redis, got %s and %s", cfg.EventBus.Type, cfg.Cache.Type)
	}
	if !cfg.Assessment.RequireConsent || !cfg.Assessment.AsyncWorker {
		t.Error("pro tier enforces consent and runs the worker")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("NEXIS_PORT", "9090")
	t.Setenv("NEXIS_VALIDITY_DAYS", "30")
	t.Setenv("NEXIS_REQUIRE_CONSENT", "true")
	t.Setenv("NEXIS_TENANTS", "bank-a, bank-b,,")
	t.Setenv("NEXIS_ASSESSMENT_WINDOW", "2m")
	t.Setenv("NEXIS_NATS_QUEUE_GROUP", "scorers")
	t.Setenv("NEXIS_DEBUG", "true")
	t.Setenv("NEXIS_TRACING_SAMPLE_RATIO", "0.25")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Assessment.Validity() != 30*24*time.Hour {
		t.Errorf("expected 30 day validity, got %v", cfg.Assessment.Validity())
	}
	if !cfg.Assessment.RequireConsent {
		t.Error("expected consent to be required")
	}
	if got := strings.Join(cfg.Assessment.WorkerTenants, "|"); got != "bank-a|bank-b" {
		t.Errorf("expected bank-a|bank-b, got %s", got)
	}
	if cfg.RateLimit.AssessmentWindow != 2*time.Minute {
		t.Errorf("expected 2m window, got %v", cfg.RateLimit.AssessmentWindow)
	}
	if cfg.EventBus.NATSQueueGroup != "scorers" {
		t.Errorf("expected queue group scorers, got %s", cfg.EventBus.NATSQueueGroup)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
	if cfg.Tracing.SampleRatio != 0.25 {
		t.Errorf("expected sample ratio 0.25, got %g", cfg.Tracing.SampleRatio)
	}
}

func TestFromEnvInvalidValues(t *testing.T) {
	t.Setenv("NEXIS_PORT", "abc")
	t.Setenv("NEXIS_REQUIRE_CONSENT", "maybe")
	t.Setenv("NEXIS_CACHE_TTL", "soon")
	t.Setenv("NEXIS_TRACING_SAMPLE_RATIO", "half")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("expected error for invalid values")
	}
	for _, want := range []string{
		`NEXIS_PORT="abc" is not a valid integer`,
		`NEXIS_REQUIRE_CONSENT="maybe" is not a valid boolean`,
		`NEXIS_CACHE_TTL="soon" is not a valid duration`,
		`NEXIS_TRACING_SAMPLE_RATIO="half" is not a valid number`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *domain.Config)
		want   string
	}{
		{"port", func(c *domain.Config) { c.Server.Port = 0 }, "NEXIS_PORT"},
		{"validity", func(c *domain.Config) { c.Assessment.ValidityDays = 0 }, "NEXIS_VALIDITY_DAYS"},
		{"workers", func(c *domain.Config) { c.Assessment.Workers = 0 }, "NEXIS_WORKERS"},
		{"driver", func(c *domain.Config) { c.Repository.Driver = "mysql" }, "NEXIS_DB_DRIVER"},
		{"postgres host", func(c *domain.Config) {
			c.Repository.Driver = "postgres"
			c.Repository.PostgresHost = ""
		}, "NEXIS_POSTGRES_HOST"},
		{"cache", func(c *domain.Config) { c.Cache.Type = "memcached" }, "NEXIS_CACHE_TYPE"},
		{"redis addr", func(c *domain.Config) { c.Cache.Type = "redis" }, "NEXIS_REDIS_ADDR"},
		{"bus", func(c *domain.Config) { c.EventBus.Type = "kafka" }, "NEXIS_BUS_TYPE"},
		{"short secret", func(c *domain.Config) { c.Auth.Secret = "short" }, "NEXIS_AUTH_SECRET"},
		{"rate limit", func(c *domain.Config) { c.RateLimit.DecisionLimit = 0 }, "decision rate limit"},
		{"log level", func(c *domain.Config) { c.Logging.Level = "loud" }, "NEXIS_LOG_LEVEL"},
		{"log format", func(c *domain.Config) { c.Logging.Format = "xml" }, "NEXIS_LOG_FORMAT"},
		{"exporter", func(c *domain.Config) {
			c.Tracing.Enabled = true
			c.Tracing.ExporterType = "jaeger"
		}, "NEXIS_TRACING_EXPORTER"},
		{"sample ratio", func(c *domain.Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRatio = 1.5
		}, "NEXIS_TRACING_SAMPLE_RATIO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %s", err, tt.want)
			}
		})
	}

	t.Run("pro", func(t *testing.T) {
		if err := Validate(domain.ProConfig()); err != nil {
			t.Errorf("pro config should validate: %v", err)
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "NEXIS_PORT=7070\nNEXIS_SQLITE_PATH=/tmp/from-file.db\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	// The real environment wins over the file.
	t.Setenv("NEXIS_PORT", "6060")
	t.Setenv("NEXIS_SQLITE_PATH", "")
	t.Cleanup(func() { os.Unsetenv("NEXIS_SQLITE_PATH") })
	os.Unsetenv("NEXIS_SQLITE_PATH")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 6060 {
		t.Errorf("expected environment port 6060, got %d", cfg.Server.Port)
	}
	if cfg.Repository.SQLitePath != "/tmp/from-file.db" {
		t.Errorf("expected path from file, got %s", cfg.Repository.SQLitePath)
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewLogger(t *testing.T) {
	if NewLogger(domain.LoggingConfig{Level: "debug", Format: "text"}) == nil {
		t.Fatal("expected logger")
	}
	if NewLogger(domain.LoggingConfig{Level: "bogus", Format: "json"}) == nil {
		t.Fatal("expected logger for unknown level")
	}
}

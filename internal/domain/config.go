package domain

import "time"

// Config holds the complete Nexis configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Assessment settings
	Assessment AssessmentConfig `json:"assessment"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Security
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rateLimit"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// AssessmentConfig holds settings of the surrounding service. Scoring
// constants live in the rule catalog and are not configurable here.
type AssessmentConfig struct {
	// ValidityDays is how long an assessment stays current.
	ValidityDays int `json:"validityDays"`

	// RequireConsent rejects scoring for subjects without recorded consent.
	RequireConsent bool `json:"requireConsent"`

	// Workers is the number of concurrent asynchronous assessments.
	Workers int `json:"workers"`

	// AsyncWorker consumes assessment requests from the event bus.
	AsyncWorker bool `json:"asyncWorker"`

	// WorkerTenants limits the worker to these tenants. Empty means all.
	WorkerTenants []string `json:"workerTenants,omitempty"`
}

// Validity returns the validity window as a duration.
func (c AssessmentConfig) Validity() time.Duration {
	return time.Duration(c.ValidityDays) * 24 * time.Hour
}

// AuthConfig holds bearer token settings for lender endpoints.
type AuthConfig struct {
	// Secret signs HS256 tokens. Auth is disabled when empty.
	Secret   string        `json:"-"`
	Issuer   string        `json:"issuer"`
	TokenTTL time.Duration `json:"tokenTtl"`
}

// Enabled reports whether lender endpoints require a token.
func (c AuthConfig) Enabled() bool {
	return c.Secret != ""
}

// RateLimitConfig holds per-key request limits.
type RateLimitConfig struct {
	Enabled bool `json:"enabled"`

	// Scoring requests per subject per window
	AssessmentLimit  int           `json:"assessmentLimit"`
	AssessmentWindow time.Duration `json:"assessmentWindow"`

	// Lender decisions per lender per window
	DecisionLimit  int           `json:"decisionLimit"`
	DecisionWindow time.Duration `json:"decisionWindow"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // otlp, none
	Endpoint     string `json:"endpoint"`
	Insecure     bool   `json:"insecure"`

	// SampleRatio is the share of root traces recorded, 0..1. Child spans
	// follow their parent's decision.
	SampleRatio float64 `json:"sampleRatio"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Assessment: AssessmentConfig{
			ValidityDays:   90,
			RequireConsent: false,
			Workers:        4,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./nexis.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Auth: AuthConfig{
			Issuer:   "nexis",
			TokenTTL: 30 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			AssessmentLimit:  5,
			AssessmentWindow: time.Minute,
			DecisionLimit:    10,
			DecisionWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ServiceName:  "nexis",
			ExporterType: "otlp",
			Endpoint:     "localhost:4318",
			Insecure:     true,
			SampleRatio:  1,
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "nexis",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Assessment.RequireConsent = true
	cfg.Assessment.AsyncWorker = true
	cfg.Tracing.Enabled = true
	return cfg
}

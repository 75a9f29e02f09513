// Package domain defines the core interfaces and types for Nexis.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Behavioral record operations
	SaveRecord(ctx context.Context, tenantID string, rec *SubjectRecord) error
	GetLatestRecord(ctx context.Context, tenantID string, subjectID string) (*SubjectRecord, error)

	// Consent operations
	SaveConsent(ctx context.Context, tenantID string, consent *Consent) error
	GetConsent(ctx context.Context, tenantID string, subjectID string) (*Consent, error)

	// Assessment operations
	SaveAssessment(ctx context.Context, tenantID string, a *Assessment) error
	GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*Assessment, error)
	GetLatestAssessment(ctx context.Context, tenantID string, subjectID string) (*Assessment, error)
	ListAssessments(ctx context.Context, tenantID string, subjectID string, limit int) ([]*Assessment, error)

	// Lender policy operations
	SavePolicy(ctx context.Context, tenantID string, policy *LenderPolicy) error
	GetPolicy(ctx context.Context, tenantID string, policyID string) (*LenderPolicy, error)
	ListPolicies(ctx context.Context, tenantID string) ([]*LenderPolicy, error)
	DeletePolicy(ctx context.Context, tenantID string, policyID string) error

	// Lender decision audit trail
	SaveDecision(ctx context.Context, tenantID string, decision *LenderDecision) error
	ListDecisions(ctx context.Context, tenantID string, subjectID string) ([]*LenderDecision, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

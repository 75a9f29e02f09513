// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/opensource-finance/nexis/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

func requireTenant(tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SaveRecord stores a behavioral record with tenant isolation.
func (r *SQLRepository) SaveRecord(ctx context.Context, tenantID string, rec *domain.SubjectRecord) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if rec.ID == "" || rec.SubjectID == "" {
		return fmt.Errorf("%w: record id and subjectId are required", ErrInvalidInput)
	}

	data, err := json.Marshal(rec.Record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO subject_records (id, tenant_id, subject_id, record, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, tenantID, rec.SubjectID, string(data), createdAt,
	)
	return err
}

// GetLatestRecord retrieves the most recent record of a subject.
func (r *SQLRepository) GetLatestRecord(ctx context.Context, tenantID string, subjectID string) (*domain.SubjectRecord, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, subject_id, record, created_at
		FROM subject_records
		WHERE tenant_id = ? AND subject_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	var rec domain.SubjectRecord
	var data string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, subjectID).Scan(
		&rec.ID, &rec.TenantID, &rec.SubjectID, &data, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(data), &rec.Record); err != nil {
		return nil, fmt.Errorf("failed to parse record %s: %w", rec.ID, err)
	}

	return &rec, nil
}

// SaveConsent records a subject's consent, replacing any earlier answer.
func (r *SQLRepository) SaveConsent(ctx context.Context, tenantID string, consent *domain.Consent) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if consent.SubjectID == "" {
		return fmt.Errorf("%w: subjectId is required", ErrInvalidInput)
	}

	updatedAt := consent.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO consents (tenant_id, subject_id, given, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id, subject_id) DO UPDATE SET
			given = excluded.given,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tenantID, consent.SubjectID, boolInt(consent.Given), updatedAt,
	)
	return err
}

// GetConsent retrieves a subject's consent.
func (r *SQLRepository) GetConsent(ctx context.Context, tenantID string, subjectID string) (*domain.Consent, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT tenant_id, subject_id, given, updated_at
		FROM consents
		WHERE tenant_id = ? AND subject_id = ?
	`

	var c domain.Consent
	var given int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, subjectID).Scan(
		&c.TenantID, &c.SubjectID, &given, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Given = given == 1
	return &c, nil
}

// SaveAssessment stores an assessment with tenant isolation.
func (r *SQLRepository) SaveAssessment(ctx context.Context, tenantID string, a *domain.Assessment) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if a.ID == "" || a.SubjectID == "" {
		return fmt.Errorf("%w: assessment id and subjectId are required", ErrInvalidInput)
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode assessment: %w", err)
	}

	query := `
		INSERT INTO assessments (
			id, tenant_id, subject_id, record_id, trust_score, risk_level,
			scored_at, valid_until, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID, a.SubjectID, a.RecordID, a.TrustScore, string(a.RiskLevel),
		a.ScoredAt, a.ValidUntil, string(payload),
	)
	return err
}

// GetAssessment retrieves an assessment by ID with tenant isolation.
func (r *SQLRepository) GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*domain.Assessment, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT payload FROM assessments
		WHERE tenant_id = ? AND id = ?
	`

	return r.scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, assessmentID), tenantID)
}

// GetLatestAssessment retrieves the most recent assessment of a subject.
func (r *SQLRepository) GetLatestAssessment(ctx context.Context, tenantID string, subjectID string) (*domain.Assessment, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT payload FROM assessments
		WHERE tenant_id = ? AND subject_id = ?
		ORDER BY scored_at DESC
		LIMIT 1
	`

	return r.scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, subjectID), tenantID)
}

func (r *SQLRepository) scanAssessment(row *sql.Row, tenantID string) (*domain.Assessment, error) {
	var payload string
	err := row.Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var a domain.Assessment
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("failed to parse assessment: %w", err)
	}
	a.TenantID = tenantID

	return &a, nil
}

// ListAssessments retrieves a subject's assessments, newest first.
// A non-positive limit returns every assessment.
func (r *SQLRepository) ListAssessments(ctx context.Context, tenantID string, subjectID string, limit int) ([]*domain.Assessment, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT payload FROM assessments
		WHERE tenant_id = ? AND subject_id = ?
		ORDER BY scored_at DESC
	`
	args := []any{tenantID, subjectID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []*domain.Assessment
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var a domain.Assessment
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, fmt.Errorf("failed to parse assessment: %w", err)
		}
		a.TenantID = tenantID
		assessments = append(assessments, &a)
	}

	return assessments, rows.Err()
}

// SavePolicy stores a lender policy with tenant isolation.
func (r *SQLRepository) SavePolicy(ctx context.Context, tenantID string, policy *domain.LenderPolicy) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if policy.ID == "" {
		return fmt.Errorf("%w: policy id is required", ErrInvalidInput)
	}

	bands, err := json.Marshal(policy.Bands)
	if err != nil {
		return fmt.Errorf("failed to encode policy bands: %w", err)
	}

	now := time.Now().UTC()
	createdAt := policy.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO lender_policies (
			id, tenant_id, name, description, version, expression, bands, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			expression = excluded.expression,
			bands = excluded.bands,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		policy.ID, tenantID, policy.Name, policy.Description,
		policy.Version, policy.Expression, string(bands), boolInt(policy.Enabled),
		createdAt, now,
	)
	return err
}

// GetPolicy retrieves a lender policy with tenant isolation.
func (r *SQLRepository) GetPolicy(ctx context.Context, tenantID string, policyID string) (*domain.LenderPolicy, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, enabled, created_at
		FROM lender_policies
		WHERE tenant_id = ? AND id = ?
	`

	p, err := scanPolicy(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, policyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListPolicies retrieves every lender policy of a tenant, enabled or not.
func (r *SQLRepository) ListPolicies(ctx context.Context, tenantID string) ([]*domain.LenderPolicy, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, enabled, created_at
		FROM lender_policies
		WHERE tenant_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*domain.LenderPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}

	return policies, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(s scanner) (*domain.LenderPolicy, error) {
	var p domain.LenderPolicy
	var description sql.NullString
	var bands string
	var enabled int

	if err := s.Scan(
		&p.ID, &p.TenantID, &p.Name, &description,
		&p.Version, &p.Expression, &bands, &enabled, &p.CreatedAt,
	); err != nil {
		return nil, err
	}

	p.Description = description.String
	p.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(bands), &p.Bands); err != nil {
		return nil, fmt.Errorf("failed to parse bands of policy %s: %w", p.ID, err)
	}

	return &p, nil
}

// DeletePolicy removes a lender policy.
func (r *SQLRepository) DeletePolicy(ctx context.Context, tenantID string, policyID string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	query := `DELETE FROM lender_policies WHERE tenant_id = ? AND id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, policyID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveDecision appends a lender decision to the audit trail.
func (r *SQLRepository) SaveDecision(ctx context.Context, tenantID string, d *domain.LenderDecision) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if d.ID == "" || d.SubjectID == "" || d.AssessmentID == "" {
		return fmt.Errorf("%w: decision id, subjectId and assessmentId are required", ErrInvalidInput)
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}

	query := `
		INSERT INTO lender_decisions (
			id, tenant_id, subject_id, lender_id, assessment_id, decision, decided_at, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		d.ID, tenantID, d.SubjectID, d.LenderID, d.AssessmentID,
		string(d.Decision), d.DecidedAt, string(payload),
	)
	return err
}

// ListDecisions retrieves the decisions recorded for a subject, oldest first.
func (r *SQLRepository) ListDecisions(ctx context.Context, tenantID string, subjectID string) ([]*domain.LenderDecision, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT payload FROM lender_decisions
		WHERE tenant_id = ? AND subject_id = ?
		ORDER BY decided_at
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*domain.LenderDecision
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var d domain.LenderDecision
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("failed to parse decision: %w", err)
		}
		d.TenantID = tenantID
		decisions = append(decisions, &d)
	}

	return decisions, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	result := make([]byte, 0, len(query)+8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = strconv.AppendInt(result, int64(n), 10)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

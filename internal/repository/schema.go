package repository

// Schema definitions for Nexis database.
// Compatible with both SQLite and PostgreSQL.

const schemaRecords = `
CREATE TABLE IF NOT EXISTS subject_records (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    subject_id TEXT NOT NULL,
    record TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_subject_records_subject ON subject_records(tenant_id, subject_id, created_at);
`

const schemaConsents = `
CREATE TABLE IF NOT EXISTS consents (
    tenant_id TEXT NOT NULL,
    subject_id TEXT NOT NULL,
    given INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, subject_id)
);
`

// schemaAssessments keeps the full assessment as JSON in payload.
// The other columns exist for lookups and ordering.
const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    subject_id TEXT NOT NULL,
    record_id TEXT,
    trust_score INTEGER NOT NULL,
    risk_level TEXT NOT NULL,
    scored_at TIMESTAMP NOT NULL,
    valid_until TIMESTAMP NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_tenant ON assessments(tenant_id);
CREATE INDEX IF NOT EXISTS idx_assessments_subject ON assessments(tenant_id, subject_id, scored_at);
CREATE INDEX IF NOT EXISTS idx_assessments_risk ON assessments(tenant_id, risk_level);
`

const schemaPolicies = `
CREATE TABLE IF NOT EXISTS lender_policies (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_lender_policies_tenant ON lender_policies(tenant_id);
CREATE INDEX IF NOT EXISTS idx_lender_policies_enabled ON lender_policies(tenant_id, enabled);
`

// schemaDecisions is append-only: decisions are never updated or deleted.
const schemaDecisions = `
CREATE TABLE IF NOT EXISTS lender_decisions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    subject_id TEXT NOT NULL,
    lender_id TEXT NOT NULL,
    assessment_id TEXT NOT NULL,
    decision TEXT NOT NULL,
    decided_at TIMESTAMP NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lender_decisions_subject ON lender_decisions(tenant_id, subject_id, decided_at);
CREATE INDEX IF NOT EXISTS idx_lender_decisions_lender ON lender_decisions(tenant_id, lender_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRecords,
		schemaConsents,
		schemaAssessments,
		schemaPolicies,
		schemaDecisions,
	}
}

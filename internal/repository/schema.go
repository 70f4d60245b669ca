package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaProviders = `
CREATE TABLE IF NOT EXISTS providers (
    npi TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT,
    taxonomy TEXT,
    excluded INTEGER NOT NULL DEFAULT 0,
    exclusion_date TIMESTAMP,
    watchlist INTEGER NOT NULL DEFAULT 0,
    avg_monthly_claims REAL NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, npi)
);
`

const schemaEligibility = `
CREATE TABLE IF NOT EXISTS eligibility (
    member_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    status TEXT NOT NULL,
    plan_id TEXT NOT NULL,
    effective_date TIMESTAMP NOT NULL,
    termination_date TIMESTAMP,
    pcp_npi TEXT,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, member_id)
);
`

const schemaNcciEdits = `
CREATE TABLE IF NOT EXISTS ncci_edits (
    tenant_id TEXT NOT NULL,
    column1_code TEXT NOT NULL,
    column2_code TEXT NOT NULL,
    modifier_allowed INTEGER NOT NULL DEFAULT 0,
    effective_date TIMESTAMP NOT NULL,
    citation TEXT,
    PRIMARY KEY (tenant_id, column1_code, column2_code, effective_date)
);

CREATE INDEX IF NOT EXISTS idx_ncci_col1 ON ncci_edits(tenant_id, column1_code);
CREATE INDEX IF NOT EXISTS idx_ncci_col2 ON ncci_edits(tenant_id, column2_code);
`

const schemaMueLimits = `
CREATE TABLE IF NOT EXISTS mue_limits (
    tenant_id TEXT NOT NULL,
    procedure_code TEXT NOT NULL,
    max_units REAL NOT NULL,
    effective_date TIMESTAMP NOT NULL,
    rationale TEXT,
    PRIMARY KEY (tenant_id, procedure_code)
);
`

const schemaBenefitLimits = `
CREATE TABLE IF NOT EXISTS benefit_limits (
    tenant_id TEXT NOT NULL,
    plan_id TEXT NOT NULL,
    procedure_code TEXT NOT NULL,
    max_units REAL NOT NULL DEFAULT 0,
    max_amount REAL NOT NULL DEFAULT 0,
    period TEXT NOT NULL DEFAULT 'year',
    PRIMARY KEY (tenant_id, plan_id, procedure_code)
);
`

const schemaPriorAuths = `
CREATE TABLE IF NOT EXISTS prior_auths (
    auth_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    procedure_code TEXT NOT NULL,
    status TEXT NOT NULL,
    approved_units REAL NOT NULL DEFAULT 0,
    approved_amount REAL NOT NULL DEFAULT 0,
    expiration_date TIMESTAMP,
    PRIMARY KEY (tenant_id, auth_id)
);

CREATE INDEX IF NOT EXISTS idx_prior_auths_member ON prior_auths(tenant_id, member_id);
`

const schemaServiceHistory = `
CREATE TABLE IF NOT EXISTS service_history (
    tenant_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    procedure_code TEXT NOT NULL,
    date_of_service TIMESTAMP NOT NULL,
    provider_npi TEXT NOT NULL,
    units REAL NOT NULL DEFAULT 0,
    amount REAL NOT NULL DEFAULT 0,
    claim_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_history_member ON service_history(tenant_id, member_id, date_of_service);
CREATE INDEX IF NOT EXISTS idx_history_code ON service_history(tenant_id, member_id, procedure_code);
`

const schemaAnalyses = `
CREATE TABLE IF NOT EXISTS analyses (
    job_id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    fraud_score REAL NOT NULL,
    decision_mode TEXT NOT NULL,
    rule_hits TEXT NOT NULL,
    roi_estimate REAL,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_tenant ON analyses(tenant_id);
CREATE INDEX IF NOT EXISTS idx_analyses_claim ON analyses(tenant_id, claim_id);
CREATE INDEX IF NOT EXISTS idx_analyses_decision ON analyses(tenant_id, decision_mode);
`

const schemaPolicyConfigs = `
CREATE TABLE IF NOT EXISTS policy_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    flag TEXT,
    weight REAL NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_policy_configs_enabled ON policy_configs(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaProviders,
		schemaEligibility,
		schemaNcciEdits,
		schemaMueLimits,
		schemaBenefitLimits,
		schemaPriorAuths,
		schemaServiceHistory,
		schemaAnalyses,
		schemaPolicyConfigs,
	}
}

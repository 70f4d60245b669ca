// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// ReferenceStore is the read API over materialized reference data, plus
// persistence for analyses and policy configurations.
//
// Every lookup is batched per reference type: one call covers all codes
// or NPIs a claim references. "Not found" is reported distinctly from
// errors - map lookups simply lack the key, single-record lookups return
// ErrNotFound from the implementation.
//
// All methods require tenantID for strict multi-tenancy isolation.
type ReferenceStore interface {
	// Reference lookups (read-only to the engine)
	GetProviders(ctx context.Context, tenantID string, npis []string) (map[string]*ProviderRecord, error)
	GetEligibility(ctx context.Context, tenantID string, memberID string) (*EligibilityRecord, error)
	GetNcciPairs(ctx context.Context, tenantID string, codes []string) ([]NcciEditPair, error)
	GetMueLimits(ctx context.Context, tenantID string, codes []string) (map[string]*MueLimit, error)
	GetBenefitLimits(ctx context.Context, tenantID string, memberID string, codes []string) (map[string]*BenefitLimit, error)
	GetPriorAuths(ctx context.Context, tenantID string, memberID string) ([]PriorAuthorization, error)
	GetServiceHistory(ctx context.Context, tenantID string, memberID string, since time.Time) ([]ServiceHistoryEntry, error)

	// Reference upserts, used by the upstream connector framework via
	// the admin endpoints. The engine itself never writes these tables.
	UpsertProviders(ctx context.Context, tenantID string, recs []ProviderRecord) error
	UpsertEligibility(ctx context.Context, tenantID string, recs []EligibilityRecord) error
	UpsertNcciPairs(ctx context.Context, tenantID string, pairs []NcciEditPair) error
	UpsertMueLimits(ctx context.Context, tenantID string, limits []MueLimit) error
	UpsertBenefitLimits(ctx context.Context, tenantID string, limits []BenefitLimit) error
	UpsertPriorAuths(ctx context.Context, tenantID string, auths []PriorAuthorization) error
	AppendServiceHistory(ctx context.Context, tenantID string, entries []ServiceHistoryEntry) error

	// Analysis results
	SaveAnalysis(ctx context.Context, tenantID string, res *AnalysisResult) error
	GetAnalysis(ctx context.Context, tenantID string, jobID string) (*AnalysisResult, error)
	ListAnalysesByClaim(ctx context.Context, tenantID string, claimID string) ([]*AnalysisResult, error)

	// Policy rule configurations
	SavePolicyConfig(ctx context.Context, tenantID string, cfg *PolicyConfig) error
	GetPolicyConfig(ctx context.Context, tenantID string, policyID string) (*PolicyConfig, error)
	ListPolicyConfigs(ctx context.Context, tenantID string) ([]*PolicyConfig, error)
	DeletePolicyConfig(ctx context.Context, tenantID string, policyID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for store initialization.
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

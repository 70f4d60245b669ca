// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-health/kestrel/internal/domain"
)

var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = domain.ErrInvalidInput
)

// SQLStore implements domain.ReferenceStore using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// New creates a new store based on configuration.
func New(cfg domain.RepositoryConfig) (domain.ReferenceStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := &SQLStore{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// GetProviders retrieves provider records by NPI in one round trip.
// NPIs without a record are simply absent from the returned map.
func (s *SQLStore) GetProviders(ctx context.Context, tenantID string, npis []string) (map[string]*domain.ProviderRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	out := make(map[string]*domain.ProviderRecord, len(npis))
	if len(npis) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT npi, name, taxonomy, excluded, exclusion_date, watchlist, avg_monthly_claims
		FROM providers
		WHERE tenant_id = ? AND npi IN (%s)
	`, placeholders(len(npis)))

	args := append([]any{tenantID}, toAnys(npis)...)
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rec domain.ProviderRecord
		var name, taxonomy sql.NullString
		var excluded, watchlist int
		var exclusionDate sql.NullTime

		if err := rows.Scan(&rec.NPI, &name, &taxonomy, &excluded, &exclusionDate, &watchlist, &rec.AvgMonthlyClaims); err != nil {
			return nil, err
		}
		rec.Name = name.String
		rec.Taxonomy = taxonomy.String
		rec.Excluded = excluded != 0
		rec.Watchlist = watchlist != 0
		if exclusionDate.Valid {
			t := exclusionDate.Time
			rec.ExclusionDate = &t
		}
		out[rec.NPI] = &rec
	}
	return out, rows.Err()
}

// GetEligibility retrieves the member's eligibility record.
// Returns ErrNotFound when the member has no record on file.
func (s *SQLStore) GetEligibility(ctx context.Context, tenantID string, memberID string) (*domain.EligibilityRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT member_id, status, plan_id, effective_date, termination_date, pcp_npi
		FROM eligibility
		WHERE tenant_id = ? AND member_id = ?
	`

	var rec domain.EligibilityRecord
	var termination sql.NullTime
	var pcp sql.NullString

	err := s.db.QueryRowContext(ctx, s.rebind(query), tenantID, memberID).Scan(
		&rec.MemberID, &rec.Status, &rec.PlanID, &rec.EffectiveDate, &termination, &pcp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if termination.Valid {
		t := termination.Time
		rec.TerminationDate = &t
	}
	rec.PCPNPI = pcp.String
	return &rec, nil
}

// GetNcciPairs retrieves every PTP edit whose two codes both appear on
// the claim.
func (s *SQLStore) GetNcciPairs(ctx context.Context, tenantID string, codes []string) ([]domain.NcciEditPair, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if len(codes) < 2 {
		return nil, nil
	}

	ph := placeholders(len(codes))
	query := fmt.Sprintf(`
		SELECT column1_code, column2_code, modifier_allowed, effective_date, citation
		FROM ncci_edits
		WHERE tenant_id = ? AND column1_code IN (%s) AND column2_code IN (%s)
		ORDER BY column1_code, column2_code, effective_date
	`, ph, ph)

	args := append([]any{tenantID}, toAnys(codes)...)
	args = append(args, toAnys(codes)...)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []domain.NcciEditPair
	for rows.Next() {
		var p domain.NcciEditPair
		var modAllowed int
		var citation sql.NullString
		if err := rows.Scan(&p.Column1Code, &p.Column2Code, &modAllowed, &p.EffectiveDate, &citation); err != nil {
			return nil, err
		}
		p.ModifierAllowed = modAllowed != 0
		p.Citation = citation.String
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// GetMueLimits retrieves unit ceilings for the given procedure codes.
func (s *SQLStore) GetMueLimits(ctx context.Context, tenantID string, codes []string) (map[string]*domain.MueLimit, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	out := make(map[string]*domain.MueLimit, len(codes))
	if len(codes) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT procedure_code, max_units, effective_date, rationale
		FROM mue_limits
		WHERE tenant_id = ? AND procedure_code IN (%s)
	`, placeholders(len(codes)))

	args := append([]any{tenantID}, toAnys(codes)...)
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var lim domain.MueLimit
		var rationale sql.NullString
		if err := rows.Scan(&lim.ProcedureCode, &lim.MaxUnits, &lim.EffectiveDate, &rationale); err != nil {
			return nil, err
		}
		lim.Rationale = rationale.String
		out[lim.ProcedureCode] = &lim
	}
	return out, rows.Err()
}

// GetBenefitLimits retrieves benefit ceilings for the member's plan,
// resolving the plan through the eligibility table in the same query.
func (s *SQLStore) GetBenefitLimits(ctx context.Context, tenantID string, memberID string, codes []string) (map[string]*domain.BenefitLimit, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	out := make(map[string]*domain.BenefitLimit, len(codes))
	if len(codes) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT b.plan_id, b.procedure_code, b.max_units, b.max_amount, b.period
		FROM benefit_limits b
		JOIN eligibility e ON e.tenant_id = b.tenant_id AND e.plan_id = b.plan_id
		WHERE b.tenant_id = ? AND e.member_id = ? AND b.procedure_code IN (%s)
	`, placeholders(len(codes)))

	args := append([]any{tenantID, memberID}, toAnys(codes)...)
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var lim domain.BenefitLimit
		if err := rows.Scan(&lim.PlanID, &lim.ProcedureCode, &lim.MaxUnits, &lim.MaxAmount, &lim.Period); err != nil {
			return nil, err
		}
		out[lim.ProcedureCode] = &lim
	}
	return out, rows.Err()
}

// GetPriorAuths retrieves all authorizations for the member.
func (s *SQLStore) GetPriorAuths(ctx context.Context, tenantID string, memberID string) ([]domain.PriorAuthorization, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT auth_id, member_id, procedure_code, status, approved_units, approved_amount, expiration_date
		FROM prior_auths
		WHERE tenant_id = ? AND member_id = ?
		ORDER BY auth_id
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), tenantID, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auths []domain.PriorAuthorization
	for rows.Next() {
		var a domain.PriorAuthorization
		var expiration sql.NullTime
		if err := rows.Scan(&a.AuthID, &a.MemberID, &a.ProcedureCode, &a.Status, &a.ApprovedUnits, &a.ApprovedAmount, &expiration); err != nil {
			return nil, err
		}
		if expiration.Valid {
			t := expiration.Time
			a.ExpirationDate = &t
		}
		auths = append(auths, a)
	}
	return auths, rows.Err()
}

// GetServiceHistory retrieves the member's service entries since the
// given date.
func (s *SQLStore) GetServiceHistory(ctx context.Context, tenantID string, memberID string, since time.Time) ([]domain.ServiceHistoryEntry, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT member_id, procedure_code, date_of_service, provider_npi, units, amount, claim_id
		FROM service_history
		WHERE tenant_id = ? AND member_id = ? AND date_of_service >= ?
		ORDER BY date_of_service, procedure_code
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), tenantID, memberID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ServiceHistoryEntry
	for rows.Next() {
		var e domain.ServiceHistoryEntry
		var claimID sql.NullString
		if err := rows.Scan(&e.MemberID, &e.ProcedureCode, &e.DateOfService, &e.ProviderNPI, &e.Units, &e.Amount, &claimID); err != nil {
			return nil, err
		}
		e.ClaimID = claimID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertProviders writes provider records from the upstream registry.
func (s *SQLStore) UpsertProviders(ctx context.Context, tenantID string, recs []domain.ProviderRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO providers (npi, tenant_id, name, taxonomy, excluded, exclusion_date, watchlist, avg_monthly_claims, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, npi) DO UPDATE SET
			name = excluded.name,
			taxonomy = excluded.taxonomy,
			excluded = excluded.excluded,
			exclusion_date = excluded.exclusion_date,
			watchlist = excluded.watchlist,
			avg_monthly_claims = excluded.avg_monthly_claims,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	for _, rec := range recs {
		_, err := s.db.ExecContext(ctx, s.rebind(query),
			rec.NPI, tenantID, rec.Name, rec.Taxonomy,
			boolInt(rec.Excluded), nullTime(rec.ExclusionDate),
			boolInt(rec.Watchlist), rec.AvgMonthlyClaims, now,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpsertEligibility writes eligibility records.
func (s *SQLStore) UpsertEligibility(ctx context.Context, tenantID string, recs []domain.EligibilityRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO eligibility (member_id, tenant_id, status, plan_id, effective_date, termination_date, pcp_npi, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, member_id) DO UPDATE SET
			status = excluded.status,
			plan_id = excluded.plan_id,
			effective_date = excluded.effective_date,
			termination_date = excluded.termination_date,
			pcp_npi = excluded.pcp_npi,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	for _, rec := range recs {
		_, err := s.db.ExecContext(ctx, s.rebind(query),
			rec.MemberID, tenantID, rec.Status, rec.PlanID,
			rec.EffectiveDate, nullTime(rec.TerminationDate), rec.PCPNPI, now,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpsertNcciPairs writes PTP edits.
func (s *SQLStore) UpsertNcciPairs(ctx context.Context, tenantID string, pairs []domain.NcciEditPair) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO ncci_edits (tenant_id, column1_code, column2_code, modifier_allowed, effective_date, citation)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, column1_code, column2_code, effective_date) DO UPDATE SET
			modifier_allowed = excluded.modifier_allowed,
			citation = excluded.citation
	`

	for _, p := range pairs {
		_, err := s.db.ExecContext(ctx, s.rebind(query),
			tenantID, p.Column1Code, p.Column2Code, boolInt(p.ModifierAllowed), p.EffectiveDate, p.Citation,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpsertMueLimits writes per-code unit ceilings.
func (s *SQLStore) UpsertMueLimits(ctx context.Context, tenantID string, limits []domain.MueLimit) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO mue_limits (tenant_id, procedure_code, max_units, effective_date, rationale)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, procedure_code) DO UPDATE SET
			max_units = excluded.max_units,
			effective_date = excluded.effective_date,
			rationale = excluded.rationale
	`

	for _, lim := range limits {
		_, err := s.db.ExecContext(ctx, s.rebind(query),
			tenantID, lim.ProcedureCode, lim.MaxUnits, lim.EffectiveDate, lim.Rationale,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpsertBenefitLimits writes plan benefit ceilings.
func (s *SQLStore) UpsertBenefitLimits(ctx context.Context, tenantID string, limits []domain.BenefitLimit) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO benefit_limits (tenant_id, plan_id, procedure_code, max_units, max_amount, period)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, plan_id, procedure_code) DO UPDATE SET
			max_units = excluded.max_units,
			max_amount = excluded.max_amount,
			period = excluded.period
	`

	for _, lim := range limits {
		period := lim.Period
		if period == "" {
			period = "year"
		}
		_, err := s.db.ExecContext(ctx, s.rebind(query),
			tenantID, lim.PlanID, lim.ProcedureCode, lim.MaxUnits, lim.MaxAmount, period,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpsertPriorAuths writes authorizations.
func (s *SQLStore) UpsertPriorAuths(ctx context.Context, tenantID string, auths []domain.PriorAuthorization) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO prior_auths (auth_id, tenant_id, member_id, procedure_code, status, approved_units, approved_amount, expiration_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, auth_id) DO UPDATE SET
			member_id = excluded.member_id,
			procedure_code = excluded.procedure_code,
			status = excluded.status,
			approved_units = excluded.approved_units,
			approved_amount = excluded.approved_amount,
			expiration_date = excluded.expiration_date
	`

	for _, a := range auths {
		_, err := s.db.ExecContext(ctx, s.rebind(query),
			a.AuthID, tenantID, a.MemberID, a.ProcedureCode, a.Status,
			a.ApprovedUnits, a.ApprovedAmount, nullTime(a.ExpirationDate),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// AppendServiceHistory appends service entries. History is append-only.
func (s *SQLStore) AppendServiceHistory(ctx context.Context, tenantID string, entries []domain.ServiceHistoryEntry) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO service_history (tenant_id, member_id, procedure_code, date_of_service, provider_npi, units, amount, claim_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, e := range entries {
		_, err := s.db.ExecContext(ctx, s.rebind(query),
			tenantID, e.MemberID, e.ProcedureCode, e.DateOfService, e.ProviderNPI, e.Units, e.Amount, e.ClaimID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveAnalysis persists an analysis result.
func (s *SQLStore) SaveAnalysis(ctx context.Context, tenantID string, res *domain.AnalysisResult) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	hits, err := json.Marshal(res.RuleHits)
	if err != nil {
		return fmt.Errorf("failed to marshal rule hits: %w", err)
	}
	metadata, err := json.Marshal(res.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO analyses (job_id, tenant_id, claim_id, fraud_score, decision_mode, rule_hits, roi_estimate, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var roi any
	if res.ROIEstimate != nil {
		roi = *res.ROIEstimate
	}

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		res.JobID, tenantID, res.ClaimID, res.FraudScore, string(res.DecisionMode),
		string(hits), roi, res.Timestamp, string(metadata),
	)
	return err
}

// GetAnalysis retrieves an analysis by job id.
func (s *SQLStore) GetAnalysis(ctx context.Context, tenantID string, jobID string) (*domain.AnalysisResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT job_id, tenant_id, claim_id, fraud_score, decision_mode, rule_hits, roi_estimate, timestamp, metadata
		FROM analyses
		WHERE tenant_id = ? AND job_id = ?
	`

	res, err := s.scanAnalysis(s.db.QueryRowContext(ctx, s.rebind(query), tenantID, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// ListAnalysesByClaim retrieves every analysis run for a claim, newest
// first.
func (s *SQLStore) ListAnalysesByClaim(ctx context.Context, tenantID string, claimID string) ([]*domain.AnalysisResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT job_id, tenant_id, claim_id, fraud_score, decision_mode, rule_hits, roi_estimate, timestamp, metadata
		FROM analyses
		WHERE tenant_id = ? AND claim_id = ?
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), tenantID, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AnalysisResult
	for rows.Next() {
		res, err := s.scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scanAnalysis(row rowScanner) (*domain.AnalysisResult, error) {
	var res domain.AnalysisResult
	var mode, hits, metadata string
	var roi sql.NullFloat64

	err := row.Scan(&res.JobID, &res.TenantID, &res.ClaimID, &res.FraudScore, &mode, &hits, &roi, &res.Timestamp, &metadata)
	if err != nil {
		return nil, err
	}

	res.DecisionMode = domain.DecisionMode(mode)
	if roi.Valid {
		v := roi.Float64
		res.ROIEstimate = &v
	}
	if err := json.Unmarshal([]byte(hits), &res.RuleHits); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule hits: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &res.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	res.NcciFlags, res.CoverageFlags, res.ProviderFlags = domain.FlagsByType(res.RuleHits)
	return &res, nil
}

// SavePolicyConfig persists a screening policy configuration.
func (s *SQLStore) SavePolicyConfig(ctx context.Context, tenantID string, cfg *domain.PolicyConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	bands, err := json.Marshal(cfg.Bands)
	if err != nil {
		return fmt.Errorf("failed to marshal bands: %w", err)
	}

	query := `
		INSERT INTO policy_configs (id, tenant_id, name, description, version, expression, bands, flag, weight, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			expression = excluded.expression,
			bands = excluded.bands,
			flag = excluded.flag,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, s.rebind(query),
		cfg.ID, tenantID, cfg.Name, cfg.Description, cfg.Version,
		cfg.Expression, string(bands), cfg.Flag, cfg.Weight, boolInt(cfg.Enabled), now, now,
	)
	return err
}

// GetPolicyConfig retrieves a policy by id.
func (s *SQLStore) GetPolicyConfig(ctx context.Context, tenantID string, policyID string) (*domain.PolicyConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, flag, weight, enabled
		FROM policy_configs
		WHERE tenant_id = ? AND id = ?
	`

	cfg, err := scanPolicy(s.db.QueryRowContext(ctx, s.rebind(query), tenantID, policyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return cfg, err
}

// ListPolicyConfigs retrieves every policy for a tenant.
func (s *SQLStore) ListPolicyConfigs(ctx context.Context, tenantID string) ([]*domain.PolicyConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, flag, weight, enabled
		FROM policy_configs
		WHERE tenant_id = ?
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PolicyConfig
	for rows.Next() {
		cfg, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// DeletePolicyConfig removes a policy.
func (s *SQLStore) DeletePolicyConfig(ctx context.Context, tenantID string, policyID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `DELETE FROM policy_configs WHERE tenant_id = ? AND id = ?`
	result, err := s.db.ExecContext(ctx, s.rebind(query), tenantID, policyID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPolicy(row rowScanner) (*domain.PolicyConfig, error) {
	var cfg domain.PolicyConfig
	var description, flag sql.NullString
	var bands string
	var enabled int

	err := row.Scan(&cfg.ID, &cfg.TenantID, &cfg.Name, &description, &cfg.Version, &cfg.Expression, &bands, &flag, &cfg.Weight, &enabled)
	if err != nil {
		return nil, err
	}
	cfg.Description = description.String
	cfg.Flag = flag.String
	cfg.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(bands), &cfg.Bands); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bands: %w", err)
	}
	return &cfg, nil
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

// placeholders returns "?, ?, ..." for an IN clause of n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toAnys(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

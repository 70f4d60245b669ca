package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/opensource-health/kestrel/internal/domain"
)

// Reference-data upload handlers. Payers load provider registries, edit
// tables, and coverage records in bulk; the engine only ever reads them.

func (h *Handler) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "store not available",
		})
		return false
	}
	return true
}

// UpsertProviders handles PUT /reference/providers.
func (h *Handler) UpsertProviders(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	tenantID := GetTenantID(r.Context())

	var recs []domain.ProviderRecord
	if err := json.NewDecoder(r.Body).Decode(&recs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	for i, rec := range recs {
		if rec.NPI == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "npi is required",
				"index": i,
			})
			return
		}
	}

	if err := h.store.UpsertProviders(r.Context(), tenantID, recs); err != nil {
		slog.Error("failed to upsert providers", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save providers",
		})
		return
	}

	// Cached provider records are now stale.
	if h.cache != nil {
		for _, rec := range recs {
			_ = h.cache.Delete(r.Context(), tenantID, "provider:"+rec.NPI)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"upserted": len(recs)})
}

// UpsertEligibility handles PUT /reference/eligibility.
func (h *Handler) UpsertEligibility(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	tenantID := GetTenantID(r.Context())

	var recs []domain.EligibilityRecord
	if err := json.NewDecoder(r.Body).Decode(&recs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	for i, rec := range recs {
		if rec.MemberID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "memberId is required",
				"index": i,
			})
			return
		}
	}

	if err := h.store.UpsertEligibility(r.Context(), tenantID, recs); err != nil {
		slog.Error("failed to upsert eligibility", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save eligibility",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"upserted": len(recs)})
}

// UpsertNcciEdits handles PUT /reference/ncci-edits.
func (h *Handler) UpsertNcciEdits(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	tenantID := GetTenantID(r.Context())

	var pairs []domain.NcciEditPair
	if err := json.NewDecoder(r.Body).Decode(&pairs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	for i, p := range pairs {
		if p.Column1Code == "" || p.Column2Code == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "column1Code and column2Code are required",
				"index": i,
			})
			return
		}
	}

	if err := h.store.UpsertNcciPairs(r.Context(), tenantID, pairs); err != nil {
		slog.Error("failed to upsert ncci edits", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save ncci edits",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"upserted": len(pairs)})
}

// UpsertMueLimits handles PUT /reference/mue-limits.
func (h *Handler) UpsertMueLimits(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	tenantID := GetTenantID(r.Context())

	var limits []domain.MueLimit
	if err := json.NewDecoder(r.Body).Decode(&limits); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	for i, lim := range limits {
		if lim.ProcedureCode == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "procedureCode is required",
				"index": i,
			})
			return
		}
	}

	if err := h.store.UpsertMueLimits(r.Context(), tenantID, limits); err != nil {
		slog.Error("failed to upsert mue limits", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save mue limits",
		})
		return
	}

	if h.cache != nil {
		for _, lim := range limits {
			_ = h.cache.Delete(r.Context(), tenantID, "mue:"+lim.ProcedureCode)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"upserted": len(limits)})
}

// UpsertBenefitLimits handles PUT /reference/benefit-limits.
func (h *Handler) UpsertBenefitLimits(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	tenantID := GetTenantID(r.Context())

	var limits []domain.BenefitLimit
	if err := json.NewDecoder(r.Body).Decode(&limits); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	for i, lim := range limits {
		if lim.PlanID == "" || lim.ProcedureCode == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "planId and procedureCode are required",
				"index": i,
			})
			return
		}
	}

	if err := h.store.UpsertBenefitLimits(r.Context(), tenantID, limits); err != nil {
		slog.Error("failed to upsert benefit limits", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save benefit limits",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"upserted": len(limits)})
}

// UpsertPriorAuths handles PUT /reference/prior-auths.
func (h *Handler) UpsertPriorAuths(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	tenantID := GetTenantID(r.Context())

	var auths []domain.PriorAuthorization
	if err := json.NewDecoder(r.Body).Decode(&auths); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	for i, a := range auths {
		if a.AuthID == "" || a.MemberID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "authId and memberId are required",
				"index": i,
			})
			return
		}
	}

	if err := h.store.UpsertPriorAuths(r.Context(), tenantID, auths); err != nil {
		slog.Error("failed to upsert prior auths", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save prior auths",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"upserted": len(auths)})
}

// AppendServiceHistory handles POST /reference/service-history.
// History is append-only; paid claims accumulate, they never change.
func (h *Handler) AppendServiceHistory(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	tenantID := GetTenantID(r.Context())

	var entries []domain.ServiceHistoryEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	for i, e := range entries {
		if e.MemberID == "" || e.ProcedureCode == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "memberId and procedureCode are required",
				"index": i,
			})
			return
		}
	}

	if err := h.store.AppendServiceHistory(r.Context(), tenantID, entries); err != nil {
		slog.Error("failed to append service history", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save service history",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"appended": len(entries)})
}

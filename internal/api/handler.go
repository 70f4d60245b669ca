package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-health/kestrel/internal/analysis"
	"github.com/opensource-health/kestrel/internal/domain"
	"github.com/opensource-health/kestrel/internal/normalize"
	"github.com/opensource-health/kestrel/internal/policy"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	store    domain.ReferenceStore
	cache    domain.Cache
	bus      domain.EventBus
	analyzer *analysis.Analyzer
	policies *policy.Engine
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(store domain.ReferenceStore, cache domain.Cache, bus domain.EventBus, analyzer *analysis.Analyzer, policies *policy.Engine, version string) *Handler {
	return &Handler{
		store:    store,
		cache:    cache,
		bus:      bus,
		analyzer: analyzer,
		policies: policies,
		version:  version,
	}
}

// resubmitWindow bounds how long repeated analyses of the same claim id
// are counted as resubmissions.
const resubmitWindow = 24 * time.Hour

// Analyze handles POST /analyze: synchronous claim analysis.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req domain.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result, err := h.analyzer.Analyze(ctx, tenantID, &req)
	if err != nil {
		var verr *normalize.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":      "claim failed validation",
				"violations": verr.Violations,
			})
			return
		}
		slog.Error("claim analysis failed",
			"claim_id", req.ClaimID,
			"tenant_id", tenantID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "claim analysis failed",
		})
		return
	}

	// Track repeat analyses of the same claim id when a counter backend
	// is available.
	if h.cache != nil {
		if n, err := h.cache.IncrementCounter(ctx, tenantID, "resubmit:"+result.ClaimID, resubmitWindow); err == nil && n > 1 {
			result.Metadata.Resubmissions = n - 1
		}
	}

	if h.store != nil {
		if err := h.store.SaveAnalysis(ctx, tenantID, result); err != nil {
			slog.Error("failed to save analysis",
				"job_id", result.JobID,
				"claim_id", result.ClaimID,
				"error", err,
			)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(result)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, payload); err != nil {
			slog.Error("failed to publish analysis result",
				"job_id", result.JobID,
				"error", err,
			)
		}
		if result.DecisionMode == domain.DecisionSoftHold {
			_ = h.bus.Publish(ctx, tenantID, domain.TopicClaimHold, payload)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// SubmitClaim handles POST /claims: async submission via the event bus.
// The claim is validated first so the caller gets violations back
// synchronously, then queued for the worker.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req domain.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if _, err := normalize.Claim(tenantID, &req); err != nil {
		var verr *normalize.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":      "claim failed validation",
				"violations": verr.Violations,
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	msg := map[string]any{
		"tenantId": tenantID,
		"traceId":  traceID,
		"claim":    &req,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode claim",
		})
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicClaimSubmitted, payload); err != nil {
		slog.Error("failed to publish claim",
			"claim_id", req.ClaimID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue claim",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"claimId": req.ClaimID,
		"status":  "queued",
		"traceId": traceID,
	})
}

// GetAnalysis retrieves an analysis by job id.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	jobID := chi.URLParam(r, "id")

	if jobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "analysis id is required",
		})
		return
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "store not available",
		})
		return
	}

	res, err := h.store.GetAnalysis(ctx, tenantID, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "analysis not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get analysis", "id", jobID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load analysis",
		})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ListClaimAnalyses retrieves every analysis run for a claim, newest first.
func (h *Handler) ListClaimAnalyses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	claimID := chi.URLParam(r, "claimID")

	if claimID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "claim id is required",
		})
		return
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "store not available",
		})
		return
	}

	analyses, err := h.store.ListAnalysesByClaim(ctx, tenantID, claimID)
	if err != nil {
		slog.Error("failed to list analyses", "claim_id", claimID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list analyses",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"claimId":  claimID,
		"analyses": analyses,
		"count":    len(analyses),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GlobalTenantID is used for policies that apply to all tenants.
const GlobalTenantID = "*"

// ListPolicies returns all loaded screening policies.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	if h.policies == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "policy engine not available",
		})
		return
	}

	loaded := h.policies.Loaded()

	writeJSON(w, http.StatusOK, map[string]any{
		"policies": loaded,
		"count":    len(loaded),
		"source":   "database",
	})
}

// GetPolicy retrieves a policy by ID from the loaded engine policies.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "id")

	if policyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy id is required",
		})
		return
	}

	if h.policies == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "policy engine not available",
		})
		return
	}

	for _, p := range h.policies.Loaded() {
		if p.ID == policyID {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "policy not found",
	})
}

// CreatePolicyRequest is the request body for creating a policy.
type CreatePolicyRequest struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Expression  string              `json:"expression"`
	Bands       []domain.PolicyBand `json:"bands"`
	Flag        string              `json:"flag,omitempty"`
	Weight      float64             `json:"weight"`
	Enabled     bool                `json:"enabled"`
}

// CreatePolicy creates a new screening policy and saves it to the database.
// Policies are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /policies/reload to hot-reload into the engine.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.policies == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "policy engine not available",
		})
		return
	}

	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	cfg := &domain.PolicyConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Bands:       req.Bands,
		Flag:        req.Flag,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.policies.Load(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.store != nil {
		if err := h.store.SavePolicyConfig(ctx, GlobalTenantID, cfg); err != nil {
			slog.Error("failed to save policy config", "id", cfg.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save policy",
			})
			return
		}
	}

	slog.Info("policy created", "id", cfg.ID, "name", cfg.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"policy":  cfg,
		"message": "Policy created. Call POST /policies/reload to apply changes.",
	})
}

// UpdatePolicy updates an existing policy.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID := chi.URLParam(r, "id")

	if policyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy id is required",
		})
		return
	}

	if h.policies == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "policy engine not available",
		})
		return
	}

	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and expression are required",
		})
		return
	}

	cfg := &domain.PolicyConfig{
		ID:          policyID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Bands:       req.Bands,
		Flag:        req.Flag,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	if err := h.policies.Validate(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.store != nil {
		if err := h.store.SavePolicyConfig(ctx, GlobalTenantID, cfg); err != nil {
			slog.Error("failed to update policy", "id", policyID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to update policy",
			})
			return
		}
	}

	slog.Info("policy updated", "id", policyID)
	writeJSON(w, http.StatusOK, map[string]any{
		"policy":  cfg,
		"message": "Policy updated. Call POST /policies/reload to apply changes.",
	})
}

// DeletePolicy deletes a policy and auto-reloads the engine.
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID := chi.URLParam(r, "id")

	if policyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy id is required",
		})
		return
	}

	if h.store != nil {
		if err := h.store.DeletePolicyConfig(ctx, GlobalTenantID, policyID); err != nil {
			slog.Error("failed to delete policy", "id", policyID, "error", err)
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "policy not found",
			})
			return
		}

		// Auto-reload the engine after delete
		if h.policies != nil {
			configs, err := h.store.ListPolicyConfigs(ctx, GlobalTenantID)
			if err != nil {
				slog.Error("failed to reload policies after delete", "error", err)
			} else if err := h.policies.Reload(configs); err != nil {
				slog.Error("failed to reload policy engine after delete", "error", err)
			} else {
				slog.Info("policies auto-reloaded after delete", "count", len(configs))
			}
		}
	}

	slog.Info("policy deleted", "id", policyID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Policy deleted and engine reloaded.",
	})
}

// ReloadPolicies reloads all policies from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "store not available",
		})
		return
	}

	if h.policies == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "policy engine not available",
		})
		return
	}

	configs, err := h.store.ListPolicyConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list policies from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load policies from database",
		})
		return
	}

	if err := h.policies.Reload(configs); err != nil {
		slog.Error("failed to reload policies into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload policies: " + err.Error(),
		})
		return
	}

	slog.Info("policies reloaded from database", "count", len(configs))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "policies reloaded successfully",
		"count":   len(configs),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Package worker provides async claim processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-health/kestrel/internal/analysis"
	"github.com/opensource-health/kestrel/internal/domain"
)

// Worker processes submitted claims asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	store    domain.ReferenceStore
	analyzer *analysis.Analyzer

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = global worker)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, store domain.ReferenceStore, analyzer *analysis.Analyzer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		store:    store,
		analyzer: analyzer,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing claims for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicClaimSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicClaimSubmitted, func(ctx context.Context, msg *domain.Message) error {
		return w.processClaim(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicClaimSubmitted,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processClaim(ctx, msg.TenantID, msg)
}

// ClaimMessage is the message payload for async claim analysis.
type ClaimMessage struct {
	TenantID string               `json:"tenantId"`
	TraceID  string               `json:"traceId,omitempty"`
	Claim    *domain.ClaimRequest `json:"claim"`
}

// processClaim runs a submitted claim through the analysis pipeline.
func (w *Worker) processClaim(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var claimMsg ClaimMessage
	if err := json.Unmarshal(msg.Payload, &claimMsg); err != nil {
		slog.Error("failed to parse claim message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if claimMsg.TenantID != "" {
		tenantID = claimMsg.TenantID
	}

	if claimMsg.Claim == nil {
		slog.Error("claim message missing claim payload",
			"message_id", msg.ID,
			"tenant_id", tenantID,
		)
		return nil
	}

	traceID := claimMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing claim",
		"claim_id", claimMsg.Claim.ClaimID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	result, err := w.analyzer.Analyze(ctx, tenantID, claimMsg.Claim)
	if err != nil {
		slog.Error("claim analysis failed",
			"claim_id", claimMsg.Claim.ClaimID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	if w.store != nil {
		if err := w.store.SaveAnalysis(ctx, tenantID, result); err != nil {
			slog.Error("failed to save analysis",
				"claim_id", result.ClaimID,
				"job_id", result.JobID,
				"error", err,
			)
		}
	}

	resultPayload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, resultPayload); err != nil {
		slog.Error("failed to publish analysis result",
			"claim_id", result.ClaimID,
			"error", err,
		)
	}

	// Held claims also go to the hold topic for payment-system pickup.
	if result.DecisionMode == domain.DecisionSoftHold {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicClaimHold, resultPayload); err != nil {
			slog.Error("failed to publish hold",
				"claim_id", result.ClaimID,
				"error", err,
			)
		}
	}

	slog.Info("claim processed",
		"claim_id", result.ClaimID,
		"tenant_id", tenantID,
		"decision_mode", result.DecisionMode,
		"fraud_score", result.FraudScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}

package quota

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/services/governor"
)

// Hub layers hierarchical org/workspace/actor quota enforcement and cost
// attribution over a single governor, for deployments where one process
// admits requests for many workspaces. The governor decides first; a grant is
// then reserved against the hub quotas, and a quota denial releases the
// governor lease again so no capacity leaks.
type Hub struct {
	governor *governor.Service
	quota    *Manager
	tracker  *AttributionTracker
	logger   *zap.Logger

	mu     sync.Mutex
	limits Limits
	owners map[string]models.AcquireLeaseRequest
}

// NewHub wraps the governor with the given quota limits.
func NewHub(gov *governor.Service, limits Limits, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		governor: gov,
		quota:    NewManager(),
		tracker:  NewAttributionTracker(),
		logger:   logger,
		limits:   limits,
		owners:   make(map[string]models.AcquireLeaseRequest),
	}
}

// Quota exposes the underlying manager for status reporting.
func (h *Hub) Quota() *Manager { return h.quota }

// SetLimits swaps the quota limits, e.g. after a policy activation.
func (h *Hub) SetLimits(limits Limits) {
	h.mu.Lock()
	h.limits = limits
	h.mu.Unlock()
}

// Limits returns the current quota limits.
func (h *Hub) Limits() Limits {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.limits
}

// Acquire admits a request through the governor pipeline and then the
// hierarchical quotas. A governor grant that the quota layer refuses is
// released before the denial is returned.
func (h *Hub) Acquire(ctx context.Context, req *models.AcquireLeaseRequest) models.AcquireLeaseResponse {
	resp := h.governor.Acquire(ctx, req)
	if !resp.Granted {
		h.tracker.RecordDenied(req, resp.DeniedReason)
		return resp
	}

	decision := h.quota.Reserve(resp.LeaseID, req, h.Limits())
	if !decision.Allowed {
		h.governor.Release(ctx, &models.ReleaseLeaseRequest{
			LeaseID:        resp.LeaseID,
			Outcome:        models.OutcomePolicyDenied,
			IdempotencyKey: req.IdempotencyKey,
		})
		h.tracker.RecordDenied(req, decision.DeniedReason)
		h.logger.Debug("hub quota denied",
			zap.String("lease_id", resp.LeaseID),
			zap.String("reason", decision.DeniedReason),
			zap.Int("retry_after_ms", decision.RetryAfterMs))
		return models.AcquireLeaseResponse{
			DeniedReason:   decision.DeniedReason,
			RetryAfterMs:   decision.RetryAfterMs,
			Recommendation: "wait for the quota window to refill or request a quota increase",
			IdempotencyKey: req.IdempotencyKey,
			PolicyVersion:  resp.PolicyVersion,
			PolicyHash:     resp.PolicyHash,
			OrgID:          resp.OrgID,
			PrincipalType:  resp.PrincipalType,
			Role:           resp.Role,
		}
	}

	h.mu.Lock()
	h.owners[resp.LeaseID] = *req
	h.mu.Unlock()
	return resp
}

// Release settles the lease through the governor, frees its quota
// reservation, and attributes the actual spend.
func (h *Hub) Release(ctx context.Context, req *models.ReleaseLeaseRequest) models.ReleaseLeaseResponse {
	resp := h.governor.Release(ctx, req)
	if resp.Classification != models.ReleaseRecorded {
		return resp
	}

	h.quota.Release(req.LeaseID)

	h.mu.Lock()
	owner, ok := h.owners[req.LeaseID]
	delete(h.owners, req.LeaseID)
	h.mu.Unlock()
	if ok {
		h.tracker.RecordRelease(&owner, req)
	}
	return resp
}

// DailyReport builds the cost attribution report against the org budget.
func (h *Hub) DailyReport() models.DailyReportResponse {
	return h.tracker.BuildDailyReport(h.Limits().OrgDailyBudgetCents)
}

// GetMetrics proxies the governor metrics snapshot.
func (h *Hub) GetMetrics() models.MetricsSnapshot {
	return h.governor.GetMetricsSnapshot()
}

package governor

import (
	"context"
	"time"

	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/services/audit"
	"github.com/leasegate/leasegate/services/safety"
)

// GetMetricsSnapshot reports current load and decision counters.
func (s *Service) GetMetricsSnapshot() models.MetricsSnapshot {
	s.mu.Lock()
	contextUtilization := s.lastContextUtilization
	s.mu.Unlock()

	return models.MetricsSnapshot{
		ActiveLeases:           s.concurrency.Active(),
		SpendTodayCents:        s.budget.ReservedCents(),
		RatePoolUtilization:    s.rate.Utilization(),
		ContextPoolUtilization: contextUtilization,
		ComputePoolUtilization: s.compute.Utilization(),
		GrantsByReason:         s.metrics.snapshotGrants(),
		DeniesByReason:         s.metrics.snapshotDenies(),
		FailedAuditWrites:      s.audit.FailedWrites(),
	}
}

// GetStatus reports governor health and identity.
func (s *Service) GetStatus() models.GovernorStatusResponse {
	now := time.Now().UTC()
	pending := 0
	for _, record := range s.approvals.Snapshot() {
		if record.Status == models.ApprovalPending && record.ExpiresAt.After(now) {
			pending++
		}
	}

	snapshot := s.policy.CurrentSnapshot()
	return models.GovernorStatusResponse{
		Timestamp:           now,
		StartedAt:           s.startedAt,
		Healthy:             true,
		DurableStateEnabled: s.stateStore != nil,
		ActiveLeases:        s.concurrency.Active(),
		PendingApprovals:    pending,
		SpendTodayCents:     s.budget.ReservedCents(),
		PolicyVersion:       snapshot.Policy.PolicyVersion,
		PolicyHash:          snapshot.PolicyHash,
	}
}

// SafetyInterventions exposes the recorded safety automation log.
func (s *Service) SafetyInterventions() []safety.Intervention {
	return s.safety.Interventions()
}

// StagePolicyBundle stages a policy bundle for later activation.
func (s *Service) StagePolicyBundle(bundle models.PolicyBundle) models.StagePolicyBundleResponse {
	return s.policy.StageBundle(bundle)
}

// ActivatePolicy promotes the staged policy bundle to active and records the
// activation in the audit trail.
func (s *Service) ActivatePolicy(ctx context.Context, req models.ActivatePolicyRequest) models.ActivatePolicyResponse {
	activation := s.policy.ActivateStaged(req)
	if !activation.Activated {
		return activation
	}

	s.persistPolicyState(ctx)
	s.audit.Enqueue(&audit.Event{
		EventType:       audit.EventPolicyActivated,
		Timestamp:       time.Now().UTC(),
		ProtocolVersion: models.ProtocolVersion,
		PolicyHash:      activation.ActivePolicyHash,
		ActorID:         "system",
		WorkspaceID:     "system",
		ActionType:      string(models.ActionWorkflowStep),
		Decision:        "activated",
		Recommendation:  activation.ActivePolicyVersion,
	})
	return activation
}

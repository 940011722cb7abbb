package governor

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/services/audit"
)

// RequestToolSubLease grants a scoped, call-limited tool sub-lease under an
// active lease. The sub-lease never outlives its parent.
func (s *Service) RequestToolSubLease(ctx context.Context, req models.ToolSubLeaseRequest) models.ToolSubLeaseResponse {
	lease := s.leases.GetByLeaseID(req.LeaseID)
	if lease == nil {
		response := models.ToolSubLeaseResponse{
			Granted:        false,
			DeniedReason:   "lease_not_found",
			Recommendation: "acquire a valid model lease first",
			IdempotencyKey: req.IdempotencyKey,
		}
		s.enqueueToolEvent(audit.EventToolSubLeaseDenied, req.LeaseID, req.ToolID, req.Category,
			"denied", response.DeniedReason, nil)
		return response
	}

	policySnapshot := s.policy.CurrentSnapshot().Policy

	maxCalls := s.options.MaxToolCallsPerLease
	if lease.Constraints.MaxToolCalls > 0 {
		maxCalls = lease.Constraints.MaxToolCalls
	}
	allowedCalls := min(max(1, req.RequestedCalls), maxCalls)
	timeoutMs := min(max(100, req.TimeoutMs), policySnapshot.DefaultToolTimeoutMs)
	maxBytes := min(max(256, req.MaxOutputBytes), policySnapshot.MaxToolOutputBytes)

	subLease := s.toolSubLeases.Add(req.LeaseID, req.ToolID, req.Category, allowedCalls,
		lease.ExpiresAt, timeoutMs, maxBytes)

	s.enqueueToolEvent(audit.EventToolSubLeaseGranted, req.LeaseID, req.ToolID, req.Category,
		"granted", "", []string{"calls=" + strconv.Itoa(subLease.RemainingCalls)})

	return models.ToolSubLeaseResponse{
		Granted:        true,
		ToolSubLeaseID: subLease.SubLeaseID,
		ExpiresAt:      subLease.ExpiresAt,
		AllowedCalls:   subLease.RemainingCalls,
		TimeoutMs:      subLease.TimeoutMs,
		MaxOutputBytes: subLease.MaxOutputBytes,
		Recommendation: "sub-lease granted",
		IdempotencyKey: req.IdempotencyKey,
	}
}

// ExecuteToolCall consumes one sub-lease call and runs the tool through the
// isolated runner. Every execution, allowed or blocked, lands in the audit
// trail.
func (s *Service) ExecuteToolCall(ctx context.Context, req *models.ToolExecutionRequest) models.ToolExecutionResponse {
	subLease, found := s.toolSubLeases.Get(req.ToolSubLeaseID)
	remaining, reason := s.toolSubLeases.TryConsume(req.ToolSubLeaseID, req.LeaseID, req.ToolID, req.Category)
	if !found || reason != "" {
		denied := models.ToolExecutionResponse{
			Allowed:        false,
			Outcome:        models.OutcomePolicyDenied,
			DeniedReason:   reason,
			Recommendation: "request a valid scoped tool sub-lease",
			IdempotencyKey: req.IdempotencyKey,
		}
		s.enqueueToolEvent(audit.EventToolCallDenied, req.LeaseID, req.ToolID, req.Category,
			"denied", denied.DeniedReason, nil)
		return denied
	}

	if s.safety.RegisterToolLoop(req.LeaseID, req.ToolID, s.options.ToolLoopThreshold) {
		if lease := s.leases.GetByLeaseID(req.LeaseID); lease != nil {
			s.safety.ApplyActorCooldown(lease.Request.ActorID, s.options.ActorCooldownDuration,
				"tool_loop", "repeated calls to "+req.ToolID+" under one lease")
			s.auditIntervention(&lease.Request, "tool_loop", "actor cooldown applied")
		}
	}

	result := s.toolRunner.Execute(ctx, req, subLease, s.policy.CurrentSnapshot().Policy)

	eventType := audit.EventToolCallExecuted
	if !result.Allowed {
		eventType = audit.EventToolCallDenied
	}
	s.enqueueToolEvent(eventType, req.LeaseID, req.ToolID, req.Category,
		string(result.Outcome), result.DeniedReason,
		[]string{"bytes=" + strconv.FormatInt(result.OutputBytes, 10) + ";ms=" + strconv.FormatInt(result.DurationMs, 10)})

	s.logger.Debug("tool call executed",
		zap.String("lease_id", req.LeaseID),
		zap.String("tool_id", req.ToolID),
		zap.Bool("allowed", result.Allowed),
		zap.Int("remaining_calls", remaining))

	return result
}

func (s *Service) enqueueToolEvent(eventType, leaseID, toolID string, category models.ToolCategory, decision, reason string, usage []string) {
	s.audit.Enqueue(&audit.Event{
		EventType:        eventType,
		Timestamp:        time.Now().UTC(),
		ProtocolVersion:  models.ProtocolVersion,
		PolicyHash:       s.policy.CurrentSnapshot().PolicyHash,
		LeaseID:          leaseID,
		ActorID:          "tool",
		WorkspaceID:      "tool",
		ActionType:       string(models.ActionToolCall),
		RequestedTools:   []string{toolID + ":" + string(category)},
		ToolUsageSummary: usage,
		Decision:         decision,
		Reason:           reason,
	})
}

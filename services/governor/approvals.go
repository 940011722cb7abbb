package governor

import (
	"context"
	"strconv"
	"time"

	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/services/audit"
)

// RequestApproval opens an approval request. The reviewer quorum comes from
// the active policy's per-category configuration, defaulting to one.
func (s *Service) RequestApproval(ctx context.Context, req models.ApprovalRequest) models.ApprovalRequestResponse {
	requiredReviewers := 1
	if req.ToolCategory != nil {
		if configured, ok := s.policy.CurrentSnapshot().Policy.ApprovalReviewersByToolCategory[*req.ToolCategory]; ok {
			requiredReviewers = max(1, configured)
		}
	}

	response := s.approvals.Create(req, requiredReviewers)
	s.persistApprovals(ctx)
	s.enqueueApprovalEvent(audit.EventApprovalRequested, req.RequestedBy, req.WorkspaceID,
		"pending", "required_reviewers="+strconv.Itoa(response.RequiredReviewers))
	return response
}

// GrantApproval records one reviewer grant and reports whether quorum was
// reached.
func (s *Service) GrantApproval(ctx context.Context, req models.GrantApprovalRequest) models.GrantApprovalResponse {
	response := s.approvals.Grant(req)
	s.persistApprovals(ctx)

	eventType := audit.EventApprovalReviewed
	decision := "pending"
	if response.Granted {
		eventType = audit.EventApprovalGranted
		decision = "granted"
	}
	s.enqueueApprovalEvent(eventType, req.GrantedBy, "approval", decision, response.Message)
	return response
}

// DenyApproval records a terminal denial and invalidates any issued token.
func (s *Service) DenyApproval(ctx context.Context, req models.DenyApprovalRequest) models.DenyApprovalResponse {
	response := s.approvals.Deny(req)
	s.persistApprovals(ctx)

	eventType := audit.EventApprovalReviewed
	decision := "not_found"
	if response.Denied {
		eventType = audit.EventApprovalDenied
		decision = "denied"
	}
	s.enqueueApprovalEvent(eventType, req.DeniedBy, "approval", decision, response.Message)
	return response
}

// ReviewApproval records one reviewer's approve/deny decision under the
// quorum state machine.
func (s *Service) ReviewApproval(ctx context.Context, req models.ReviewApprovalRequest) models.ReviewApprovalResponse {
	response := s.approvals.Review(req)
	s.persistApprovals(ctx)

	eventType := audit.EventApprovalReviewed
	switch response.Status {
	case models.ApprovalGranted:
		eventType = audit.EventApprovalGranted
	case models.ApprovalDenied:
		eventType = audit.EventApprovalDenied
	}
	s.enqueueApprovalEvent(eventType, req.ReviewerID, "approval", string(response.Status), response.Message)
	return response
}

// ListPendingApprovals returns the filtered review queue.
func (s *Service) ListPendingApprovals(req models.ApprovalQueueRequest) models.ApprovalQueueResponse {
	return s.approvals.ListPending(req)
}

func (s *Service) enqueueApprovalEvent(eventType, actorID, workspaceID, decision, recommendation string) {
	s.audit.Enqueue(&audit.Event{
		EventType:       eventType,
		Timestamp:       time.Now().UTC(),
		ProtocolVersion: models.ProtocolVersion,
		PolicyHash:      s.policy.CurrentSnapshot().PolicyHash,
		ActorID:         actorID,
		WorkspaceID:     workspaceID,
		ActionType:      string(models.ActionWorkflowStep),
		Decision:        decision,
		Recommendation:  recommendation,
	})
}

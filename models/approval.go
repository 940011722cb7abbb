package models

import "time"

// ApprovalRequest asks for human sign-off before a gated tool may be leased.
// Scope is either a specific tool id or a whole tool category.
type ApprovalRequest struct {
	ActorID        string        `json:"actor_id" validate:"required"`
	WorkspaceID    string        `json:"workspace_id" validate:"required"`
	Reason         string        `json:"reason"`
	RequestedBy    string        `json:"requested_by"`
	ToolID         string        `json:"tool_id,omitempty"`
	ToolCategory   *ToolCategory `json:"tool_category,omitempty"`
	TTLSeconds     int           `json:"ttl_seconds"`
	SingleUse      bool          `json:"single_use"`
	IdempotencyKey string        `json:"idempotency_key"`
}

// ApprovalRequestResponse acknowledges a created approval request.
type ApprovalRequestResponse struct {
	ApprovalID        string         `json:"approval_id"`
	Status            ApprovalStatus `json:"status"`
	ExpiresAt         time.Time      `json:"expires_at"`
	Message           string         `json:"message"`
	RequiredReviewers int            `json:"required_reviewers"`
	CurrentApprovals  int            `json:"current_approvals"`
	IdempotencyKey    string         `json:"idempotency_key"`
}

// ApprovalDecisionTrace records one reviewer's decision.
type ApprovalDecisionTrace struct {
	ReviewerID string         `json:"reviewer_id"`
	Decision   ApprovalStatus `json:"decision"`
	ReviewedAt time.Time      `json:"reviewed_at"`
	Comment    string         `json:"comment,omitempty"`
	Scope      string         `json:"scope"`
}

// GrantApprovalRequest records a single reviewer grant.
type GrantApprovalRequest struct {
	ApprovalID     string `json:"approval_id" validate:"required"`
	GrantedBy      string `json:"granted_by" validate:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

// GrantApprovalResponse reports whether quorum was reached.
type GrantApprovalResponse struct {
	Granted           bool      `json:"granted"`
	ApprovalToken     string    `json:"approval_token,omitempty"`
	ExpiresAt         time.Time `json:"expires_at"`
	Message           string    `json:"message"`
	RequiredReviewers int       `json:"required_reviewers"`
	CurrentApprovals  int       `json:"current_approvals"`
	IdempotencyKey    string    `json:"idempotency_key"`
}

// DenyApprovalRequest records a reviewer denial.
type DenyApprovalRequest struct {
	ApprovalID     string `json:"approval_id" validate:"required"`
	DeniedBy       string `json:"denied_by" validate:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

// DenyApprovalResponse acknowledges a denial.
type DenyApprovalResponse struct {
	Denied         bool   `json:"denied"`
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ReviewApprovalRequest is the quorum-aware review operation.
type ReviewApprovalRequest struct {
	ApprovalID     string `json:"approval_id" validate:"required"`
	ReviewerID     string `json:"reviewer_id" validate:"required"`
	Approve        bool   `json:"approve"`
	Comment        string `json:"comment,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ReviewApprovalResponse reports the approval state after the review.
type ReviewApprovalResponse struct {
	Accepted          bool           `json:"accepted"`
	Status            ApprovalStatus `json:"status"`
	ApprovalToken     string         `json:"approval_token,omitempty"`
	Message           string         `json:"message"`
	RequiredReviewers int            `json:"required_reviewers"`
	CurrentApprovals  int            `json:"current_approvals"`
	IdempotencyKey    string         `json:"idempotency_key"`
}

// ApprovalQueueRequest filters the pending-approval listing.
type ApprovalQueueRequest struct {
	WorkspaceID  string        `json:"workspace_id,omitempty"`
	ToolID       string        `json:"tool_id,omitempty"`
	ToolCategory *ToolCategory `json:"tool_category,omitempty"`
}

// ApprovalQueueItem is one pending approval in the review queue.
type ApprovalQueueItem struct {
	ApprovalID        string                  `json:"approval_id"`
	ActorID           string                  `json:"actor_id"`
	WorkspaceID       string                  `json:"workspace_id"`
	Reason            string                  `json:"reason"`
	ToolID            string                  `json:"tool_id,omitempty"`
	ToolCategory      *ToolCategory           `json:"tool_category,omitempty"`
	Status            ApprovalStatus          `json:"status"`
	ExpiresAt         time.Time               `json:"expires_at"`
	RequiredReviewers int                     `json:"required_reviewers"`
	CurrentApprovals  int                     `json:"current_approvals"`
	Reviews           []ApprovalDecisionTrace `json:"reviews,omitempty"`
}

// ApprovalQueueResponse lists pending approvals.
type ApprovalQueueResponse struct {
	Items []ApprovalQueueItem `json:"items"`
}

package models

import "time"

// ToolIntent names a tool the caller intends to invoke under the lease.
type ToolIntent struct {
	ToolID   string       `json:"tool_id" validate:"required"`
	Category ToolCategory `json:"category" validate:"required"`
}

// AcquireLeaseRequest asks the governor for permission to spend metered
// resources. Immutable once submitted to the pipeline.
type AcquireLeaseRequest struct {
	OrgID         string        `json:"org_id"`
	ActorID       string        `json:"actor_id" validate:"required"`
	WorkspaceID   string        `json:"workspace_id" validate:"required"`
	PrincipalType PrincipalType `json:"principal_type"`
	Role          Role          `json:"role"`
	AuthToken     string        `json:"auth_token,omitempty"`

	ActionType ActionType `json:"action_type" validate:"required"`
	ModelID    string     `json:"model_id"`
	ProviderID string     `json:"provider_id"`

	EstimatedPromptTokens     int `json:"estimated_prompt_tokens" validate:"gte=0"`
	MaxOutputTokens           int `json:"max_output_tokens" validate:"gte=0"`
	EstimatedCostCents        int `json:"estimated_cost_cents" validate:"gte=0"`
	RequestedContextTokens    int `json:"requested_context_tokens" validate:"gte=0"`
	RequestedRetrievedChunks  int `json:"requested_retrieved_chunks" validate:"gte=0"`
	EstimatedToolOutputTokens int `json:"estimated_tool_output_tokens" validate:"gte=0"`
	EstimatedComputeUnits     int `json:"estimated_compute_units"`

	RequestedCapabilities []string     `json:"requested_capabilities,omitempty"`
	RequestedTools        []ToolIntent `json:"requested_tools,omitempty" validate:"dive"`
	RiskFlags             []string     `json:"risk_flags,omitempty"`
	IntentClass           string       `json:"intent_class,omitempty"`
	AutoApplyConstraints  bool         `json:"auto_apply_constraints"`

	ApprovalToken  string `json:"approval_token,omitempty"`
	IdempotencyKey string `json:"idempotency_key" validate:"required"`
}

// LeaseConstraints are the effective caps attached to a grant. They are a
// contract the caller must honor; only tool calls are enforced post-grant,
// via sub-leases.
type LeaseConstraints struct {
	MaxOutputTokensOverride int    `json:"max_output_tokens_override,omitempty"`
	ForcedModelID           string `json:"forced_model_id,omitempty"`
	MaxToolCalls            int    `json:"max_tool_calls,omitempty"`
	MaxContextTokens        int    `json:"max_context_tokens,omitempty"`
	CooldownMs              int    `json:"cooldown_ms,omitempty"`
}

// FallbackPlanStep is one ranked remediation suggestion attached to a denial.
type FallbackPlanStep struct {
	Rank   int    `json:"rank"`
	Action string `json:"action"`
	Detail string `json:"detail"`
}

// AcquireLeaseResponse is the admit/deny decision for an acquire request.
type AcquireLeaseResponse struct {
	Granted        bool               `json:"granted"`
	LeaseID        string             `json:"lease_id,omitempty"`
	ExpiresAt      time.Time          `json:"expires_at,omitempty"`
	Constraints    LeaseConstraints   `json:"constraints"`
	DeniedReason   string             `json:"denied_reason,omitempty"`
	RetryAfterMs   int                `json:"retry_after_ms,omitempty"`
	Recommendation string             `json:"recommendation,omitempty"`
	FallbackPlan   []FallbackPlanStep `json:"fallback_plan,omitempty"`
	IdempotencyKey string             `json:"idempotency_key"`
	PolicyVersion  string             `json:"policy_version"`
	PolicyHash     string             `json:"policy_hash"`
	OrgID          string             `json:"org_id"`
	PrincipalType  PrincipalType      `json:"principal_type"`
	Role           Role               `json:"role"`
}

// ToolCallUsage summarizes one tool invocation reported at release time.
type ToolCallUsage struct {
	ToolID         string       `json:"tool_id"`
	ToolSubLeaseID string       `json:"tool_sublease_id,omitempty"`
	Category       ToolCategory `json:"category"`
	DurationMs     int64        `json:"duration_ms"`
	BytesIn        int64        `json:"bytes_in"`
	BytesOut       int64        `json:"bytes_out"`
	Outcome        LeaseOutcome `json:"outcome"`
}

// ReleaseLeaseRequest settles a lease with actual consumption.
type ReleaseLeaseRequest struct {
	LeaseID                     string                      `json:"lease_id" validate:"required"`
	ActualPromptTokens          int                         `json:"actual_prompt_tokens"`
	ActualOutputTokens          int                         `json:"actual_output_tokens"`
	ActualCostCents             int                         `json:"actual_cost_cents"`
	ToolCalls                   []ToolCallUsage             `json:"tool_calls,omitempty"`
	LatencyMs                   int64                       `json:"latency_ms"`
	Outcome                     LeaseOutcome                `json:"outcome"`
	ProviderErrorClassification ProviderErrorClassification `json:"provider_error_classification,omitempty"`
	IdempotencyKey              string                      `json:"idempotency_key"`
}

// LeaseReceipt is the signed settlement proof returned for high-cost leases.
type LeaseReceipt struct {
	LeaseID            string                  `json:"lease_id"`
	PolicyHash         string                  `json:"policy_hash"`
	ActualPromptTokens int                     `json:"actual_prompt_tokens"`
	ActualOutputTokens int                     `json:"actual_output_tokens"`
	ActualCostCents    int                     `json:"actual_cost_cents"`
	Outcome            LeaseOutcome            `json:"outcome"`
	AuditEntryHash     string                  `json:"audit_entry_hash"`
	Timestamp          time.Time               `json:"timestamp"`
	ApprovalChain      []ApprovalDecisionTrace `json:"approval_chain,omitempty"`
	Signature          string                  `json:"signature,omitempty"`
}

// ReleaseLeaseResponse reports the settlement result.
type ReleaseLeaseResponse struct {
	Classification ReleaseClassification `json:"classification"`
	Recommendation string                `json:"recommendation,omitempty"`
	Receipt        *LeaseReceipt         `json:"receipt,omitempty"`
	PolicyVersion  string                `json:"policy_version,omitempty"`
	PolicyHash     string                `json:"policy_hash,omitempty"`
	IdempotencyKey string                `json:"idempotency_key"`
}

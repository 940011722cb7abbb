package audit

import "time"

// Event types written to the audit trail.
const (
	EventLeaseGranted          = "lease_granted"
	EventLeaseDenied           = "lease_denied"
	EventLeaseReleased         = "lease_released"
	EventLeaseExpired          = "lease_expired"
	EventLeaseExpiredByRestart = "lease_expired_by_restart"
	EventApprovalRequested     = "approval_requested"
	EventApprovalGranted       = "approval_granted"
	EventApprovalDenied        = "approval_denied"
	EventApprovalReviewed      = "approval_reviewed"
	EventToolSubLeaseGranted   = "tool_sublease_granted"
	EventToolSubLeaseDenied    = "tool_sublease_denied"
	EventToolCallExecuted      = "tool_call_executed"
	EventToolCallDenied        = "tool_call_denied"
	EventSafetyIntervention    = "safety_intervention"
	EventPolicyActivated       = "policy_activated"
)

// Event is one tamper-evident audit record. PrevHash and EntryHash are
// assigned by the writer when the event is appended to the chain.
type Event struct {
	EventType          string    `json:"event_type"`
	Timestamp          time.Time `json:"timestamp"`
	ProtocolVersion    string    `json:"protocol_version"`
	PolicyHash         string    `json:"policy_hash"`
	LeaseID            string    `json:"lease_id"`
	ActorID            string    `json:"actor_id"`
	WorkspaceID        string    `json:"workspace_id"`
	ActionType         string    `json:"action_type"`
	ModelID            string    `json:"model_id"`
	EstimatedCostCents int       `json:"estimated_cost_cents"`
	ActualCostCents    int       `json:"actual_cost_cents"`
	RequestedTools     []string  `json:"requested_tools,omitempty"`
	ToolUsageSummary   []string  `json:"tool_usage_summary,omitempty"`
	Decision           string    `json:"decision"`
	Reason             string    `json:"reason,omitempty"`
	Recommendation     string    `json:"recommendation,omitempty"`
	PrevHash           string    `json:"prev_hash"`
	EntryHash          string    `json:"entry_hash"`
}

// WriteResult reports where an event landed in the chain.
type WriteResult struct {
	EntryHash  string
	PrevHash   string
	LineNumber int64
}

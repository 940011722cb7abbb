package models

import "time"

// MetricsSnapshot summarizes current governor load and decision counts.
type MetricsSnapshot struct {
	ActiveLeases           int              `json:"active_leases"`
	SpendTodayCents        int              `json:"spend_today_cents"`
	RatePoolUtilization    float64          `json:"rate_pool_utilization"`
	ContextPoolUtilization float64          `json:"context_pool_utilization"`
	ComputePoolUtilization float64          `json:"compute_pool_utilization"`
	GrantsByReason         map[string]int64 `json:"grants_by_reason"`
	DeniesByReason         map[string]int64 `json:"denies_by_reason"`
	FailedAuditWrites      int64            `json:"failed_audit_writes"`
}

// GovernorStatusResponse is the health/identity snapshot of a governor.
type GovernorStatusResponse struct {
	Timestamp           time.Time `json:"timestamp"`
	StartedAt           time.Time `json:"started_at"`
	Healthy             bool      `json:"healthy"`
	DurableStateEnabled bool      `json:"durable_state_enabled"`
	StateDatabasePath   string    `json:"state_database_path,omitempty"`
	ActiveLeases        int       `json:"active_leases"`
	PendingApprovals    int       `json:"pending_approvals"`
	SpendTodayCents     int       `json:"spend_today_cents"`
	PolicyVersion       string    `json:"policy_version"`
	PolicyHash          string    `json:"policy_hash"`
}

// PolicyBundle carries a staged policy payload.
type PolicyBundle struct {
	Version           string    `json:"version" validate:"required"`
	CreatedAt         time.Time `json:"created_at"`
	Author            string    `json:"author"`
	PolicyContentJSON string    `json:"policy_content_json" validate:"required"`
}

// StagePolicyBundleResponse acknowledges a staged bundle.
type StagePolicyBundleResponse struct {
	Accepted            bool   `json:"accepted"`
	Message             string `json:"message"`
	StagedPolicyHash    string `json:"staged_policy_hash,omitempty"`
	StagedPolicyVersion string `json:"staged_policy_version,omitempty"`
}

// ActivatePolicyRequest promotes a staged policy to active.
type ActivatePolicyRequest struct {
	Version        string `json:"version" validate:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ActivatePolicyResponse reports the activation result.
type ActivatePolicyResponse struct {
	Activated           bool   `json:"activated"`
	Message             string `json:"message"`
	ActivePolicyHash    string `json:"active_policy_hash,omitempty"`
	ActivePolicyVersion string `json:"active_policy_version,omitempty"`
}

// CostAttributionRow aggregates spend for one org/workspace/actor/model/tool
// combination.
type CostAttributionRow struct {
	OrgID       string `json:"org_id"`
	WorkspaceID string `json:"workspace_id"`
	ActorID     string `json:"actor_id"`
	ModelID     string `json:"model_id"`
	ToolID      string `json:"tool_id"`
	SpendCents  int    `json:"spend_cents"`
	Count       int    `json:"count"`
}

// AlertSignal is a threshold alert raised by cost attribution.
type AlertSignal struct {
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// DailyReportResponse is the hub's cost attribution report.
type DailyReportResponse struct {
	GeneratedAt      time.Time            `json:"generated_at"`
	TotalSpendCents  int                  `json:"total_spend_cents"`
	TopSpenders      []CostAttributionRow `json:"top_spenders"`
	TopDeniedReasons map[string]int       `json:"top_denied_reasons"`
	Alerts           []AlertSignal        `json:"alerts"`
}

package policy

import "github.com/leasegate/leasegate/models"

// Policy is the declarative ruleset the engine evaluates requests against.
// Zero-length allowlists mean "no restriction".
type Policy struct {
	PolicyVersion        string `json:"policy_version"`
	MaxInFlight          int    `json:"max_in_flight"`
	DailyBudgetCents     int    `json:"daily_budget_cents"`
	OrgDailyBudgetCents  int    `json:"org_daily_budget_cents"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
	MaxTokensPerMinute   int    `json:"max_tokens_per_minute"`
	MaxContextTokens     int    `json:"max_context_tokens"`
	MaxRetrievedChunks   int    `json:"max_retrieved_chunks"`
	MaxToolOutputTokens  int    `json:"max_tool_output_tokens"`
	MaxToolCallsPerLease int    `json:"max_tool_calls_per_lease"`
	MaxComputeUnits      int    `json:"max_compute_units"`
	DefaultToolTimeoutMs int    `json:"default_tool_timeout_ms"`
	MaxToolOutputBytes   int64  `json:"max_tool_output_bytes"`

	AllowedModels             []string                                       `json:"allowed_models,omitempty"`
	AllowedModelsByWorkspace  map[string][]string                            `json:"allowed_models_by_workspace,omitempty"`
	AllowedCapabilities       map[models.ActionType][]string                 `json:"allowed_capabilities,omitempty"`
	AllowedCapabilitiesByRole map[models.Role]map[models.ActionType][]string `json:"allowed_capabilities_by_role,omitempty"`
	RiskRequiresApproval      []string                                       `json:"risk_requires_approval,omitempty"`

	AllowedToolsByActorWorkspace    map[string][]string         `json:"allowed_tools_by_actor_workspace,omitempty"`
	AllowedToolsByWorkspaceRole     map[string][]string         `json:"allowed_tools_by_workspace_role,omitempty"`
	DeniedToolCategories            []models.ToolCategory       `json:"denied_tool_categories,omitempty"`
	ApprovalRequiredToolCategories  []models.ToolCategory       `json:"approval_required_tool_categories,omitempty"`
	ApprovalReviewersByToolCategory map[models.ToolCategory]int `json:"approval_reviewers_by_tool_category,omitempty"`

	AllowedFileRoots    []string            `json:"allowed_file_roots,omitempty"`
	AllowedNetworkHosts []string            `json:"allowed_network_hosts,omitempty"`
	IntentModelTiers    map[string][]string `json:"intent_model_tiers,omitempty"`

	ServiceAccounts []ServiceAccount `json:"service_accounts,omitempty"`
}

// ServiceAccount scopes a machine principal's token to an org/workspace with
// optional capability, model, and tool allowlists.
type ServiceAccount struct {
	Name                string      `json:"name"`
	Token               string      `json:"token"`
	OrgID               string      `json:"org_id"`
	WorkspaceID         string      `json:"workspace_id"`
	Role                models.Role `json:"role"`
	AllowedCapabilities []string    `json:"allowed_capabilities,omitempty"`
	AllowedModels       []string    `json:"allowed_models,omitempty"`
	AllowedTools        []string    `json:"allowed_tools,omitempty"`
}

// DefaultPolicy returns the permissive local defaults used when no policy
// file is configured.
func DefaultPolicy() Policy {
	return Policy{
		PolicyVersion:        "local",
		MaxInFlight:          4,
		DailyBudgetCents:     500,
		MaxRequestsPerMinute: 120,
		MaxTokensPerMinute:   250_000,
		MaxContextTokens:     16_000,
		MaxRetrievedChunks:   40,
		MaxToolOutputTokens:  4_000,
		MaxToolCallsPerLease: 6,
		MaxComputeUnits:      8,
		DefaultToolTimeoutMs: 2_000,
		MaxToolOutputBytes:   16_384,
	}
}

// Snapshot is an immutable view of the active policy plus its content hash.
// The hash is stamped into every audit entry so decisions are attributable to
// the exact ruleset that produced them.
type Snapshot struct {
	Policy     Policy
	RawText    string
	PolicyHash string
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allowed        bool
	DeniedReason   string
	Recommendation string
}

// Allow returns a passing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a failing decision with a machine-readable reason and a
// human-facing recommendation.
func Deny(reason, recommendation string) Decision {
	return Decision{DeniedReason: reason, Recommendation: recommendation}
}

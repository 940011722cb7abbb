package models

// ActionType classifies the governed action a lease permits.
type ActionType string

const (
	ActionChatCompletion ActionType = "chat_completion"
	ActionEmbedding      ActionType = "embedding"
	ActionToolCall       ActionType = "tool_call"
	ActionWorkflowStep   ActionType = "workflow_step"
)

// PrincipalType distinguishes human callers from service accounts.
type PrincipalType string

const (
	PrincipalHuman   PrincipalType = "human"
	PrincipalService PrincipalType = "service"
)

// Role is the effective role a principal holds within a workspace.
type Role string

const (
	RoleOwner          Role = "owner"
	RoleAdmin          Role = "admin"
	RoleMember         Role = "member"
	RoleViewer         Role = "viewer"
	RoleServiceAccount Role = "service_account"
)

// ToolCategory groups tools by the kind of side effect they can have.
type ToolCategory string

const (
	ToolFileRead     ToolCategory = "file_read"
	ToolFileWrite    ToolCategory = "file_write"
	ToolNetworkRead  ToolCategory = "network_read"
	ToolNetworkWrite ToolCategory = "network_write"
	ToolExec         ToolCategory = "exec"
	ToolOther        ToolCategory = "other"
)

// LeaseOutcome records how the governed action ended.
type LeaseOutcome string

const (
	OutcomeSuccess           LeaseOutcome = "success"
	OutcomeProviderRateLimit LeaseOutcome = "provider_rate_limit"
	OutcomeTimeout           LeaseOutcome = "timeout"
	OutcomePolicyDenied      LeaseOutcome = "policy_denied"
	OutcomeToolError         LeaseOutcome = "tool_error"
	OutcomeUnknownError      LeaseOutcome = "unknown_error"
)

// ReleaseClassification is the result category of a release call.
type ReleaseClassification string

const (
	ReleaseRecorded      ReleaseClassification = "recorded"
	ReleaseLeaseNotFound ReleaseClassification = "lease_not_found"
	ReleaseLeaseExpired  ReleaseClassification = "lease_expired"
)

// ProviderErrorClassification categorizes an upstream provider failure
// reported at release time.
type ProviderErrorClassification string

const (
	ProviderErrNone             ProviderErrorClassification = "none"
	ProviderErrRateLimited      ProviderErrorClassification = "rate_limited"
	ProviderErrTimeout          ProviderErrorClassification = "timeout"
	ProviderErrContextTooLarge  ProviderErrorClassification = "context_too_large"
	ProviderErrModelUnavailable ProviderErrorClassification = "model_unavailable"
	ProviderErrUnauthorized     ProviderErrorClassification = "unauthorized"
	ProviderErrUnknown          ProviderErrorClassification = "unknown"
)

// ApprovalStatus is the state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending ApprovalStatus = "pending"
	ApprovalGranted ApprovalStatus = "granted"
	ApprovalDenied  ApprovalStatus = "denied"
	ApprovalExpired ApprovalStatus = "expired"
)

package models

import "time"

// ToolSubLeaseRequest asks for a scoped, call-count-limited grant for a
// single tool under an existing lease.
type ToolSubLeaseRequest struct {
	LeaseID        string       `json:"lease_id" validate:"required"`
	ToolID         string       `json:"tool_id" validate:"required"`
	Category       ToolCategory `json:"category" validate:"required"`
	RequestedCalls int          `json:"requested_calls"`
	TimeoutMs      int          `json:"timeout_ms"`
	MaxOutputBytes int64        `json:"max_output_bytes"`
	IdempotencyKey string       `json:"idempotency_key"`
}

// ToolSubLeaseResponse is the grant or denial of a sub-lease.
type ToolSubLeaseResponse struct {
	Granted        bool      `json:"granted"`
	ToolSubLeaseID string    `json:"tool_sublease_id,omitempty"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
	AllowedCalls   int       `json:"allowed_calls,omitempty"`
	TimeoutMs      int       `json:"timeout_ms,omitempty"`
	MaxOutputBytes int64     `json:"max_output_bytes,omitempty"`
	DeniedReason   string    `json:"denied_reason,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`
	IdempotencyKey string    `json:"idempotency_key"`
}

// ToolExecutionRequest asks to run one tool call under a sub-lease.
type ToolExecutionRequest struct {
	LeaseID        string       `json:"lease_id" validate:"required"`
	ToolSubLeaseID string       `json:"tool_sublease_id" validate:"required"`
	ToolID         string       `json:"tool_id" validate:"required"`
	Category       ToolCategory `json:"category" validate:"required"`
	TargetPath     string       `json:"target_path,omitempty"`
	TargetHost     string       `json:"target_host,omitempty"`
	CommandText    string       `json:"command_text,omitempty"`
	TimeoutMs      int          `json:"timeout_ms"`
	MaxOutputBytes int64        `json:"max_output_bytes"`
	IdempotencyKey string       `json:"idempotency_key"`
}

// ToolExecutionResponse reports the gated execution result.
type ToolExecutionResponse struct {
	Allowed        bool         `json:"allowed"`
	Outcome        LeaseOutcome `json:"outcome"`
	DeniedReason   string       `json:"denied_reason,omitempty"`
	Recommendation string       `json:"recommendation,omitempty"`
	OutputBytes    int64        `json:"output_bytes"`
	DurationMs     int64        `json:"duration_ms"`
	OutputPreview  string       `json:"output_preview,omitempty"`
	IdempotencyKey string       `json:"idempotency_key"`
}

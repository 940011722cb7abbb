package tools

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/services/policy"
	"github.com/leasegate/leasegate/services/toolleases"
)

// Runner executes one tool call under the caps of its sub-lease and the
// active policy.
type Runner interface {
	Execute(ctx context.Context, req *models.ToolExecutionRequest, sub toolleases.SubLease, p policy.Policy) models.ToolExecutionResponse
}

// Shell metacharacters rejected outright; commands run without a shell so
// these have no legitimate use in a command line.
var blockedMetacharacters = "&|><;`$(){}%^!"

// IsolatedRunner runs commands directly (no shell), confined to policy file
// roots and network hosts, with timeout and output-size caps from the
// sub-lease.
type IsolatedRunner struct{}

// NewIsolatedRunner creates a runner.
func NewIsolatedRunner() *IsolatedRunner {
	return &IsolatedRunner{}
}

// Execute validates targets against policy allowlists, then runs the command
// with the tighter of the request's and sub-lease's timeout and output caps.
func (r *IsolatedRunner) Execute(ctx context.Context, req *models.ToolExecutionRequest, sub toolleases.SubLease, p policy.Policy) models.ToolExecutionResponse {
	if !pathAllowed(req.TargetPath, p.AllowedFileRoots) {
		return denied(req, "tool_path_not_allowed", "use an allowed file root")
	}
	if !hostAllowed(req.TargetHost, p.AllowedNetworkHosts) {
		return denied(req, "tool_host_not_allowed", "use an allowed network host")
	}
	if !validCommandText(req.CommandText) {
		return denied(req, "tool_command_rejected", "command contains blocked shell metacharacters")
	}

	effectiveTimeout := min(max(100, req.TimeoutMs), max(100, sub.TimeoutMs))
	effectiveMaxBytes := min(max(256, req.MaxOutputBytes), max(256, sub.MaxOutputBytes))

	name, args := parseCommand(req.CommandText)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(effectiveTimeout)*time.Millisecond)
	defer cancel()

	start := time.Now()
	output, err := exec.CommandContext(runCtx, name, args...).CombinedOutput()
	durationMs := time.Since(start).Milliseconds()

	if err != nil && len(output) == 0 {
		return models.ToolExecutionResponse{
			Allowed:        false,
			Outcome:        models.OutcomeToolError,
			DeniedReason:   "tool_execution_failed",
			Recommendation: err.Error(),
			DurationMs:     durationMs,
			IdempotencyKey: req.IdempotencyKey,
		}
	}

	if int64(len(output)) > effectiveMaxBytes {
		return models.ToolExecutionResponse{
			Allowed:        false,
			Outcome:        models.OutcomeToolError,
			DeniedReason:   "tool_output_bytes_exceeded",
			Recommendation: "reduce output or increase approved max bytes",
			OutputBytes:    int64(len(output)),
			DurationMs:     durationMs,
			IdempotencyKey: req.IdempotencyKey,
		}
	}

	preview := string(output)
	if len(preview) > 256 {
		preview = preview[:256]
	}

	return models.ToolExecutionResponse{
		Allowed:        true,
		Outcome:        models.OutcomeSuccess,
		OutputBytes:    int64(len(output)),
		DurationMs:     durationMs,
		OutputPreview:  preview,
		Recommendation: "ok",
		IdempotencyKey: req.IdempotencyKey,
	}
}

func pathAllowed(path string, roots []string) bool {
	if strings.TrimSpace(path) == "" {
		return true
	}
	normalized, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		allowedRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if strings.HasPrefix(strings.ToLower(normalized), strings.ToLower(allowedRoot)) {
			return true
		}
	}
	return false
}

func hostAllowed(host string, allowlist []string) bool {
	if strings.TrimSpace(host) == "" {
		return true
	}
	for _, allowed := range allowlist {
		if strings.EqualFold(host, allowed) {
			return true
		}
	}
	return false
}

func validCommandText(commandText string) bool {
	if strings.TrimSpace(commandText) == "" {
		return false
	}
	return !strings.ContainsAny(commandText, blockedMetacharacters)
}

func parseCommand(commandText string) (string, []string) {
	fields := strings.Fields(strings.TrimSpace(commandText))
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

func denied(req *models.ToolExecutionRequest, reason, recommendation string) models.ToolExecutionResponse {
	return models.ToolExecutionResponse{
		Allowed:        false,
		Outcome:        models.OutcomePolicyDenied,
		DeniedReason:   reason,
		Recommendation: recommendation,
		IdempotencyKey: req.IdempotencyKey,
	}
}

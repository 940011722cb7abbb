package pools

import "github.com/leasegate/leasegate/models"

// ContextPool is a stateless threshold validator for context-shaped inputs.
// It is not a counted resource; nothing is reserved or released.
type ContextPool struct {
	maxPromptTokens     int
	maxRetrievedChunks  int
	maxToolOutputTokens int
}

// NewContextPool creates a validator with static caps.
func NewContextPool(maxPromptTokens, maxRetrievedChunks, maxToolOutputTokens int) *ContextPool {
	return &ContextPool{
		maxPromptTokens:     maxPromptTokens,
		maxRetrievedChunks:  maxRetrievedChunks,
		maxToolOutputTokens: maxToolOutputTokens,
	}
}

// TryEvaluate checks the request's context sizes against the caps. The deny
// reason identifies the first cap exceeded.
func (p *ContextPool) TryEvaluate(req *models.AcquireLeaseRequest) (ok bool, denyReason, recommendation string) {
	if req.RequestedContextTokens > p.maxPromptTokens {
		return false, "context_prompt_tokens_exceeded", "reduce prompt/context tokens"
	}
	if req.RequestedRetrievedChunks > p.maxRetrievedChunks {
		return false, "context_retrieved_chunks_exceeded", "reduce retrieval chunk count"
	}
	if req.EstimatedToolOutputTokens > p.maxToolOutputTokens {
		return false, "tool_output_tokens_exceeded", "reduce tool output token budget"
	}
	return true, "", ""
}

// Utilization is the requested/max prompt-token ratio in [0, 1].
func (p *ContextPool) Utilization(req *models.AcquireLeaseRequest) float64 {
	if p.maxPromptTokens == 0 {
		return 0
	}
	u := float64(req.RequestedContextTokens) / float64(p.maxPromptTokens)
	return min(max(u, 0), 1)
}

// MaxPromptTokens returns the prompt-token cap.
func (p *ContextPool) MaxPromptTokens() int { return p.maxPromptTokens }

// MaxToolOutputTokens returns the tool-output cap.
func (p *ContextPool) MaxToolOutputTokens() int { return p.maxToolOutputTokens }

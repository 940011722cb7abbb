package governor

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/repositories"
	"github.com/leasegate/leasegate/services/approvals"
	"github.com/leasegate/leasegate/services/audit"
	"github.com/leasegate/leasegate/services/leases"
	"github.com/leasegate/leasegate/services/policy"
	"github.com/leasegate/leasegate/services/pools"
	"github.com/leasegate/leasegate/services/safety"
	"github.com/leasegate/leasegate/services/toolleases"
	"github.com/leasegate/leasegate/services/tools"
)

// Dependencies are the collaborators the governor does not own. StateStore
// may be nil, in which case the governor runs purely in memory.
type Dependencies struct {
	Policy       policy.Engine
	Audit        *audit.Service
	ToolRegistry *tools.Registry
	ToolRunner   tools.Runner
	StateStore   repositories.StateStore
}

// Service is the admission-control governor. Every acquire runs the full
// pipeline; a denial at any stage rolls back every reservation made by the
// stages before it.
type Service struct {
	options  Options
	policy   policy.Engine
	audit    *audit.Service
	logger   *zap.Logger
	validate *validator.Validate

	leases        *leases.Store
	concurrency   *pools.ConcurrencyPool
	compute       *pools.ComputePool
	rate          *pools.RatePool
	contextPool   *pools.ContextPool
	budget        *pools.DailyBudgetPool
	approvals     *approvals.Store
	toolSubLeases *toolleases.Store
	toolRegistry  *tools.Registry
	toolRunner    tools.Runner
	safety        *safety.State
	stateStore    repositories.StateStore
	metrics       *metricsRegistry

	startedAt time.Time

	mu                     sync.Mutex
	lastContextUtilization float64

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// NewService wires the governor and recovers durable state. The audit
// service must already be started so recovery events are not dropped.
func NewService(options Options, deps Dependencies, logger *zap.Logger) *Service {
	registry := deps.ToolRegistry
	if registry == nil {
		registry = tools.NewRegistry()
	}
	runner := deps.ToolRunner
	if runner == nil {
		runner = tools.NewIsolatedRunner()
	}

	s := &Service{
		options:  options,
		policy:   deps.Policy,
		audit:    deps.Audit,
		logger:   logger,
		validate: validator.New(),

		leases:        leases.NewStore(),
		concurrency:   pools.NewConcurrencyPool(options.MaxInFlight),
		compute:       pools.NewComputePool(options.MaxComputeUnits),
		rate:          pools.NewRatePool(options.MaxRequestsPerMinute, options.MaxTokensPerMinute, options.RateWindow),
		contextPool:   pools.NewContextPool(options.MaxContextTokens, options.MaxRetrievedChunks, options.MaxToolOutputTokens),
		budget:        pools.NewDailyBudgetPool(options.DailyBudgetCents),
		approvals:     approvals.NewStore(),
		toolSubLeases: toolleases.NewStore(),
		toolRegistry:  registry,
		toolRunner:    runner,
		safety:        safety.NewState(),
		stateStore:    deps.StateStore,
		metrics:       newMetricsRegistry(),

		startedAt: time.Now().UTC(),
	}

	s.recoverDurableState(context.Background())
	return s
}

// Start launches the background lease expiry sweep.
func (s *Service) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.sweepCancel = cancel
	s.sweepDone = make(chan struct{})

	go func() {
		defer close(s.sweepDone)
		ticker := time.NewTicker(s.options.ExpirySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.ExpireLeases(ctx)
			}
		}
	}()

	s.logger.Info("governor started",
		zap.Duration("lease_ttl", s.options.LeaseTTL),
		zap.Int("max_in_flight", s.options.MaxInFlight),
		zap.Int("daily_budget_cents", s.options.DailyBudgetCents))
}

// Close stops the expiry sweep. It does not close the state store or the
// audit service; the caller owns those.
func (s *Service) Close() {
	if s.sweepCancel != nil {
		s.sweepCancel()
		<-s.sweepDone
	}
	s.logger.Info("governor stopped")
}

// Acquire runs the admission pipeline for one lease request. Denials are
// responses, not errors; every reservation made before a failing stage is
// released before the denial returns.
func (s *Service) Acquire(ctx context.Context, req *models.AcquireLeaseRequest) models.AcquireLeaseResponse {
	s.ExpireLeases(ctx)

	if req.OrgID == "" {
		req.OrgID = "default-org"
	}

	if err := s.validate.Struct(req); err != nil {
		denied := s.denied(req, "invalid_request", 0, "correct the request fields and retry")
		s.auditDenied(ctx, req, denied)
		s.metrics.recordDeny("invalid_request")
		return denied
	}

	if reason, recommendation, ok := s.authorizePrincipal(req); !ok {
		denied := s.denied(req, reason, 0, recommendation)
		s.auditDenied(ctx, req, denied)
		s.metrics.recordDeny(reason)
		return denied
	}

	now := time.Now().UTC()
	if s.safety.IsWorkspaceCircuitBroken(req.WorkspaceID, now) {
		retryMs := int(s.options.CircuitBreakerDuration.Milliseconds())
		denied := s.denied(req, "workspace_circuit_breaker", retryMs, "workspace circuit breaker tripped, wait for it to close")
		s.auditDenied(ctx, req, denied)
		s.metrics.recordDeny("workspace_circuit_breaker")
		return denied
	}
	if onCooldown, retryMs := s.safety.IsActorOnCooldown(req.ActorID, now); onCooldown {
		denied := s.denied(req, "actor_cooldown_active", retryMs, "actor is cooling down, retry after the hint")
		s.auditDenied(ctx, req, denied)
		s.metrics.recordDeny("actor_cooldown_active")
		return denied
	}

	if existing := s.leases.GetByIdempotency(req.IdempotencyKey); existing != nil {
		snapshot := s.policy.CurrentSnapshot()
		return models.AcquireLeaseResponse{
			Granted:        true,
			LeaseID:        existing.LeaseID,
			ExpiresAt:      existing.ExpiresAt,
			Constraints:    existing.Constraints,
			IdempotencyKey: req.IdempotencyKey,
			PolicyVersion:  snapshot.Policy.PolicyVersion,
			PolicyHash:     snapshot.PolicyHash,
			OrgID:          req.OrgID,
			PrincipalType:  req.PrincipalType,
			Role:           req.Role,
		}
	}

	if s.safety.RegisterRetry(req.IdempotencyKey, s.options.RetryStormThreshold) {
		s.safety.ApplyActorCooldown(req.ActorID, s.options.ActorCooldownDuration,
			"retry_storm", "repeated acquire attempts under one idempotency key")
		s.auditIntervention(req, "retry_storm", "actor cooldown applied")
	}

	if reason, recommendation, ok := s.validateRequestedTools(req); !ok {
		denied := s.denied(req, reason, 0, recommendation)
		s.auditDenied(ctx, req, denied)
		s.metrics.recordDeny(reason)
		return denied
	}

	if decision := s.policy.Evaluate(req); !decision.Allowed {
		denied := s.denied(req, decision.DeniedReason, 0, decision.Recommendation)
		s.auditDenied(ctx, req, denied)
		s.metrics.recordDeny(decision.DeniedReason)
		s.registerPolicyDeny(req)
		return denied
	}

	var approvalRecord *approvals.Record
	if s.requiresApproval(req) {
		record, ok := s.approvals.ValidateToken(req.ApprovalToken, req.ActorID, req.WorkspaceID, req.RequestedTools)
		if !ok {
			denied := s.denied(req, "approval_required", 0,
				"request approval and include approval token scoped to actor/workspace/tool")
			s.auditDenied(ctx, req, denied)
			s.metrics.recordDeny("approval_required")
			return denied
		}
		approvalRecord = record
	}

	if ok, retryMs := s.concurrency.TryAcquire(); !ok {
		denied := s.denied(req, "concurrency_limit_reached", retryMs, "retry after active leases complete")
		s.auditDenied(ctx, req, denied)
		s.metrics.recordDeny("concurrency_limit_reached")
		return denied
	}

	if ok, retryMs := s.compute.TryAcquire(req.EstimatedComputeUnits); !ok {
		s.concurrency.Release()
		denied := s.denied(req, "compute_capacity_reached", retryMs, "retry or reduce compute requirement")
		s.auditDenied(ctx, req, denied)
		s.metrics.recordDeny("compute_capacity_reached")
		return denied
	}

	estimatedTotalTokens := req.EstimatedPromptTokens + req.MaxOutputTokens
	if ok, retryMs := s.rate.TryAcquire(estimatedTotalTokens); !ok {
		s.compute.Release(req.EstimatedComputeUnits)
		s.concurrency.Release()
		denied := s.denied(req, "rate_limit_reached", retryMs, "backoff and retry with lower throughput")
		denied.FallbackPlan = s.buildFallbackPlan(req, denied.DeniedReason, denied.RetryAfterMs)
		s.auditDenied(ctx, req, denied)
		s.metrics.recordDeny("rate_limit_reached")
		return denied
	}

	if ok, reason, recommendation := s.contextPool.TryEvaluate(req); !ok {
		if req.AutoApplyConstraints {
			constrained := s.buildConstraints(req)
			constrained.MaxOutputTokensOverride = max(32, req.MaxOutputTokens/2)
			constrained.CooldownMs = 250

			lease := s.createLease(req, constrained, nil)
			s.leases.Add(lease)
			s.persistLease(ctx, lease)
			s.persistBudgetAndRate(ctx)
			s.persistPolicyState(ctx)

			response := s.grantedWithPlan(req, lease, "context_auto_compression_applied",
				s.buildFallbackPlan(req, reason, 250))
			s.auditGranted(ctx, req, lease, response.Recommendation)
			s.metrics.recordGrant("context_auto_compression_applied")
			return response
		}

		s.compute.Release(req.EstimatedComputeUnits)
		s.concurrency.Release()
		denied := s.denied(req, reason, 200, recommendation)
		denied.FallbackPlan = s.buildFallbackPlan(req, denied.DeniedReason, denied.RetryAfterMs)
		s.auditDenied(ctx, req, denied)
		s.metrics.recordDeny(reason)
		return denied
	}

	s.mu.Lock()
	s.lastContextUtilization = s.contextPool.Utilization(req)
	s.mu.Unlock()

	if ok, retryMs := s.budget.TryReserve(req.EstimatedCostCents); !ok {
		if req.AutoApplyConstraints {
			constrained := s.buildConstraints(req)
			constrained.MaxOutputTokensOverride = max(32, req.MaxOutputTokens/2)
			if tier, ok := s.policy.CurrentSnapshot().Policy.IntentModelTiers[req.IntentClass]; ok && len(tier) > 0 {
				constrained.ForcedModelID = tier[0]
			}

			reducedEstimate := max(1, req.EstimatedCostCents/2)
			if ok, _ := s.budget.TryReserve(reducedEstimate); ok {
				lease := s.createLease(req, constrained, nil)
				s.leases.Add(lease)
				s.persistLease(ctx, lease)
				s.persistBudgetAndRate(ctx)
				s.persistPolicyState(ctx)

				response := s.grantedWithPlan(req, lease, "budget_auto_downgrade_applied",
					s.buildFallbackPlan(req, "daily_budget_exceeded", retryMs))
				s.auditGranted(ctx, req, lease, response.Recommendation)
				s.metrics.recordGrant("budget_auto_downgrade_applied")
				return response
			}
		}

		s.compute.Release(req.EstimatedComputeUnits)
		s.concurrency.Release()
		denied := s.denied(req, "daily_budget_exceeded", retryMs, "switch model / reduce output tokens")
		denied.FallbackPlan = s.buildFallbackPlan(req, denied.DeniedReason, denied.RetryAfterMs)
		s.auditDenied(ctx, req, denied)
		s.metrics.recordDeny("daily_budget_exceeded")
		return denied
	}

	constraints := s.buildConstraints(req)
	lease := s.createLease(req, constraints, approvalRecord)
	s.leases.Add(lease)
	s.persistLease(ctx, lease)
	s.persistBudgetAndRate(ctx)
	s.persistPolicyState(ctx)

	snapshot := s.policy.CurrentSnapshot()
	response := models.AcquireLeaseResponse{
		Granted:        true,
		LeaseID:        lease.LeaseID,
		ExpiresAt:      lease.ExpiresAt,
		Constraints:    constraints,
		IdempotencyKey: req.IdempotencyKey,
		PolicyVersion:  snapshot.Policy.PolicyVersion,
		PolicyHash:     snapshot.PolicyHash,
		OrgID:          req.OrgID,
		PrincipalType:  req.PrincipalType,
		Role:           req.Role,
	}

	s.auditGranted(ctx, req, lease, "")
	s.metrics.recordGrant("granted")
	return response
}

// Release settles a lease with actual consumption, frees its reservations,
// and issues a signed receipt when spend crosses the receipt threshold.
func (s *Service) Release(ctx context.Context, req *models.ReleaseLeaseRequest) models.ReleaseLeaseResponse {
	lease := s.leases.Remove(req.LeaseID)
	if lease == nil {
		return models.ReleaseLeaseResponse{
			Classification: models.ReleaseLeaseNotFound,
			Recommendation: "lease missing or already expired",
			IdempotencyKey: req.IdempotencyKey,
		}
	}

	s.concurrency.Release()
	s.compute.Release(lease.ReservedComputeUnits)
	s.budget.Settle(lease.Request.EstimatedCostCents, req.ActualCostCents)
	s.toolSubLeases.RemoveByLease(req.LeaseID)
	s.removeStoredLease(ctx, req.LeaseID)
	s.persistBudgetAndRate(ctx)

	recommendation := buildReleaseRecommendation(req)
	snapshot := s.policy.CurrentSnapshot()

	toolUsage := make([]string, 0, len(req.ToolCalls))
	for _, call := range req.ToolCalls {
		toolUsage = append(toolUsage, call.ToolID+":"+string(call.Outcome)+":"+strconv.FormatInt(call.DurationMs, 10)+"ms")
	}

	auditResult, _ := s.audit.WriteDecision(ctx, &audit.Event{
		EventType:          audit.EventLeaseReleased,
		Timestamp:          time.Now().UTC(),
		ProtocolVersion:    models.ProtocolVersion,
		PolicyHash:         snapshot.PolicyHash,
		LeaseID:            lease.LeaseID,
		ActorID:            lease.Request.ActorID,
		WorkspaceID:        lease.Request.WorkspaceID,
		ActionType:         string(lease.Request.ActionType),
		ModelID:            lease.Request.ModelID,
		EstimatedCostCents: lease.Request.EstimatedCostCents,
		ActualCostCents:    req.ActualCostCents,
		RequestedTools:     toolIntentStrings(lease.Request.RequestedTools),
		ToolUsageSummary:   toolUsage,
		Decision:           string(req.Outcome),
		Recommendation:     recommendation,
	})

	response := models.ReleaseLeaseResponse{
		Classification: models.ReleaseRecorded,
		Recommendation: recommendation,
		IdempotencyKey: req.IdempotencyKey,
		PolicyVersion:  snapshot.Policy.PolicyVersion,
		PolicyHash:     snapshot.PolicyHash,
	}

	if req.ActualCostCents >= s.options.ReceiptThresholdCostCents {
		receipt := &models.LeaseReceipt{
			LeaseID:            lease.LeaseID,
			PolicyHash:         snapshot.PolicyHash,
			ActualPromptTokens: req.ActualPromptTokens,
			ActualOutputTokens: req.ActualOutputTokens,
			ActualCostCents:    req.ActualCostCents,
			Outcome:            req.Outcome,
			AuditEntryHash:     auditResult.EntryHash,
			Timestamp:          time.Now().UTC(),
			ApprovalChain:      lease.ApprovalChain,
		}
		if signature, err := s.signReceipt(receipt); err != nil {
			s.logger.Error("failed to sign lease receipt",
				zap.String("lease_id", lease.LeaseID), zap.Error(err))
		} else {
			receipt.Signature = signature
		}
		response.Receipt = receipt
	}

	return response
}

// ExpireLeases sweeps expired leases and releases their reservations.
func (s *Service) ExpireLeases(ctx context.Context) {
	expired := s.leases.RemoveExpired(time.Now().UTC())
	if len(expired) == 0 {
		return
	}

	snapshot := s.policy.CurrentSnapshot()
	for _, lease := range expired {
		s.concurrency.Release()
		s.compute.Release(lease.ReservedComputeUnits)
		s.budget.ReleaseReservation(lease.Request.EstimatedCostCents)
		s.toolSubLeases.RemoveByLease(lease.LeaseID)
		s.removeStoredLease(ctx, lease.LeaseID)

		s.audit.Enqueue(&audit.Event{
			EventType:          audit.EventLeaseExpired,
			Timestamp:          time.Now().UTC(),
			ProtocolVersion:    models.ProtocolVersion,
			PolicyHash:         snapshot.PolicyHash,
			LeaseID:            lease.LeaseID,
			ActorID:            lease.Request.ActorID,
			WorkspaceID:        lease.Request.WorkspaceID,
			ActionType:         string(lease.Request.ActionType),
			ModelID:            lease.Request.ModelID,
			EstimatedCostCents: lease.Request.EstimatedCostCents,
			RequestedTools:     toolIntentStrings(lease.Request.RequestedTools),
			Decision:           "expired",
		})
	}
	s.persistBudgetAndRate(ctx)
}

func (s *Service) createLease(req *models.AcquireLeaseRequest, constraints models.LeaseConstraints, approvalRecord *approvals.Record) *leases.Record {
	var chain []models.ApprovalDecisionTrace
	if approvalRecord != nil {
		chain = append(chain, approvalRecord.Reviews...)
	}

	now := time.Now().UTC()
	return &leases.Record{
		LeaseID:              uuid.NewString(),
		IdempotencyKey:       req.IdempotencyKey,
		Request:              *req,
		Constraints:          constraints,
		ApprovalChain:        chain,
		ReservedComputeUnits: max(1, req.EstimatedComputeUnits),
		AcquiredAt:           now,
		ExpiresAt:            now.Add(s.options.LeaseTTL),
	}
}

func (s *Service) buildConstraints(req *models.AcquireLeaseRequest) models.LeaseConstraints {
	constraints := models.LeaseConstraints{
		MaxOutputTokensOverride: min(req.MaxOutputTokens, s.options.MaxToolOutputTokens),
		MaxToolCalls:            s.options.MaxToolCallsPerLease,
		MaxContextTokens:        min(s.options.MaxContextTokens, max(req.RequestedContextTokens, 0)),
	}

	if clamp := s.safety.ActorOutputClamp(req.ActorID); clamp > 0 && clamp < constraints.MaxOutputTokensOverride {
		constraints.MaxOutputTokensOverride = clamp
	}
	return constraints
}

func (s *Service) grantedWithPlan(req *models.AcquireLeaseRequest, lease *leases.Record, recommendation string, plan []models.FallbackPlanStep) models.AcquireLeaseResponse {
	snapshot := s.policy.CurrentSnapshot()
	return models.AcquireLeaseResponse{
		Granted:        true,
		LeaseID:        lease.LeaseID,
		ExpiresAt:      lease.ExpiresAt,
		Constraints:    lease.Constraints,
		Recommendation: recommendation,
		IdempotencyKey: req.IdempotencyKey,
		PolicyVersion:  snapshot.Policy.PolicyVersion,
		PolicyHash:     snapshot.PolicyHash,
		OrgID:          req.OrgID,
		PrincipalType:  req.PrincipalType,
		Role:           req.Role,
		FallbackPlan:   plan,
	}
}

func (s *Service) buildFallbackPlan(req *models.AcquireLeaseRequest, denyReason string, retryAfterMs int) []models.FallbackPlanStep {
	cheapestModel := req.ModelID
	if tier, ok := s.policy.CurrentSnapshot().Policy.IntentModelTiers[req.IntentClass]; ok && len(tier) > 0 {
		cheapestModel = tier[0]
	}

	backoffDetail := "retry for " + denyReason + " with exponential backoff"
	if retryAfterMs > 0 {
		backoffDetail = "retry after " + strconv.Itoa(retryAfterMs) + "ms"
	}

	return []models.FallbackPlanStep{
		{Rank: 1, Action: "reduce_output_tokens", Detail: "set maxOutputTokens to " + strconv.Itoa(max(32, req.MaxOutputTokens/2))},
		{Rank: 2, Action: "compress_context", Detail: "summarize context to fit retrieval/context token limits"},
		{Rank: 3, Action: "switch_model", Detail: "use cheaper tier model: " + cheapestModel},
		{Rank: 4, Action: "delay_backoff", Detail: backoffDetail},
	}
}

func (s *Service) denied(req *models.AcquireLeaseRequest, reason string, retryAfterMs int, recommendation string) models.AcquireLeaseResponse {
	snapshot := s.policy.CurrentSnapshot()
	return models.AcquireLeaseResponse{
		Granted:        false,
		DeniedReason:   reason,
		RetryAfterMs:   retryAfterMs,
		Recommendation: recommendation,
		IdempotencyKey: req.IdempotencyKey,
		PolicyVersion:  snapshot.Policy.PolicyVersion,
		PolicyHash:     snapshot.PolicyHash,
		OrgID:          req.OrgID,
		PrincipalType:  req.PrincipalType,
		Role:           req.Role,
	}
}

func (s *Service) requiresApproval(req *models.AcquireLeaseRequest) bool {
	required := s.policy.CurrentSnapshot().Policy.ApprovalRequiredToolCategories
	if len(required) == 0 {
		return false
	}
	categories := make(map[models.ToolCategory]struct{}, len(required))
	for _, category := range required {
		categories[category] = struct{}{}
	}
	for _, tool := range req.RequestedTools {
		if _, ok := categories[tool.Category]; ok {
			return true
		}
	}
	return false
}

func (s *Service) validateRequestedTools(req *models.AcquireLeaseRequest) (reason, recommendation string, ok bool) {
	for _, tool := range req.RequestedTools {
		definition, found := s.toolRegistry.Get(tool.ToolID)
		if !found {
			return "tool_not_registered:" + tool.ToolID, "register tool before use", false
		}
		if definition.Category != tool.Category {
			return "tool_category_mismatch:" + tool.ToolID, "fix requested tool category", false
		}
	}
	return "", "", true
}

func (s *Service) authorizePrincipal(req *models.AcquireLeaseRequest) (reason, recommendation string, ok bool) {
	if req.PrincipalType != models.PrincipalService {
		return "", "", true
	}

	account, found := s.policy.TryResolveServiceAccount(req.AuthToken, req.OrgID, req.WorkspaceID)
	if !found {
		return "service_account_unauthorized", "supply a valid service account token scoped to org/workspace", false
	}

	req.Role = account.Role
	if req.ActorID == "" {
		req.ActorID = account.Name
	}

	if len(account.AllowedCapabilities) > 0 {
		for _, capability := range req.RequestedCapabilities {
			if !containsFold(account.AllowedCapabilities, capability) {
				return "service_account_capability_denied", "reduce requested capabilities or widen service account scope", false
			}
		}
	}

	if len(account.AllowedModels) > 0 && !containsFold(account.AllowedModels, req.ModelID) {
		return "service_account_model_denied", "select a model allowed for this service account", false
	}

	if len(account.AllowedTools) > 0 {
		for _, tool := range req.RequestedTools {
			if !containsFold(account.AllowedTools, tool.ToolID) {
				return "service_account_tool_denied", "request an allowed tool or update service account scope", false
			}
		}
	}

	return "", "", true
}

func (s *Service) registerPolicyDeny(req *models.AcquireLeaseRequest) {
	if s.safety.RegisterPolicyDeny(req.WorkspaceID, s.options.PolicyDenyThreshold) {
		s.safety.ApplyWorkspaceCircuitBreaker(req.WorkspaceID, s.options.CircuitBreakerDuration,
			"policy_deny_surge", "repeated policy denials in workspace")
		s.auditIntervention(req, "policy_deny_surge", "workspace circuit breaker applied")
	}
}

func (s *Service) auditGranted(ctx context.Context, req *models.AcquireLeaseRequest, lease *leases.Record, recommendation string) {
	snapshot := s.policy.CurrentSnapshot()
	_, _ = s.audit.WriteDecision(ctx, &audit.Event{
		EventType:          audit.EventLeaseGranted,
		Timestamp:          time.Now().UTC(),
		ProtocolVersion:    models.ProtocolVersion,
		PolicyHash:         snapshot.PolicyHash,
		LeaseID:            lease.LeaseID,
		ActorID:            req.ActorID,
		WorkspaceID:        req.WorkspaceID,
		ActionType:         string(req.ActionType),
		ModelID:            req.ModelID,
		EstimatedCostCents: req.EstimatedCostCents,
		RequestedTools:     toolIntentStrings(req.RequestedTools),
		Decision:           "granted",
		Recommendation:     recommendation,
	})
}

func (s *Service) auditDenied(ctx context.Context, req *models.AcquireLeaseRequest, denied models.AcquireLeaseResponse) {
	snapshot := s.policy.CurrentSnapshot()
	_, _ = s.audit.WriteDecision(ctx, &audit.Event{
		EventType:          audit.EventLeaseDenied,
		Timestamp:          time.Now().UTC(),
		ProtocolVersion:    models.ProtocolVersion,
		PolicyHash:         snapshot.PolicyHash,
		ActorID:            req.ActorID,
		WorkspaceID:        req.WorkspaceID,
		ActionType:         string(req.ActionType),
		ModelID:            req.ModelID,
		EstimatedCostCents: req.EstimatedCostCents,
		RequestedTools:     toolIntentStrings(req.RequestedTools),
		Decision:           "denied",
		Reason:             denied.DeniedReason,
		Recommendation:     denied.Recommendation,
	})
}

func (s *Service) auditIntervention(req *models.AcquireLeaseRequest, trigger, detail string) {
	s.audit.Enqueue(&audit.Event{
		EventType:       audit.EventSafetyIntervention,
		Timestamp:       time.Now().UTC(),
		ProtocolVersion: models.ProtocolVersion,
		PolicyHash:      s.policy.CurrentSnapshot().PolicyHash,
		ActorID:         req.ActorID,
		WorkspaceID:     req.WorkspaceID,
		ActionType:      string(req.ActionType),
		Decision:        "intervention",
		Reason:          trigger,
		Recommendation:  detail,
	})
}

func buildReleaseRecommendation(req *models.ReleaseLeaseRequest) string {
	switch req.ProviderErrorClassification {
	case models.ProviderErrRateLimited:
		return "backoff and retry"
	case models.ProviderErrTimeout:
		return "reduce context or increase provider timeout"
	case models.ProviderErrContextTooLarge:
		return "reduce context tokens or chunks"
	case models.ProviderErrModelUnavailable:
		return "switch model"
	case models.ProviderErrUnauthorized:
		return "check provider credentials"
	}
	if req.Outcome == models.OutcomePolicyDenied {
		return "request approval or update policy"
	}
	return "continue"
}

func toolIntentStrings(intents []models.ToolIntent) []string {
	if len(intents) == 0 {
		return nil
	}
	out := make([]string, 0, len(intents))
	for _, intent := range intents {
		out = append(out, intent.ToolID+":"+string(intent.Category))
	}
	return out
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

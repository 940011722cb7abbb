package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leasegate/leasegate/models"
)

// Engine evaluates acquire requests against the active policy snapshot and
// manages the stage/activate rollout of new policy bundles.
type Engine interface {
	CurrentSnapshot() Snapshot
	Evaluate(req *models.AcquireLeaseRequest) Decision
	TryResolveServiceAccount(token, orgID, workspaceID string) (*ServiceAccount, bool)
	StageBundle(bundle models.PolicyBundle) models.StagePolicyBundleResponse
	ActivateStaged(req models.ActivatePolicyRequest) models.ActivatePolicyResponse
}

// FileEngine loads policy from a JSON file and optionally polls it for
// changes. Without a file it runs on permissive defaults.
type FileEngine struct {
	logger         *zap.Logger
	policyFilePath string
	reloadInterval time.Duration

	mu       sync.RWMutex
	snapshot Snapshot
	staged   *Snapshot
	lastMod  time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewFileEngine creates an engine over the given policy file. An empty path
// yields the built-in defaults. reloadInterval <= 0 disables hot reload.
func NewFileEngine(policyFilePath string, reloadInterval time.Duration, logger *zap.Logger) (*FileEngine, error) {
	e := &FileEngine{
		logger:         logger,
		policyFilePath: policyFilePath,
		reloadInterval: reloadInterval,
	}

	if policyFilePath == "" {
		e.snapshot = defaultSnapshot()
		return e, nil
	}

	snapshot, modTime, err := loadSnapshot(policyFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy file: %w", err)
	}
	e.snapshot = snapshot
	e.lastMod = modTime
	return e, nil
}

// Start begins polling the policy file for changes. No-op without a file or
// reload interval.
func (e *FileEngine) Start() {
	if e.policyFilePath == "" || e.reloadInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.reloadInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.tryReload()
			}
		}
	}()
}

// Close stops the reload poller.
func (e *FileEngine) Close() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

// CurrentSnapshot returns the active policy snapshot.
func (e *FileEngine) CurrentSnapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// Evaluate applies the active policy's allowlists to the request. Checks run
// most-specific first: workspace model overrides, then global models, then
// role capabilities falling back to action capabilities, risk flags, denied
// tool categories, and tool allowlists.
func (e *FileEngine) Evaluate(req *models.AcquireLeaseRequest) Decision {
	p := e.CurrentSnapshot().Policy
	actorWorkspaceKey := req.ActorID + "|" + req.WorkspaceID
	workspaceRoleKey := req.WorkspaceID + "|" + string(req.Role)

	if workspaceModels, ok := p.AllowedModelsByWorkspace[req.WorkspaceID]; ok && len(workspaceModels) > 0 {
		if !containsFold(workspaceModels, req.ModelID) {
			return Deny("workspace_model_not_allowed", "select a model allowed for this workspace")
		}
	}

	if len(p.AllowedModels) > 0 && !containsFold(p.AllowedModels, req.ModelID) {
		return Deny("model_not_allowed", "select an allowed model")
	}

	roleCaps, roleFound := p.AllowedCapabilitiesByRole[req.Role]
	if roleFound && len(roleCaps[req.ActionType]) > 0 {
		if _, ok := firstMissing(req.RequestedCapabilities, roleCaps[req.ActionType]); ok {
			return Deny("capability_not_allowed_for_role", "remove restricted capabilities for this role")
		}
	} else if allowed := p.AllowedCapabilities[req.ActionType]; len(allowed) > 0 {
		if _, ok := firstMissing(req.RequestedCapabilities, allowed); ok {
			return Deny("capability_not_allowed", "remove restricted capabilities")
		}
	}

	for _, flag := range req.RiskFlags {
		if containsFold(p.RiskRequiresApproval, flag) {
			return Deny("risk_requires_approval", "request approval for risky operation")
		}
	}

	for _, tool := range req.RequestedTools {
		for _, denied := range p.DeniedToolCategories {
			if tool.Category == denied {
				return Deny(
					fmt.Sprintf("tool_category_denied:%s", tool.Category),
					fmt.Sprintf("remove restricted tool category %s", tool.Category))
			}
		}
	}

	if allowedTools, ok := p.AllowedToolsByActorWorkspace[actorWorkspaceKey]; ok && len(allowedTools) > 0 {
		for _, tool := range req.RequestedTools {
			if !containsFold(allowedTools, tool.ToolID) {
				return Deny(
					fmt.Sprintf("tool_not_allowed:%s", tool.ToolID),
					"request an allowed tool for this actor/workspace")
			}
		}
	}

	if allowedTools, ok := p.AllowedToolsByWorkspaceRole[workspaceRoleKey]; ok && len(allowedTools) > 0 {
		for _, tool := range req.RequestedTools {
			if !containsFold(allowedTools, tool.ToolID) {
				return Deny(
					fmt.Sprintf("tool_not_allowed_for_role:%s", tool.ToolID),
					"request an allowed tool for this workspace role")
			}
		}
	}

	return Allow()
}

// TryResolveServiceAccount matches a token to a service account scoped to the
// org and workspace. Token comparison is case-sensitive.
func (e *FileEngine) TryResolveServiceAccount(token, orgID, workspaceID string) (*ServiceAccount, bool) {
	if token == "" {
		return nil, false
	}
	p := e.CurrentSnapshot().Policy
	for i := range p.ServiceAccounts {
		sa := &p.ServiceAccounts[i]
		if sa.Token != "" && sa.Token == token &&
			strings.EqualFold(sa.OrgID, orgID) &&
			strings.EqualFold(sa.WorkspaceID, workspaceID) {
			return sa, true
		}
	}
	return nil, false
}

// StageBundle parses and stages a policy bundle without activating it.
func (e *FileEngine) StageBundle(bundle models.PolicyBundle) models.StagePolicyBundleResponse {
	var p Policy
	if err := json.Unmarshal([]byte(bundle.PolicyContentJSON), &p); err != nil {
		return models.StagePolicyBundleResponse{
			Accepted: false,
			Message:  fmt.Sprintf("invalid policy content: %v", err),
		}
	}
	p.PolicyVersion = bundle.Version
	hash := contentHash(bundle.PolicyContentJSON)

	e.mu.Lock()
	e.staged = &Snapshot{Policy: p, RawText: bundle.PolicyContentJSON, PolicyHash: hash}
	e.mu.Unlock()

	e.logger.Info("policy bundle staged",
		zap.String("version", bundle.Version),
		zap.String("policy_hash", hash))

	return models.StagePolicyBundleResponse{
		Accepted:            true,
		Message:             "policy staged",
		StagedPolicyHash:    hash,
		StagedPolicyVersion: p.PolicyVersion,
	}
}

// ActivateStaged promotes the staged snapshot to active. A non-empty request
// version must match the staged version.
func (e *FileEngine) ActivateStaged(req models.ActivatePolicyRequest) models.ActivatePolicyResponse {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.staged == nil {
		return models.ActivatePolicyResponse{Activated: false, Message: "no staged policy"}
	}
	if req.Version != "" && !strings.EqualFold(e.staged.Policy.PolicyVersion, req.Version) {
		return models.ActivatePolicyResponse{Activated: false, Message: "staged policy version mismatch"}
	}

	e.snapshot = *e.staged
	e.staged = nil

	e.logger.Info("policy activated",
		zap.String("version", e.snapshot.Policy.PolicyVersion),
		zap.String("policy_hash", e.snapshot.PolicyHash))

	return models.ActivatePolicyResponse{
		Activated:           true,
		Message:             "policy activated",
		ActivePolicyHash:    e.snapshot.PolicyHash,
		ActivePolicyVersion: e.snapshot.Policy.PolicyVersion,
	}
}

func (e *FileEngine) tryReload() {
	e.mu.RLock()
	lastMod := e.lastMod
	e.mu.RUnlock()

	info, err := os.Stat(e.policyFilePath)
	if err != nil || !info.ModTime().After(lastMod) {
		return
	}

	snapshot, modTime, err := loadSnapshot(e.policyFilePath)
	if err != nil {
		e.logger.Warn("policy reload failed", zap.Error(err))
		return
	}

	e.mu.Lock()
	e.snapshot = snapshot
	e.lastMod = modTime
	e.mu.Unlock()

	e.logger.Info("policy reloaded",
		zap.String("version", snapshot.Policy.PolicyVersion),
		zap.String("policy_hash", snapshot.PolicyHash))
}

func loadSnapshot(path string) (Snapshot, time.Time, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, time.Time{}, err
	}
	p := DefaultPolicy()
	if err := json.Unmarshal(raw, &p); err != nil {
		return Snapshot{}, time.Time{}, fmt.Errorf("failed to parse policy: %w", err)
	}

	info, err := os.Stat(path)
	modTime := time.Now()
	if err == nil {
		modTime = info.ModTime()
	}

	return Snapshot{Policy: p, RawText: string(raw), PolicyHash: contentHash(string(raw))}, modTime, nil
}

func defaultSnapshot() Snapshot {
	p := DefaultPolicy()
	raw, _ := json.Marshal(p)
	return Snapshot{Policy: p, RawText: string(raw), PolicyHash: contentHash(string(raw))}
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

// firstMissing returns the first requested entry absent from the allowlist.
func firstMissing(requested, allowed []string) (string, bool) {
	for _, want := range requested {
		if !containsFold(allowed, want) {
			return want, true
		}
	}
	return "", false
}

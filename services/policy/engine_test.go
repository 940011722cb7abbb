package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leasegate/leasegate/models"
)

func newTestEngine(t *testing.T, p Policy) *FileEngine {
	t.Helper()

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	engine, err := NewFileEngine(path, 0, zap.NewNop())
	require.NoError(t, err)
	return engine
}

func baseRequest() *models.AcquireLeaseRequest {
	return &models.AcquireLeaseRequest{
		OrgID:          "org-1",
		ActorID:        "alice",
		WorkspaceID:    "ws-1",
		Role:           models.RoleMember,
		ActionType:     models.ActionChatCompletion,
		ModelID:        "gpt-4o-mini",
		IdempotencyKey: "idem-1",
	}
}

func TestFileEngine_Defaults(t *testing.T) {
	engine, err := NewFileEngine("", 0, zap.NewNop())
	require.NoError(t, err)

	snapshot := engine.CurrentSnapshot()
	assert.Equal(t, "local", snapshot.Policy.PolicyVersion)
	assert.NotEmpty(t, snapshot.PolicyHash)
	assert.True(t, engine.Evaluate(baseRequest()).Allowed)
}

func TestFileEngine_ModelAllowlists(t *testing.T) {
	p := DefaultPolicy()
	p.AllowedModels = []string{"gpt-4o-mini", "claude-haiku"}
	p.AllowedModelsByWorkspace = map[string][]string{"ws-restricted": {"claude-haiku"}}
	engine := newTestEngine(t, p)

	t.Run("allowed model passes", func(t *testing.T) {
		assert.True(t, engine.Evaluate(baseRequest()).Allowed)
	})

	t.Run("model casing ignored", func(t *testing.T) {
		req := baseRequest()
		req.ModelID = "GPT-4O-MINI"
		assert.True(t, engine.Evaluate(req).Allowed)
	})

	t.Run("unknown model denied", func(t *testing.T) {
		req := baseRequest()
		req.ModelID = "gpt-5-ultra"
		decision := engine.Evaluate(req)
		assert.False(t, decision.Allowed)
		assert.Equal(t, "model_not_allowed", decision.DeniedReason)
	})

	t.Run("workspace override wins", func(t *testing.T) {
		req := baseRequest()
		req.WorkspaceID = "ws-restricted"
		decision := engine.Evaluate(req)
		assert.False(t, decision.Allowed)
		assert.Equal(t, "workspace_model_not_allowed", decision.DeniedReason)
	})
}

func TestFileEngine_Capabilities(t *testing.T) {
	p := DefaultPolicy()
	p.AllowedCapabilities = map[models.ActionType][]string{
		models.ActionChatCompletion: {"summarize", "translate"},
	}
	p.AllowedCapabilitiesByRole = map[models.Role]map[models.ActionType][]string{
		models.RoleViewer: {models.ActionChatCompletion: {"summarize"}},
	}
	engine := newTestEngine(t, p)

	t.Run("action capability denied", func(t *testing.T) {
		req := baseRequest()
		req.RequestedCapabilities = []string{"summarize", "execute_code"}
		decision := engine.Evaluate(req)
		assert.Equal(t, "capability_not_allowed", decision.DeniedReason)
	})

	t.Run("role list takes precedence", func(t *testing.T) {
		req := baseRequest()
		req.Role = models.RoleViewer
		req.RequestedCapabilities = []string{"translate"}
		decision := engine.Evaluate(req)
		assert.Equal(t, "capability_not_allowed_for_role", decision.DeniedReason)
	})
}

func TestFileEngine_ToolRules(t *testing.T) {
	p := DefaultPolicy()
	p.DeniedToolCategories = []models.ToolCategory{models.ToolExec}
	p.AllowedToolsByActorWorkspace = map[string][]string{"alice|ws-1": {"fs_read"}}
	p.AllowedToolsByWorkspaceRole = map[string][]string{"ws-1|member": {"fs_read", "http_get"}}
	engine := newTestEngine(t, p)

	t.Run("denied category", func(t *testing.T) {
		req := baseRequest()
		req.RequestedTools = []models.ToolIntent{{ToolID: "shell", Category: models.ToolExec}}
		decision := engine.Evaluate(req)
		assert.Equal(t, "tool_category_denied:exec", decision.DeniedReason)
	})

	t.Run("actor workspace allowlist", func(t *testing.T) {
		req := baseRequest()
		req.RequestedTools = []models.ToolIntent{{ToolID: "http_get", Category: models.ToolNetworkRead}}
		decision := engine.Evaluate(req)
		assert.Equal(t, "tool_not_allowed:http_get", decision.DeniedReason)
	})

	t.Run("allowed tool passes both lists", func(t *testing.T) {
		req := baseRequest()
		req.RequestedTools = []models.ToolIntent{{ToolID: "fs_read", Category: models.ToolFileRead}}
		assert.True(t, engine.Evaluate(req).Allowed)
	})
}

func TestFileEngine_RiskFlags(t *testing.T) {
	p := DefaultPolicy()
	p.RiskRequiresApproval = []string{"pii_export"}
	engine := newTestEngine(t, p)

	req := baseRequest()
	req.RiskFlags = []string{"pii_export"}
	decision := engine.Evaluate(req)
	assert.Equal(t, "risk_requires_approval", decision.DeniedReason)
}

func TestFileEngine_ServiceAccounts(t *testing.T) {
	p := DefaultPolicy()
	p.ServiceAccounts = []ServiceAccount{{
		Name:        "batch-runner",
		Token:       "sa-secret",
		OrgID:       "org-1",
		WorkspaceID: "ws-1",
		Role:        models.RoleServiceAccount,
	}}
	engine := newTestEngine(t, p)

	sa, ok := engine.TryResolveServiceAccount("sa-secret", "ORG-1", "WS-1")
	require.True(t, ok)
	assert.Equal(t, "batch-runner", sa.Name)

	_, ok = engine.TryResolveServiceAccount("sa-secret", "org-2", "ws-1")
	assert.False(t, ok)

	_, ok = engine.TryResolveServiceAccount("wrong", "org-1", "ws-1")
	assert.False(t, ok)
}

func TestFileEngine_StageAndActivate(t *testing.T) {
	engine, err := NewFileEngine("", 0, zap.NewNop())
	require.NoError(t, err)

	t.Run("activate without staged", func(t *testing.T) {
		resp := engine.ActivateStaged(models.ActivatePolicyRequest{Version: "v2"})
		assert.False(t, resp.Activated)
		assert.Equal(t, "no staged policy", resp.Message)
	})

	content, err := json.Marshal(Policy{MaxInFlight: 9})
	require.NoError(t, err)
	staged := engine.StageBundle(models.PolicyBundle{
		Version:           "v2",
		PolicyContentJSON: string(content),
	})
	require.True(t, staged.Accepted)
	assert.NotEmpty(t, staged.StagedPolicyHash)

	t.Run("version mismatch rejected", func(t *testing.T) {
		resp := engine.ActivateStaged(models.ActivatePolicyRequest{Version: "v9"})
		assert.False(t, resp.Activated)
	})

	t.Run("matching version activates", func(t *testing.T) {
		resp := engine.ActivateStaged(models.ActivatePolicyRequest{Version: "v2"})
		require.True(t, resp.Activated)
		assert.Equal(t, staged.StagedPolicyHash, resp.ActivePolicyHash)
		assert.Equal(t, 9, engine.CurrentSnapshot().Policy.MaxInFlight)
	})

	t.Run("staged consumed after activation", func(t *testing.T) {
		resp := engine.ActivateStaged(models.ActivatePolicyRequest{})
		assert.False(t, resp.Activated)
	})
}

func TestFileEngine_InvalidBundleRejected(t *testing.T) {
	engine, err := NewFileEngine("", 0, zap.NewNop())
	require.NoError(t, err)

	resp := engine.StageBundle(models.PolicyBundle{Version: "v2", PolicyContentJSON: "{not json"})
	assert.False(t, resp.Accepted)
}

package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leasegate/leasegate/models"
)

func quotaRequest(actor, workspace string, costCents int) *models.AcquireLeaseRequest {
	return &models.AcquireLeaseRequest{
		OrgID:                 "org-1",
		ActorID:               actor,
		WorkspaceID:           workspace,
		PrincipalType:         models.PrincipalHuman,
		Role:                  models.RoleMember,
		ActionType:            models.ActionChatCompletion,
		ModelID:               "gpt-low",
		EstimatedPromptTokens: 100,
		MaxOutputTokens:       200,
		EstimatedCostCents:    costCents,
		EstimatedComputeUnits: 1,
	}
}

func TestReserve_OrgBudgetExhausted(t *testing.T) {
	m := NewManager()
	limits := Limits{OrgDailyBudgetCents: 100}

	first := m.Reserve("lease-1", quotaRequest("actor-1", "ws-1", 60), limits)
	require.True(t, first.Allowed)

	second := m.Reserve("lease-2", quotaRequest("actor-1", "ws-1", 60), limits)
	require.False(t, second.Allowed)
	assert.Equal(t, ReasonOrgExhausted, second.DeniedReason)
	assert.GreaterOrEqual(t, second.RetryAfterMs, 250)
	assert.False(t, second.NextRefill.IsZero())

	// The denied attempt must not have moved the spend counter.
	assert.Equal(t, 60, m.OrgSpendCents())
}

func TestReserve_DenialAtActorLevelRollsBackEarlierLevels(t *testing.T) {
	m := NewManager()
	limits := Limits{
		OrgDailyBudgetCents:       1000,
		WorkspaceDailyBudgetCents: map[string]int{"ws-1": 500},
		ActorDailyBudgetCents:     map[string]int{"actor-1": 50},
	}

	decision := m.Reserve("lease-1", quotaRequest("actor-1", "ws-1", 60), limits)

	require.False(t, decision.Allowed)
	assert.Equal(t, ReasonActorExhausted, decision.DeniedReason)
	assert.Equal(t, 0, m.OrgSpendCents())
	assert.Equal(t, 0, m.WorkspaceSpendCents("ws-1"))
	assert.Equal(t, 0, m.ActorSpendCents("actor-1"))
}

func TestReserve_RateDenialRollsBackSpendDebits(t *testing.T) {
	m := NewManager()
	limits := Limits{
		OrgDailyBudgetCents:       1000,
		ActorMaxRequestsPerMinute: 1,
	}

	require.True(t, m.Reserve("lease-1", quotaRequest("actor-1", "ws-1", 10), limits).Allowed)

	decision := m.Reserve("lease-2", quotaRequest("actor-1", "ws-1", 10), limits)
	require.False(t, decision.Allowed)
	assert.Equal(t, ReasonActorThrottled, decision.DeniedReason)
	assert.Greater(t, decision.RetryAfterMs, 0)

	// Only the committed reservation's spend remains.
	assert.Equal(t, 10, m.OrgSpendCents())
}

func TestReserve_InFlightCapAndRoleOverride(t *testing.T) {
	m := NewManager()
	limits := Limits{
		MaxInFlightPerActor:      1,
		RoleMaxInFlightOverrides: map[models.Role]int{models.RoleAdmin: 2},
	}

	require.True(t, m.Reserve("lease-1", quotaRequest("actor-1", "ws-1", 5), limits).Allowed)

	throttled := m.Reserve("lease-2", quotaRequest("actor-1", "ws-1", 5), limits)
	require.False(t, throttled.Allowed)
	assert.Equal(t, ReasonActorThrottled, throttled.DeniedReason)
	assert.Equal(t, 1000, throttled.RetryAfterMs)

	m.Release("lease-1")
	assert.Equal(t, 0, m.ActorInFlight("actor-1"))
	require.True(t, m.Reserve("lease-2", quotaRequest("actor-1", "ws-1", 5), limits).Allowed)

	admin := quotaRequest("actor-2", "ws-1", 5)
	admin.Role = models.RoleAdmin
	require.True(t, m.Reserve("lease-3", admin, limits).Allowed)
	require.True(t, m.Reserve("lease-4", admin, limits).Allowed)
	assert.Equal(t, 2, m.ActorInFlight("actor-2"))
}

func TestReserve_SameLeaseIDIsReplay(t *testing.T) {
	m := NewManager()
	limits := Limits{OrgDailyBudgetCents: 100, MaxInFlightPerActor: 4}

	require.True(t, m.Reserve("lease-1", quotaRequest("actor-1", "ws-1", 30), limits).Allowed)
	require.True(t, m.Reserve("lease-1", quotaRequest("actor-1", "ws-1", 30), limits).Allowed)

	assert.Equal(t, 30, m.OrgSpendCents())
	assert.Equal(t, 1, m.ActorInFlight("actor-1"))
}

func TestRollback_RestoresSpendAndInFlight(t *testing.T) {
	m := NewManager()
	limits := Limits{
		OrgDailyBudgetCents:       1000,
		WorkspaceDailyBudgetCents: map[string]int{"ws-1": 500},
		ActorDailyBudgetCents:     map[string]int{"actor-1": 100},
		MaxInFlightPerActor:       4,
	}

	require.True(t, m.Reserve("lease-1", quotaRequest("actor-1", "ws-1", 40), limits).Allowed)
	m.Rollback("lease-1")

	assert.Equal(t, 0, m.OrgSpendCents())
	assert.Equal(t, 0, m.WorkspaceSpendCents("ws-1"))
	assert.Equal(t, 0, m.ActorSpendCents("actor-1"))
	assert.Equal(t, 0, m.ActorInFlight("actor-1"))

	// Unknown lease ids are a no-op.
	m.Rollback("lease-unknown")
	m.Release("lease-unknown")
	assert.Equal(t, 0, m.OrgSpendCents())
}

func TestRelease_KeepsSettledSpend(t *testing.T) {
	m := NewManager()
	limits := Limits{OrgDailyBudgetCents: 100, MaxInFlightPerActor: 1}

	require.True(t, m.Reserve("lease-1", quotaRequest("actor-1", "ws-1", 25), limits).Allowed)
	m.Release("lease-1")

	assert.Equal(t, 25, m.OrgSpendCents())
	assert.Equal(t, 0, m.ActorInFlight("actor-1"))
}

func TestReserve_CaseInsensitiveIdentity(t *testing.T) {
	m := NewManager()
	limits := Limits{WorkspaceDailyBudgetCents: map[string]int{"WS-1": 50}}

	decision := m.Reserve("lease-1", quotaRequest("actor-1", "ws-1", 60), limits)
	require.False(t, decision.Allowed)
	assert.Equal(t, ReasonWorkspaceExhausted, decision.DeniedReason)

	require.True(t, m.Reserve("lease-2", quotaRequest("Actor-1", "ws-1", 20), limits).Allowed)
	require.True(t, m.Reserve("lease-3", quotaRequest("actor-1", "WS-1", 20), limits).Allowed)
	assert.Equal(t, 40, m.ActorSpendCents("ACTOR-1"))
	assert.Equal(t, 40, m.WorkspaceSpendCents("ws-1"))
}

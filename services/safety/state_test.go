package safety

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestState_ThresholdCounters(t *testing.T) {
	state := NewState()

	assert.False(t, state.RegisterPolicyDeny("ws-1", 3))
	assert.False(t, state.RegisterPolicyDeny("ws-1", 3))
	assert.True(t, state.RegisterPolicyDeny("ws-1", 3))

	// Keys are case-insensitive.
	assert.True(t, state.RegisterPolicyDeny("WS-1", 3))

	assert.False(t, state.RegisterRetry("idem-1", 2))
	assert.True(t, state.RegisterRetry("idem-1", 2))

	assert.False(t, state.RegisterToolLoop("lease-1", "shell", 2))
	assert.False(t, state.RegisterToolLoop("lease-1", "fs_read", 2))
	assert.True(t, state.RegisterToolLoop("lease-1", "shell", 2))
}

func TestState_CircuitBreaker(t *testing.T) {
	state := NewState()
	now := time.Now()

	assert.False(t, state.IsWorkspaceCircuitBroken("ws-1", now))

	state.ApplyWorkspaceCircuitBreaker("ws-1", time.Minute, "policy_deny_threshold", "repeated policy denials")
	assert.True(t, state.IsWorkspaceCircuitBroken("ws-1", now))
	assert.False(t, state.IsWorkspaceCircuitBroken("ws-2", now))
	assert.False(t, state.IsWorkspaceCircuitBroken("ws-1", now.Add(2*time.Minute)))
}

func TestState_ActorCooldownAndClamp(t *testing.T) {
	state := NewState()
	now := time.Now()

	onCooldown, _ := state.IsActorOnCooldown("alice", now)
	assert.False(t, onCooldown)

	state.ApplyActorCooldown("alice", 30*time.Second, "retry_threshold", "retry storm")
	onCooldown, retryMs := state.IsActorOnCooldown("alice", now)
	assert.True(t, onCooldown)
	assert.GreaterOrEqual(t, retryMs, 250)

	assert.Zero(t, state.ActorOutputClamp("alice"))
	state.ApplyActorClamp("alice", 1024, "tool_loop_threshold", "tool loop detected")
	assert.Equal(t, 1024, state.ActorOutputClamp("alice"))

	interventions := state.Interventions()
	assert.Len(t, interventions, 2)
	assert.Equal(t, "cooldown", interventions[0].Action)
	assert.Equal(t, "clamp_max_output_tokens", interventions[1].Action)
}

func TestState_CounterEviction(t *testing.T) {
	state := NewState()

	for i := 0; i < maxCounterEntries; i++ {
		state.RegisterPolicyDeny(fmt.Sprintf("ws-%d", i), 1000)
	}
	// One more distinct key evicts the oldest (ws-0); its count restarts.
	state.RegisterPolicyDeny("ws-overflow", 1000)
	assert.False(t, state.RegisterPolicyDeny("ws-0", 2), "evicted counter must restart at one")
	assert.True(t, state.RegisterPolicyDeny("ws-0", 2))
}

func TestState_InterventionLogBounded(t *testing.T) {
	state := NewState()
	for i := 0; i < maxInterventionEntries+10; i++ {
		state.ApplyActorClamp(fmt.Sprintf("actor-%d", i), 512, "test", "fill")
	}
	assert.Len(t, state.Interventions(), maxInterventionEntries)
}

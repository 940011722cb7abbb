package safety

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	maxCounterEntries      = 4096
	maxInterventionEntries = 512
)

// Intervention records one automated safety action.
type Intervention struct {
	Timestamp time.Time `json:"timestamp"`
	Trigger   string    `json:"trigger"`
	Scope     string    `json:"scope"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
}

// counterMap is an insertion-ordered counter with oldest-first eviction once
// it reaches maxCounterEntries. Keys are case-insensitive.
type counterMap struct {
	counts map[string]int
	order  []string
}

func newCounterMap() *counterMap {
	return &counterMap{counts: make(map[string]int)}
}

func (m *counterMap) increment(key string) int {
	key = strings.ToLower(key)
	if _, ok := m.counts[key]; !ok {
		if len(m.order) >= maxCounterEntries {
			oldest := m.order[0]
			m.order = m.order[1:]
			delete(m.counts, oldest)
		}
		m.order = append(m.order, key)
	}
	m.counts[key]++
	return m.counts[key]
}

// State tracks escalation counters and the interventions they trigger.
// Counters feed three actions: a workspace-wide circuit breaker (full deny),
// an actor cooldown (timed deny), and an actor output-token clamp.
type State struct {
	mu sync.Mutex

	policyDenyByWorkspace *counterMap
	retryByIdempotency    *counterMap
	toolLoopByLeaseTool   *counterMap

	workspaceBreakerUntil map[string]time.Time
	actorCooldownUntil    map[string]time.Time
	actorOutputClamp      map[string]int

	interventions []Intervention
}

// NewState creates an empty safety state.
func NewState() *State {
	return &State{
		policyDenyByWorkspace: newCounterMap(),
		retryByIdempotency:    newCounterMap(),
		toolLoopByLeaseTool:   newCounterMap(),
		workspaceBreakerUntil: make(map[string]time.Time),
		actorCooldownUntil:    make(map[string]time.Time),
		actorOutputClamp:      make(map[string]int),
	}
}

// IsWorkspaceCircuitBroken reports whether a circuit breaker is active for
// the workspace at the given instant.
func (s *State) IsWorkspaceCircuitBroken(workspaceID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.workspaceBreakerUntil[strings.ToLower(workspaceID)]
	return ok && until.After(now)
}

// IsActorOnCooldown reports whether the actor is cooling down, and if so how
// long the caller should wait before retrying.
func (s *State) IsActorOnCooldown(actorID string, now time.Time) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.actorCooldownUntil[strings.ToLower(actorID)]
	if !ok || !until.After(now) {
		return false, 0
	}
	return true, int(max(250, until.Sub(now).Milliseconds()))
}

// ActorOutputClamp returns the clamped max-output-token allowance for the
// actor, or 0 when no clamp is active.
func (s *State) ActorOutputClamp(actorID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if clamp := s.actorOutputClamp[strings.ToLower(actorID)]; clamp > 0 {
		return clamp
	}
	return 0
}

// RegisterRetry bumps the retry counter for an idempotency key and reports
// whether it crossed the threshold.
func (s *State) RegisterRetry(idempotencyKey string, threshold int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryByIdempotency.increment(idempotencyKey) >= threshold
}

// RegisterPolicyDeny bumps the policy denial counter for a workspace and
// reports whether it crossed the threshold.
func (s *State) RegisterPolicyDeny(workspaceID string, threshold int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policyDenyByWorkspace.increment(workspaceID) >= threshold
}

// RegisterToolLoop bumps the repeated-call counter for a lease+tool pair and
// reports whether it crossed the threshold.
func (s *State) RegisterToolLoop(leaseID, toolID string, threshold int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolLoopByLeaseTool.increment(leaseID+"|"+toolID) >= threshold
}

// ApplyWorkspaceCircuitBreaker denies all work in the workspace for the
// duration.
func (s *State) ApplyWorkspaceCircuitBreaker(workspaceID string, duration time.Duration, trigger, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaceBreakerUntil[strings.ToLower(workspaceID)] = time.Now().Add(duration)
	s.recordLocked(trigger, "workspace:"+workspaceID, "circuit_breaker", detail)
}

// ApplyActorCooldown denies the actor's requests for the duration.
func (s *State) ApplyActorCooldown(actorID string, duration time.Duration, trigger, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actorCooldownUntil[strings.ToLower(actorID)] = time.Now().Add(duration)
	s.recordLocked(trigger, "actor:"+actorID, "cooldown", detail)
}

// ApplyActorClamp tightens the actor's future output-token allowance.
func (s *State) ApplyActorClamp(actorID string, maxOutputTokens int, trigger, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actorOutputClamp[strings.ToLower(actorID)] = maxOutputTokens
	s.recordLocked(trigger, "actor:"+actorID, "clamp_max_output_tokens",
		fmt.Sprintf("%s (max_output_tokens=%d)", detail, maxOutputTokens))
}

// Interventions returns a copy of the recorded interventions, newest last.
func (s *State) Interventions() []Intervention {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Intervention, len(s.interventions))
	copy(out, s.interventions)
	return out
}

func (s *State) recordLocked(trigger, scope, action, detail string) {
	if len(s.interventions) >= maxInterventionEntries {
		s.interventions = s.interventions[1:]
	}
	s.interventions = append(s.interventions, Intervention{
		Timestamp: time.Now().UTC(),
		Trigger:   trigger,
		Scope:     scope,
		Action:    action,
		Detail:    detail,
	})
}

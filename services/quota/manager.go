package quota

import (
	"strings"
	"sync"
	"time"

	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/services/pools"
)

// Denial reasons reported by the hierarchical quota manager.
const (
	ReasonOrgExhausted       = "org_exhausted"
	ReasonWorkspaceExhausted = "workspace_exhausted"
	ReasonActorExhausted     = "actor_exhausted"
	ReasonActorThrottled     = "actor_throttled"
)

const rateWindow = time.Minute

// Decision is the outcome of a hierarchical reservation attempt.
type Decision struct {
	Allowed      bool
	DeniedReason string
	RetryAfterMs int
	NextRefill   time.Time
}

type reservation struct {
	workspace string
	actor     string
	costCents int
	inFlight  bool
}

// Manager enforces org -> workspace -> actor daily budgets, per-actor
// in-flight caps, and per-level sliding-window rate limits on top of a
// governor. Each level reserves in order and records an undo; a denial at any
// level rolls back every earlier debit of the same request, so partial
// reservations never leak. Committed reservations are keyed by lease id for
// later release or rollback. Spend counters reset at the UTC day boundary.
type Manager struct {
	mu  sync.Mutex
	day time.Time

	orgSpendCents  int
	workspaceSpend map[string]int
	actorSpend     map[string]int
	actorInFlight  map[string]int

	orgRate       *pools.RatePool
	workspaceRate map[string]*pools.RatePool
	actorRate     map[string]*pools.RatePool

	reservations map[string]reservation
}

// NewManager creates an empty quota manager.
func NewManager() *Manager {
	return &Manager{
		day:            utcDay(time.Now()),
		workspaceSpend: make(map[string]int),
		actorSpend:     make(map[string]int),
		actorInFlight:  make(map[string]int),
		workspaceRate:  make(map[string]*pools.RatePool),
		actorRate:      make(map[string]*pools.RatePool),
		reservations:   make(map[string]reservation),
	}
}

// Reserve walks every quota level in order for the given lease. Levels whose
// limits are unset are skipped. On success the reservation is recorded under
// the lease id; repeated calls for an already-reserved lease id are replays
// and succeed without debiting again.
func (m *Manager) Reserve(leaseID string, req *models.AcquireLeaseRequest, limits Limits) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	m.rollDayLocked(now)

	if _, ok := m.reservations[leaseID]; ok {
		return Decision{Allowed: true}
	}

	workspace := strings.ToLower(req.WorkspaceID)
	actor := strings.ToLower(req.ActorID)
	cost := req.EstimatedCostCents
	tokens := req.EstimatedPromptTokens + req.MaxOutputTokens

	var undo []func()
	deny := func(reason string, retryMs int, refill time.Time) Decision {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return Decision{DeniedReason: reason, RetryAfterMs: retryMs, NextRefill: refill}
	}

	if limits.OrgDailyBudgetCents > 0 {
		if m.orgSpendCents+cost > limits.OrgDailyBudgetCents {
			refill := nextDayRefill(now)
			return deny(ReasonOrgExhausted, refillRetryMs(now, refill), refill)
		}
		m.orgSpendCents += cost
		undo = append(undo, func() { m.orgSpendCents -= cost })
	}

	if budget, ok := lookupFold(limits.WorkspaceDailyBudgetCents, req.WorkspaceID); ok && budget > 0 {
		if m.workspaceSpend[workspace]+cost > budget {
			refill := nextDayRefill(now)
			return deny(ReasonWorkspaceExhausted, refillRetryMs(now, refill), refill)
		}
		m.workspaceSpend[workspace] += cost
		undo = append(undo, func() { m.workspaceSpend[workspace] -= cost })
	}

	if budget, ok := lookupFold(limits.ActorDailyBudgetCents, req.ActorID); ok && budget > 0 {
		if m.actorSpend[actor]+cost > budget {
			refill := nextDayRefill(now)
			return deny(ReasonActorExhausted, refillRetryMs(now, refill), refill)
		}
		m.actorSpend[actor] += cost
		undo = append(undo, func() { m.actorSpend[actor] -= cost })
	}

	inFlight := false
	if limit := limits.actorMaxInFlight(req.Role); limit > 0 {
		if m.actorInFlight[actor]+1 > limit {
			return deny(ReasonActorThrottled, 1000, now.Add(time.Second))
		}
		m.actorInFlight[actor]++
		undo = append(undo, func() { m.actorInFlight[actor]-- })
		inFlight = true
	}

	if limits.OrgMaxRequestsPerMinute > 0 || limits.OrgMaxTokensPerMinute > 0 {
		if m.orgRate == nil {
			m.orgRate = pools.NewRatePool(limits.OrgMaxRequestsPerMinute, limits.OrgMaxTokensPerMinute, rateWindow)
		}
		if ok, retryMs := m.orgRate.TryAcquire(tokens); !ok {
			return deny(ReasonOrgExhausted, retryMs, now.Add(time.Duration(retryMs)*time.Millisecond))
		}
		undo = append(undo, func() { m.orgRate.Refund(tokens) })
	}

	wsReq, hasWsReq := lookupFold(limits.WorkspaceMaxRequestsPerMinute, req.WorkspaceID)
	wsTok, hasWsTok := lookupFold(limits.WorkspaceMaxTokensPerMinute, req.WorkspaceID)
	if hasWsReq || hasWsTok {
		pool := m.workspaceRate[workspace]
		if pool == nil {
			pool = pools.NewRatePool(wsReq, wsTok, rateWindow)
			m.workspaceRate[workspace] = pool
		}
		if ok, retryMs := pool.TryAcquire(tokens); !ok {
			return deny(ReasonWorkspaceExhausted, retryMs, now.Add(time.Duration(retryMs)*time.Millisecond))
		}
		undo = append(undo, func() { pool.Refund(tokens) })
	}

	if limits.ActorMaxRequestsPerMinute > 0 || limits.ActorMaxTokensPerMinute > 0 {
		pool := m.actorRate[actor]
		if pool == nil {
			pool = pools.NewRatePool(limits.ActorMaxRequestsPerMinute, limits.ActorMaxTokensPerMinute, rateWindow)
			m.actorRate[actor] = pool
		}
		if ok, retryMs := pool.TryAcquire(tokens); !ok {
			return deny(ReasonActorThrottled, retryMs, now.Add(time.Duration(retryMs)*time.Millisecond))
		}
		undo = append(undo, func() { pool.Refund(tokens) })
	}

	m.reservations[leaseID] = reservation{
		workspace: workspace,
		actor:     actor,
		costCents: cost,
		inFlight:  inFlight,
	}
	return Decision{Allowed: true}
}

// Release frees the in-flight slot held by the lease. Settled spend stays
// counted against the day. Unknown lease ids are a no-op.
func (m *Manager) Release(leaseID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations[leaseID]
	if !ok {
		return
	}
	delete(m.reservations, leaseID)
	if res.inFlight && m.actorInFlight[res.actor] > 0 {
		m.actorInFlight[res.actor]--
	}
}

// Rollback undoes the lease's spend debits at every level and frees its
// in-flight slot, as if the reservation never happened. Rate-pool events are
// left to age out of their windows. Unknown lease ids are a no-op.
func (m *Manager) Rollback(leaseID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations[leaseID]
	if !ok {
		return
	}
	delete(m.reservations, leaseID)

	m.orgSpendCents = max(0, m.orgSpendCents-res.costCents)
	if spent, ok := m.workspaceSpend[res.workspace]; ok {
		m.workspaceSpend[res.workspace] = max(0, spent-res.costCents)
	}
	if spent, ok := m.actorSpend[res.actor]; ok {
		m.actorSpend[res.actor] = max(0, spent-res.costCents)
	}
	if res.inFlight && m.actorInFlight[res.actor] > 0 {
		m.actorInFlight[res.actor]--
	}
}

// OrgSpendCents reports today's org-level reserved spend.
func (m *Manager) OrgSpendCents() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked(time.Now().UTC())
	return m.orgSpendCents
}

// WorkspaceSpendCents reports today's reserved spend for one workspace.
func (m *Manager) WorkspaceSpendCents(workspaceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked(time.Now().UTC())
	return m.workspaceSpend[strings.ToLower(workspaceID)]
}

// ActorSpendCents reports today's reserved spend for one actor.
func (m *Manager) ActorSpendCents(actorID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked(time.Now().UTC())
	return m.actorSpend[strings.ToLower(actorID)]
}

// ActorInFlight reports the actor's live reservation count.
func (m *Manager) ActorInFlight(actorID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked(time.Now().UTC())
	return m.actorInFlight[strings.ToLower(actorID)]
}

func (m *Manager) rollDayLocked(now time.Time) {
	day := utcDay(now)
	if day.Equal(m.day) {
		return
	}
	m.day = day
	m.orgSpendCents = 0
	m.workspaceSpend = make(map[string]int)
	m.actorSpend = make(map[string]int)
	m.actorInFlight = make(map[string]int)
	m.reservations = make(map[string]reservation)
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nextDayRefill(now time.Time) time.Time {
	return utcDay(now).AddDate(0, 0, 1)
}

func refillRetryMs(now, refill time.Time) int {
	return max(250, int(refill.Sub(now).Milliseconds()))
}

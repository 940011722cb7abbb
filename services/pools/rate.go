package pools

import (
	"sync"
	"time"
)

// RateEvent is one admitted request inside the sliding window.
type RateEvent struct {
	Timestamp time.Time
	TokenCost int
}

// RatePool is a sliding-window limiter over both request count and summed
// token cost. Events older than the window are pruned on every access.
type RatePool struct {
	mu          sync.Mutex
	maxRequests int
	maxTokens   int
	window      time.Duration
	events      []RateEvent
}

// NewRatePool creates a sliding-window pool. Limits of zero or below are
// treated as unlimited for that dimension.
func NewRatePool(maxRequestsPerWindow, maxTokensPerWindow int, window time.Duration) *RatePool {
	return &RatePool{
		maxRequests: maxRequestsPerWindow,
		maxTokens:   maxTokensPerWindow,
		window:      window,
	}
}

// TryAcquire admits one request with the given token cost. On refusal the
// retry hint is derived from the oldest event's remaining time in the window.
func (p *RatePool) TryAcquire(tokenCost int) (ok bool, retryAfterMs int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.prune(now)

	tokenSum := 0
	for _, e := range p.events {
		tokenSum += e.TokenCost
	}

	overRequests := p.maxRequests > 0 && len(p.events)+1 > p.maxRequests
	overTokens := p.maxTokens > 0 && tokenSum+tokenCost > p.maxTokens
	if overRequests || overTokens {
		return false, p.estimateRetryAfterMs(now)
	}

	p.events = append(p.events, RateEvent{Timestamp: now, TokenCost: max(0, tokenCost)})
	return true, 0
}

// Refund removes the newest event with the given token cost, undoing an
// admission that a later check rejected. No-op when no matching event exists.
func (p *RatePool) Refund(tokenCost int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cost := max(0, tokenCost)
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].TokenCost == cost {
			p.events = append(p.events[:i], p.events[i+1:]...)
			return
		}
	}
}

// Utilization is the max of request-count and token-cost fractions.
func (p *RatePool) Utilization() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.prune(time.Now())

	var requestUtil, tokenUtil float64
	if p.maxRequests > 0 {
		requestUtil = float64(len(p.events)) / float64(p.maxRequests)
	}
	if p.maxTokens > 0 {
		tokenSum := 0
		for _, e := range p.events {
			tokenSum += e.TokenCost
		}
		tokenUtil = float64(tokenSum) / float64(p.maxTokens)
	}
	return max(requestUtil, tokenUtil)
}

// SnapshotEvents copies the live window for persistence.
func (p *RatePool) SnapshotEvents() []RateEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.prune(time.Now())
	out := make([]RateEvent, len(p.events))
	copy(out, p.events)
	return out
}

// RestoreEvents replaces the window with persisted events; stale entries are
// pruned on the next access.
func (p *RatePool) RestoreEvents(events []RateEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = make([]RateEvent, len(events))
	copy(p.events, events)
}

func (p *RatePool) estimateRetryAfterMs(now time.Time) int {
	if len(p.events) == 0 {
		return 1000
	}
	wait := p.events[0].Timestamp.Add(p.window).Sub(now)
	return max(200, int(wait.Milliseconds()))
}

func (p *RatePool) prune(now time.Time) {
	i := 0
	for i < len(p.events) && now.Sub(p.events[i].Timestamp) >= p.window {
		i++
	}
	if i > 0 {
		p.events = append(p.events[:0], p.events[i:]...)
	}
}

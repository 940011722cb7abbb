package pools

import "sync"

// ConcurrencyPool bounds the number of leases in flight. TryAcquire never
// blocks; exhaustion is reported with a retry hint.
type ConcurrencyPool struct {
	mu     sync.Mutex
	max    int
	active int
}

// NewConcurrencyPool creates a pool bounded by maxInFlight.
func NewConcurrencyPool(maxInFlight int) *ConcurrencyPool {
	return &ConcurrencyPool{max: maxInFlight}
}

// TryAcquire reserves one slot. Returns false with a retry hint when full.
func (p *ConcurrencyPool) TryAcquire() (ok bool, retryAfterMs int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active >= p.max {
		return false, 250
	}
	p.active++
	return true, 0
}

// Release returns one slot. Never goes below zero.
func (p *ConcurrencyPool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active > 0 {
		p.active--
	}
}

// Active returns the number of slots currently held.
func (p *ConcurrencyPool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

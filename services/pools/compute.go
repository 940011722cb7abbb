package pools

import "sync"

// ComputePool is a weighted counter of reserved compute units. A request
// always costs at least one unit.
type ComputePool struct {
	mu     sync.Mutex
	max    int
	active int
}

// NewComputePool creates a pool bounded by maxUnits.
func NewComputePool(maxUnits int) *ComputePool {
	return &ComputePool{max: maxUnits}
}

// TryAcquire reserves units (minimum 1). Returns false with a retry hint
// when the reservation would exceed capacity.
func (p *ComputePool) TryAcquire(units int) (ok bool, retryAfterMs int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	requested := max(1, units)
	if p.active+requested > p.max {
		return false, 300
	}
	p.active += requested
	return true, 0
}

// Release returns units (minimum 1). Never goes below zero.
func (p *ComputePool) Release(units int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active -= max(1, units)
	if p.active < 0 {
		p.active = 0
	}
}

// Utilization reports reserved/capacity in [0, 1].
func (p *ComputePool) Utilization() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.max == 0 {
		return 0
	}
	u := float64(p.active) / float64(p.max)
	return min(max(u, 0), 1)
}

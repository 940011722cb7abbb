package governor

import "sync"

// metricsRegistry counts grant and deny decisions by reason.
type metricsRegistry struct {
	mu     sync.Mutex
	grants map[string]int64
	denies map[string]int64
}

func newMetricsRegistry() *metricsRegistry {
	return &metricsRegistry{
		grants: make(map[string]int64),
		denies: make(map[string]int64),
	}
}

func (m *metricsRegistry) recordGrant(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[reason]++
}

func (m *metricsRegistry) recordDeny(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denies[reason]++
}

func (m *metricsRegistry) snapshotGrants() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyCounts(m.grants)
}

func (m *metricsRegistry) snapshotDenies() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyCounts(m.denies)
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

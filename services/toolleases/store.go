package toolleases

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leasegate/leasegate/models"
)

// Denial reasons surfaced to callers attempting to consume a sub-lease.
const (
	ReasonNotFound      = "tool_sublease_not_found"
	ReasonLeaseMismatch = "tool_sublease_lease_mismatch"
	ReasonScopeMismatch = "tool_sublease_scope_mismatch"
	ReasonExpired       = "tool_sublease_expired"
	ReasonDepleted      = "tool_sublease_depleted"
)

// SubLease is a call-count-limited grant for one tool, bounded by the parent
// lease's lifetime.
type SubLease struct {
	SubLeaseID     string
	LeaseID        string
	ToolID         string
	Category       models.ToolCategory
	RemainingCalls int
	ExpiresAt      time.Time
	TimeoutMs      int
	MaxOutputBytes int64
}

// Store tracks active tool sub-leases.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*SubLease
	byLease map[string][]string
}

// NewStore creates an empty sub-lease store.
func NewStore() *Store {
	return &Store{
		byID:    make(map[string]*SubLease),
		byLease: make(map[string][]string),
	}
}

// Add creates a sub-lease whose expiry never exceeds the parent lease's.
func (s *Store) Add(leaseID, toolID string, category models.ToolCategory, allowedCalls int, parentExpiry time.Time, timeoutMs int, maxOutputBytes int64) *SubLease {
	sub := &SubLease{
		SubLeaseID:     "tsl-" + uuid.NewString(),
		LeaseID:        leaseID,
		ToolID:         toolID,
		Category:       category,
		RemainingCalls: max(1, allowedCalls),
		ExpiresAt:      parentExpiry,
		TimeoutMs:      timeoutMs,
		MaxOutputBytes: maxOutputBytes,
	}

	s.mu.Lock()
	s.byID[sub.SubLeaseID] = sub
	s.byLease[leaseID] = append(s.byLease[leaseID], sub.SubLeaseID)
	s.mu.Unlock()

	return sub
}

// TryConsume atomically spends one call from the sub-lease. The returned
// reason is empty on success. A sub-lease that reaches zero remaining calls is
// removed.
func (s *Store) TryConsume(subLeaseID, leaseID, toolID string, category models.ToolCategory) (remaining int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.byID[subLeaseID]
	if !ok {
		return 0, ReasonNotFound
	}
	if !strings.EqualFold(sub.LeaseID, leaseID) {
		return 0, ReasonLeaseMismatch
	}
	if !strings.EqualFold(sub.ToolID, toolID) || sub.Category != category {
		return sub.RemainingCalls, ReasonScopeMismatch
	}
	if !sub.ExpiresAt.After(time.Now()) {
		s.removeLocked(sub)
		return 0, ReasonExpired
	}
	if sub.RemainingCalls <= 0 {
		s.removeLocked(sub)
		return 0, ReasonDepleted
	}

	sub.RemainingCalls--
	remaining = sub.RemainingCalls
	if sub.RemainingCalls == 0 {
		s.removeLocked(sub)
	}
	return remaining, ""
}

// Get returns a copy of the sub-lease, if present.
func (s *Store) Get(subLeaseID string) (SubLease, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.byID[subLeaseID]
	if !ok {
		return SubLease{}, false
	}
	return *sub, true
}

// RemoveByLease drops every sub-lease belonging to the lease. Called when the
// parent lease is released or expires.
func (s *Store) RemoveByLease(leaseID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byLease[leaseID]
	for _, id := range ids {
		delete(s.byID, id)
	}
	delete(s.byLease, leaseID)
	return len(ids)
}

// Count returns the number of active sub-leases.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Store) removeLocked(sub *SubLease) {
	delete(s.byID, sub.SubLeaseID)
	ids := s.byLease[sub.LeaseID]
	kept := ids[:0]
	for _, id := range ids {
		if id != sub.SubLeaseID {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		delete(s.byLease, sub.LeaseID)
	} else {
		s.byLease[sub.LeaseID] = kept
	}
}

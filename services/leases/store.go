package leases

import (
	"sync"
	"time"

	"github.com/leasegate/leasegate/models"
)

// Record is a lease in force. Created only when the full admission pipeline
// succeeds; never mutated afterward.
type Record struct {
	LeaseID              string
	IdempotencyKey       string
	Request              models.AcquireLeaseRequest
	Constraints          models.LeaseConstraints
	ApprovalChain        []models.ApprovalDecisionTrace
	ReservedComputeUnits int
	AcquiredAt           time.Time
	ExpiresAt            time.Time
}

// Store indexes active leases by lease id and by idempotency key. At most one
// active lease exists per idempotency key.
type Store struct {
	mu            sync.Mutex
	byLeaseID     map[string]*Record
	byIdempotency map[string]*Record
}

// NewStore creates an empty lease store.
func NewStore() *Store {
	return &Store{
		byLeaseID:     make(map[string]*Record),
		byIdempotency: make(map[string]*Record),
	}
}

// Add registers a lease under both indexes.
func (s *Store) Add(r *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byLeaseID[r.LeaseID] = r
	if r.IdempotencyKey != "" {
		s.byIdempotency[r.IdempotencyKey] = r
	}
}

// GetByLeaseID returns the active lease with the given id, or nil.
func (s *Store) GetByLeaseID(leaseID string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byLeaseID[leaseID]
}

// GetByIdempotency returns the active lease for the key, or nil.
func (s *Store) GetByIdempotency(key string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == "" {
		return nil
	}
	return s.byIdempotency[key]
}

// Remove deletes and returns the lease, or nil when absent. A second Remove
// for the same id is a no-op; explicit release and the expiry sweep rely on
// exactly one caller winning.
func (s *Store) Remove(leaseID string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byLeaseID[leaseID]
	if !ok {
		return nil
	}
	delete(s.byLeaseID, leaseID)
	if r.IdempotencyKey != "" {
		delete(s.byIdempotency, r.IdempotencyKey)
	}
	return r
}

// RemoveExpired deletes and returns every lease whose expiry is at or before
// now.
func (s *Store) RemoveExpired(now time.Time) []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*Record
	for id, r := range s.byLeaseID {
		if !r.ExpiresAt.After(now) {
			expired = append(expired, r)
			delete(s.byLeaseID, id)
			if r.IdempotencyKey != "" {
				delete(s.byIdempotency, r.IdempotencyKey)
			}
		}
	}
	return expired
}

// Count returns the number of active leases.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byLeaseID)
}

package repositories

import (
	"context"
	"time"
)

// StoredLease is the persisted form of an in-flight lease. Request and
// constraints are serialized JSON so the schema survives model changes.
type StoredLease struct {
	LeaseID              string
	IdempotencyKey       string
	AcquiredAt           time.Time
	ExpiresAt            time.Time
	ReservedComputeUnits int
	RequestJSON          string
	ConstraintsJSON      string
}

// StoredApproval is the persisted form of an approval record.
type StoredApproval struct {
	ApprovalID  string
	Status      string
	ExpiresAt   time.Time
	Token       string
	Used        bool
	RequestJSON string
}

// StoredRateEvent is one persisted sliding-window rate event.
type StoredRateEvent struct {
	Timestamp time.Time
	TokenCost int
}

// StoredBudgetState is the persisted daily-budget reservation.
type StoredBudgetState struct {
	Date          time.Time
	ReservedCents int
}

// StoredPolicyState records which policy version produced the persisted
// state.
type StoredPolicyState struct {
	PolicyVersion string
	PolicyHash    string
}

// DurableStateSnapshot is everything the governor restores on startup.
type DurableStateSnapshot struct {
	ActiveLeases []StoredLease
	Approvals    []StoredApproval
	RateEvents   []StoredRateEvent
	BudgetState  *StoredBudgetState
	PolicyState  *StoredPolicyState
}

// StateStore persists governor state across restarts. Writes happen on the
// admission path, so implementations must be cheap and must never block on
// remote systems.
type StateStore interface {
	// Load reads the full snapshot. Individually corrupt records are skipped
	// rather than failing the whole load.
	Load(ctx context.Context) (*DurableStateSnapshot, error)

	UpsertLease(ctx context.Context, lease StoredLease) error
	RemoveLease(ctx context.Context, leaseID string) error
	ReplaceApprovals(ctx context.Context, approvals []StoredApproval) error
	ReplaceRateEvents(ctx context.Context, events []StoredRateEvent) error
	SaveBudgetState(ctx context.Context, state StoredBudgetState) error
	SavePolicyState(ctx context.Context, state StoredPolicyState) error

	Close() error
}

package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/leasegate/leasegate/repositories"
)

const schema = `
CREATE TABLE IF NOT EXISTS leases (
	lease_id TEXT PRIMARY KEY,
	idempotency_key TEXT NOT NULL,
	acquired_at_utc TEXT NOT NULL,
	expires_at_utc TEXT NOT NULL,
	reserved_compute_units INTEGER NOT NULL,
	request_json TEXT NOT NULL,
	constraints_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS approvals (
	approval_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	expires_at_utc TEXT NOT NULL,
	token TEXT NOT NULL,
	used INTEGER NOT NULL,
	request_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rate_events (
	timestamp_utc TEXT NOT NULL,
	token_cost INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS budget_state (
	date_utc TEXT NOT NULL,
	reserved_cents INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS policy_state (
	policy_version TEXT NOT NULL,
	policy_hash TEXT NOT NULL
);
`

// Store is a StateStore over an embedded SQLite database. A single open
// connection serializes writers; SQLite handles file locking.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens (creating if needed) the state database at path and ensures the
// schema. Pass ":memory:" for an ephemeral store in tests.
func New(path string, logger *zap.Logger) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure state schema: %w", err)
	}

	logger.Info("opened state database", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// NewFromDB wraps an existing database handle. Used by tests that inject a
// mocked connection.
func NewFromDB(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the full durable snapshot. Rows that fail to scan or carry
// unparseable timestamps are skipped and logged; a partially readable state
// file still yields a usable snapshot.
func (s *Store) Load(ctx context.Context) (*repositories.DurableStateSnapshot, error) {
	snapshot := &repositories.DurableStateSnapshot{}

	if err := s.loadLeases(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := s.loadApprovals(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := s.loadRateEvents(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := s.loadBudgetState(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := s.loadPolicyState(ctx, snapshot); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// UpsertLease inserts or replaces a persisted lease.
func (s *Store) UpsertLease(ctx context.Context, lease repositories.StoredLease) error {
	query := `
		INSERT INTO leases (lease_id, idempotency_key, acquired_at_utc, expires_at_utc, reserved_compute_units, request_json, constraints_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(lease_id) DO UPDATE SET
			idempotency_key = excluded.idempotency_key,
			acquired_at_utc = excluded.acquired_at_utc,
			expires_at_utc = excluded.expires_at_utc,
			reserved_compute_units = excluded.reserved_compute_units,
			request_json = excluded.request_json,
			constraints_json = excluded.constraints_json
	`

	_, err := s.db.ExecContext(ctx, query,
		lease.LeaseID,
		lease.IdempotencyKey,
		lease.AcquiredAt.UTC().Format(time.RFC3339Nano),
		lease.ExpiresAt.UTC().Format(time.RFC3339Nano),
		lease.ReservedComputeUnits,
		lease.RequestJSON,
		lease.ConstraintsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert lease: %w", err)
	}
	return nil
}

// RemoveLease deletes a persisted lease.
func (s *Store) RemoveLease(ctx context.Context, leaseID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM leases WHERE lease_id = ?", leaseID); err != nil {
		return fmt.Errorf("failed to remove lease: %w", err)
	}
	return nil
}

// ReplaceApprovals rewrites the approvals table in one transaction.
func (s *Store) ReplaceApprovals(ctx context.Context, approvals []repositories.StoredApproval) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM approvals"); err != nil {
			return fmt.Errorf("failed to clear approvals: %w", err)
		}
		for _, approval := range approvals {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO approvals (approval_id, status, expires_at_utc, token, used, request_json) VALUES (?, ?, ?, ?, ?, ?)",
				approval.ApprovalID,
				approval.Status,
				approval.ExpiresAt.UTC().Format(time.RFC3339Nano),
				approval.Token,
				boolToInt(approval.Used),
				approval.RequestJSON,
			)
			if err != nil {
				return fmt.Errorf("failed to insert approval: %w", err)
			}
		}
		return nil
	})
}

// ReplaceRateEvents rewrites the rate events table in one transaction.
func (s *Store) ReplaceRateEvents(ctx context.Context, events []repositories.StoredRateEvent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM rate_events"); err != nil {
			return fmt.Errorf("failed to clear rate events: %w", err)
		}
		for _, event := range events {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO rate_events (timestamp_utc, token_cost) VALUES (?, ?)",
				event.Timestamp.UTC().Format(time.RFC3339Nano),
				event.TokenCost,
			)
			if err != nil {
				return fmt.Errorf("failed to insert rate event: %w", err)
			}
		}
		return nil
	})
}

// SaveBudgetState replaces the single budget-state row.
func (s *Store) SaveBudgetState(ctx context.Context, state repositories.StoredBudgetState) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM budget_state"); err != nil {
			return fmt.Errorf("failed to clear budget state: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO budget_state (date_utc, reserved_cents) VALUES (?, ?)",
			state.Date.UTC().Format("2006-01-02"),
			state.ReservedCents,
		)
		if err != nil {
			return fmt.Errorf("failed to insert budget state: %w", err)
		}
		return nil
	})
}

// SavePolicyState replaces the single policy-state row.
func (s *Store) SavePolicyState(ctx context.Context, state repositories.StoredPolicyState) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM policy_state"); err != nil {
			return fmt.Errorf("failed to clear policy state: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO policy_state (policy_version, policy_hash) VALUES (?, ?)",
			state.PolicyVersion,
			state.PolicyHash,
		)
		if err != nil {
			return fmt.Errorf("failed to insert policy state: %w", err)
		}
		return nil
	})
}

func (s *Store) loadLeases(ctx context.Context, snapshot *repositories.DurableStateSnapshot) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT lease_id, idempotency_key, acquired_at_utc, expires_at_utc, reserved_compute_units, request_json, constraints_json FROM leases")
	if err != nil {
		return fmt.Errorf("failed to query leases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lease repositories.StoredLease
		var acquiredAt, expiresAt string
		if err := rows.Scan(&lease.LeaseID, &lease.IdempotencyKey, &acquiredAt, &expiresAt,
			&lease.ReservedComputeUnits, &lease.RequestJSON, &lease.ConstraintsJSON); err != nil {
			s.logger.Warn("skipping unreadable lease row", zap.Error(err))
			continue
		}
		if lease.AcquiredAt, err = time.Parse(time.RFC3339Nano, acquiredAt); err != nil {
			s.logger.Warn("skipping lease with bad acquired_at", zap.String("lease_id", lease.LeaseID))
			continue
		}
		if lease.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
			s.logger.Warn("skipping lease with bad expires_at", zap.String("lease_id", lease.LeaseID))
			continue
		}
		snapshot.ActiveLeases = append(snapshot.ActiveLeases, lease)
	}
	return rows.Err()
}

func (s *Store) loadApprovals(ctx context.Context, snapshot *repositories.DurableStateSnapshot) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT approval_id, status, expires_at_utc, token, used, request_json FROM approvals")
	if err != nil {
		return fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var approval repositories.StoredApproval
		var expiresAt string
		var used int
		if err := rows.Scan(&approval.ApprovalID, &approval.Status, &expiresAt,
			&approval.Token, &used, &approval.RequestJSON); err != nil {
			s.logger.Warn("skipping unreadable approval row", zap.Error(err))
			continue
		}
		if approval.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
			s.logger.Warn("skipping approval with bad expires_at", zap.String("approval_id", approval.ApprovalID))
			continue
		}
		approval.Used = used == 1
		snapshot.Approvals = append(snapshot.Approvals, approval)
	}
	return rows.Err()
}

func (s *Store) loadRateEvents(ctx context.Context, snapshot *repositories.DurableStateSnapshot) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT timestamp_utc, token_cost FROM rate_events ORDER BY timestamp_utc")
	if err != nil {
		return fmt.Errorf("failed to query rate events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var event repositories.StoredRateEvent
		var timestamp string
		if err := rows.Scan(&timestamp, &event.TokenCost); err != nil {
			s.logger.Warn("skipping unreadable rate event row", zap.Error(err))
			continue
		}
		if event.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
			s.logger.Warn("skipping rate event with bad timestamp")
			continue
		}
		snapshot.RateEvents = append(snapshot.RateEvents, event)
	}
	return rows.Err()
}

func (s *Store) loadBudgetState(ctx context.Context, snapshot *repositories.DurableStateSnapshot) error {
	var dateStr string
	var reserved int
	err := s.db.QueryRowContext(ctx,
		"SELECT date_utc, reserved_cents FROM budget_state LIMIT 1").Scan(&dateStr, &reserved)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to query budget state: %w", err)
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		s.logger.Warn("skipping budget state with bad date", zap.String("date", dateStr))
		return nil
	}
	snapshot.BudgetState = &repositories.StoredBudgetState{Date: date, ReservedCents: reserved}
	return nil
}

func (s *Store) loadPolicyState(ctx context.Context, snapshot *repositories.DurableStateSnapshot) error {
	var state repositories.StoredPolicyState
	err := s.db.QueryRowContext(ctx,
		"SELECT policy_version, policy_hash FROM policy_state LIMIT 1").Scan(&state.PolicyVersion, &state.PolicyHash)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to query policy state: %w", err)
	}
	snapshot.PolicyState = &state
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

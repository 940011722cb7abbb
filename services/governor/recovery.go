package governor

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/repositories"
	"github.com/leasegate/leasegate/services/approvals"
	"github.com/leasegate/leasegate/services/audit"
	"github.com/leasegate/leasegate/services/leases"
	"github.com/leasegate/leasegate/services/pools"
)

// recoverDurableState restores budget, rate window, approvals, and active
// leases from the state store. Still-live leases re-reserve their pool
// capacity; leases that expired while the daemon was down are audited as
// expired-by-restart and dropped.
func (s *Service) recoverDurableState(ctx context.Context) {
	if s.stateStore == nil {
		return
	}

	snapshot, err := s.stateStore.Load(ctx)
	if err != nil {
		s.logger.Error("failed to load durable state", zap.Error(err))
		return
	}

	if snapshot.BudgetState != nil {
		s.budget.RestoreState(snapshot.BudgetState.Date, snapshot.BudgetState.ReservedCents)
	}

	if len(snapshot.RateEvents) > 0 {
		events := make([]pools.RateEvent, 0, len(snapshot.RateEvents))
		for _, event := range snapshot.RateEvents {
			events = append(events, pools.RateEvent{Timestamp: event.Timestamp, TokenCost: event.TokenCost})
		}
		s.rate.RestoreEvents(events)
	}

	restored := make([]*approvals.Record, 0, len(snapshot.Approvals))
	for _, stored := range snapshot.Approvals {
		var request models.ApprovalRequest
		if err := json.Unmarshal([]byte(stored.RequestJSON), &request); err != nil {
			s.logger.Warn("skipping corrupt stored approval",
				zap.String("approval_id", stored.ApprovalID), zap.Error(err))
			continue
		}
		// Reviewer quorum and individual reviews are not persisted, so a
		// restored pending approval falls back to a single-reviewer quorum.
		restored = append(restored, &approvals.Record{
			ApprovalID:        stored.ApprovalID,
			Request:           request,
			Status:            parseApprovalStatus(stored.Status),
			ExpiresAt:         stored.ExpiresAt,
			Token:             stored.Token,
			Used:              stored.Used,
			RequiredReviewers: 1,
		})
	}
	s.approvals.Restore(restored)

	now := time.Now().UTC()
	recovered, expired := 0, 0
	for _, stored := range snapshot.ActiveLeases {
		var request models.AcquireLeaseRequest
		var constraints models.LeaseConstraints
		if err := json.Unmarshal([]byte(stored.RequestJSON), &request); err != nil {
			s.logger.Warn("skipping corrupt stored lease",
				zap.String("lease_id", stored.LeaseID), zap.Error(err))
			continue
		}
		if err := json.Unmarshal([]byte(stored.ConstraintsJSON), &constraints); err != nil {
			s.logger.Warn("skipping corrupt stored lease",
				zap.String("lease_id", stored.LeaseID), zap.Error(err))
			continue
		}

		if !stored.ExpiresAt.After(now) {
			_, _ = s.audit.WriteDecision(ctx, &audit.Event{
				EventType:          audit.EventLeaseExpiredByRestart,
				Timestamp:          now,
				ProtocolVersion:    models.ProtocolVersion,
				PolicyHash:         s.policy.CurrentSnapshot().PolicyHash,
				LeaseID:            stored.LeaseID,
				ActorID:            request.ActorID,
				WorkspaceID:        request.WorkspaceID,
				ActionType:         string(request.ActionType),
				ModelID:            request.ModelID,
				EstimatedCostCents: request.EstimatedCostCents,
				Decision:           "expired",
			})
			s.removeStoredLease(ctx, stored.LeaseID)
			expired++
			continue
		}

		s.concurrency.TryAcquire()
		s.compute.TryAcquire(stored.ReservedComputeUnits)
		s.budget.TryReserve(request.EstimatedCostCents)

		s.leases.Add(&leases.Record{
			LeaseID:              stored.LeaseID,
			IdempotencyKey:       stored.IdempotencyKey,
			Request:              request,
			Constraints:          constraints,
			ReservedComputeUnits: stored.ReservedComputeUnits,
			AcquiredAt:           stored.AcquiredAt,
			ExpiresAt:            stored.ExpiresAt,
		})
		recovered++
	}

	s.persistBudgetAndRate(ctx)
	s.persistApprovals(ctx)
	s.persistPolicyState(ctx)

	s.logger.Info("durable state recovered",
		zap.Int("recovered_leases", recovered),
		zap.Int("expired_by_restart", expired),
		zap.Int("approvals", len(restored)))
}

func (s *Service) persistLease(ctx context.Context, lease *leases.Record) {
	if s.stateStore == nil {
		return
	}

	requestJSON, err := json.Marshal(lease.Request)
	if err != nil {
		s.logger.Error("failed to serialize lease request", zap.Error(err))
		return
	}
	constraintsJSON, err := json.Marshal(lease.Constraints)
	if err != nil {
		s.logger.Error("failed to serialize lease constraints", zap.Error(err))
		return
	}

	if err := s.stateStore.UpsertLease(ctx, repositories.StoredLease{
		LeaseID:              lease.LeaseID,
		IdempotencyKey:       lease.IdempotencyKey,
		AcquiredAt:           lease.AcquiredAt,
		ExpiresAt:            lease.ExpiresAt,
		ReservedComputeUnits: lease.ReservedComputeUnits,
		RequestJSON:          string(requestJSON),
		ConstraintsJSON:      string(constraintsJSON),
	}); err != nil {
		s.logger.Error("failed to persist lease",
			zap.String("lease_id", lease.LeaseID), zap.Error(err))
	}
}

func (s *Service) removeStoredLease(ctx context.Context, leaseID string) {
	if s.stateStore == nil {
		return
	}
	if err := s.stateStore.RemoveLease(ctx, leaseID); err != nil {
		s.logger.Error("failed to remove stored lease",
			zap.String("lease_id", leaseID), zap.Error(err))
	}
}

func (s *Service) persistApprovals(ctx context.Context) {
	if s.stateStore == nil {
		return
	}

	records := s.approvals.Snapshot()
	stored := make([]repositories.StoredApproval, 0, len(records))
	for _, record := range records {
		requestJSON, err := json.Marshal(record.Request)
		if err != nil {
			s.logger.Error("failed to serialize approval request",
				zap.String("approval_id", record.ApprovalID), zap.Error(err))
			continue
		}
		stored = append(stored, repositories.StoredApproval{
			ApprovalID:  record.ApprovalID,
			Status:      string(record.Status),
			ExpiresAt:   record.ExpiresAt,
			Token:       record.Token,
			Used:        record.Used,
			RequestJSON: string(requestJSON),
		})
	}

	if err := s.stateStore.ReplaceApprovals(ctx, stored); err != nil {
		s.logger.Error("failed to persist approvals", zap.Error(err))
	}
}

func (s *Service) persistBudgetAndRate(ctx context.Context) {
	if s.stateStore == nil {
		return
	}

	if err := s.stateStore.SaveBudgetState(ctx, repositories.StoredBudgetState{
		Date:          s.budget.CurrentDay(),
		ReservedCents: s.budget.ReservedCents(),
	}); err != nil {
		s.logger.Error("failed to persist budget state", zap.Error(err))
	}

	events := s.rate.SnapshotEvents()
	stored := make([]repositories.StoredRateEvent, 0, len(events))
	for _, event := range events {
		stored = append(stored, repositories.StoredRateEvent{
			Timestamp: event.Timestamp,
			TokenCost: event.TokenCost,
		})
	}
	if err := s.stateStore.ReplaceRateEvents(ctx, stored); err != nil {
		s.logger.Error("failed to persist rate events", zap.Error(err))
	}
}

func (s *Service) persistPolicyState(ctx context.Context) {
	if s.stateStore == nil {
		return
	}

	snapshot := s.policy.CurrentSnapshot()
	if err := s.stateStore.SavePolicyState(ctx, repositories.StoredPolicyState{
		PolicyVersion: snapshot.Policy.PolicyVersion,
		PolicyHash:    snapshot.PolicyHash,
	}); err != nil {
		s.logger.Error("failed to persist policy state", zap.Error(err))
	}
}

func parseApprovalStatus(status string) models.ApprovalStatus {
	switch models.ApprovalStatus(status) {
	case models.ApprovalGranted, models.ApprovalDenied, models.ApprovalExpired:
		return models.ApprovalStatus(status)
	default:
		return models.ApprovalPending
	}
}

package approvals

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leasegate/leasegate/models"
)

// Record is one approval request and its review state. Status reaches Granted
// only when the count of granted reviews meets the required reviewer quorum;
// a single denial is terminal and invalidates any issued token.
type Record struct {
	ApprovalID        string
	Request           models.ApprovalRequest
	Status            models.ApprovalStatus
	ExpiresAt         time.Time
	Token             string
	Used              bool
	RequiredReviewers int
	Reviews           []models.ApprovalDecisionTrace
}

// Store holds approval records and issued tokens.
type Store struct {
	mu      sync.Mutex
	records map[string]*Record
	byToken map[string]*Record
}

// NewStore creates an empty approval store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*Record),
		byToken: make(map[string]*Record),
	}
}

// Create registers a pending approval with a TTL (minimum 30s) and a reviewer
// quorum (minimum 1).
func (s *Store) Create(req models.ApprovalRequest, requiredReviewers int) models.ApprovalRequestResponse {
	ttl := time.Duration(max(30, req.TTLSeconds)) * time.Second
	rec := &Record{
		ApprovalID:        uuid.NewString(),
		Request:           req,
		Status:            models.ApprovalPending,
		ExpiresAt:         time.Now().Add(ttl),
		RequiredReviewers: max(1, requiredReviewers),
	}

	s.mu.Lock()
	s.records[rec.ApprovalID] = rec
	s.mu.Unlock()

	return models.ApprovalRequestResponse{
		ApprovalID:        rec.ApprovalID,
		Status:            models.ApprovalPending,
		ExpiresAt:         rec.ExpiresAt,
		Message:           "approval request created",
		RequiredReviewers: rec.RequiredReviewers,
		IdempotencyKey:    req.IdempotencyKey,
	}
}

// Grant records a grant review by one reviewer.
func (s *Store) Grant(req models.GrantApprovalRequest) models.GrantApprovalResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[req.ApprovalID]
	if !ok {
		return models.GrantApprovalResponse{Message: "approval not found", IdempotencyKey: req.IdempotencyKey}
	}
	if !rec.ExpiresAt.After(time.Now()) {
		rec.Status = models.ApprovalExpired
		return models.GrantApprovalResponse{Message: "approval expired", IdempotencyKey: req.IdempotencyKey}
	}
	if rec.Status == models.ApprovalDenied {
		return models.GrantApprovalResponse{Message: "approval denied", IdempotencyKey: req.IdempotencyKey}
	}

	s.applyReviewLocked(rec, req.GrantedBy, true, "")

	msg := "approval pending additional reviewers"
	if rec.Status == models.ApprovalGranted {
		msg = "approval granted"
	}
	return models.GrantApprovalResponse{
		Granted:           rec.Status == models.ApprovalGranted,
		ApprovalToken:     rec.Token,
		ExpiresAt:         rec.ExpiresAt,
		Message:           msg,
		RequiredReviewers: rec.RequiredReviewers,
		CurrentApprovals:  grantedCount(rec),
		IdempotencyKey:    req.IdempotencyKey,
	}
}

// Deny records a denial review; any denial is terminal.
func (s *Store) Deny(req models.DenyApprovalRequest) models.DenyApprovalResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[req.ApprovalID]
	if !ok {
		return models.DenyApprovalResponse{Message: "approval not found", IdempotencyKey: req.IdempotencyKey}
	}

	s.applyReviewLocked(rec, req.DeniedBy, false, "")
	return models.DenyApprovalResponse{Denied: true, Message: "approval denied", IdempotencyKey: req.IdempotencyKey}
}

// Review records one reviewer's decision, replacing any prior review by the
// same reviewer, then recomputes the approval status.
func (s *Store) Review(req models.ReviewApprovalRequest) models.ReviewApprovalResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[req.ApprovalID]
	if !ok {
		return models.ReviewApprovalResponse{
			Status:         models.ApprovalDenied,
			Message:        "approval not found",
			IdempotencyKey: req.IdempotencyKey,
		}
	}
	if !rec.ExpiresAt.After(time.Now()) {
		rec.Status = models.ApprovalExpired
		return models.ReviewApprovalResponse{
			Status:            models.ApprovalExpired,
			Message:           "approval expired",
			RequiredReviewers: rec.RequiredReviewers,
			CurrentApprovals:  grantedCount(rec),
			IdempotencyKey:    req.IdempotencyKey,
		}
	}

	s.applyReviewLocked(rec, req.ReviewerID, req.Approve, req.Comment)

	var msg string
	switch rec.Status {
	case models.ApprovalGranted:
		msg = "approval granted"
	case models.ApprovalDenied:
		msg = "approval denied"
	default:
		msg = "approval pending additional reviewers"
	}

	return models.ReviewApprovalResponse{
		Accepted:          true,
		Status:            rec.Status,
		ApprovalToken:     rec.Token,
		Message:           msg,
		RequiredReviewers: rec.RequiredReviewers,
		CurrentApprovals:  grantedCount(rec),
		IdempotencyKey:    req.IdempotencyKey,
	}
}

// ValidateToken checks a supplied approval token against expiry, the actor and
// workspace it was issued for, and the caller's requested tools. Single-use
// tokens are consumed exactly once.
func (s *Store) ValidateToken(token, actorID, workspaceID string, requestedTools []models.ToolIntent) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byToken[token]
	if !ok {
		return nil, false
	}
	if !rec.ExpiresAt.After(time.Now()) {
		rec.Status = models.ApprovalExpired
		delete(s.byToken, token)
		return nil, false
	}

	req := rec.Request
	if !strings.EqualFold(actorID, req.ActorID) || !strings.EqualFold(workspaceID, req.WorkspaceID) {
		return nil, false
	}

	scoped := req.ToolID != "" || req.ToolCategory != nil
	if scoped && !scopeSatisfied(req, requestedTools) {
		return nil, false
	}

	if req.SingleUse {
		if rec.Used {
			return nil, false
		}
		rec.Used = true
	}

	return rec, true
}

// ListPending returns non-expired pending approvals matching the filter.
func (s *Store) ListPending(req models.ApprovalQueueRequest) models.ApprovalQueueResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, rec := range s.records {
		if rec.Status == models.ApprovalPending && !rec.ExpiresAt.After(now) {
			rec.Status = models.ApprovalExpired
		}
	}

	items := make([]models.ApprovalQueueItem, 0)
	for _, rec := range s.records {
		if rec.Status != models.ApprovalPending {
			continue
		}
		if req.WorkspaceID != "" && !strings.EqualFold(req.WorkspaceID, rec.Request.WorkspaceID) {
			continue
		}
		if req.ToolID != "" && !strings.EqualFold(req.ToolID, rec.Request.ToolID) {
			continue
		}
		if req.ToolCategory != nil && (rec.Request.ToolCategory == nil || *rec.Request.ToolCategory != *req.ToolCategory) {
			continue
		}
		items = append(items, models.ApprovalQueueItem{
			ApprovalID:        rec.ApprovalID,
			ActorID:           rec.Request.ActorID,
			WorkspaceID:       rec.Request.WorkspaceID,
			Reason:            rec.Request.Reason,
			ToolID:            rec.Request.ToolID,
			ToolCategory:      rec.Request.ToolCategory,
			Status:            rec.Status,
			ExpiresAt:         rec.ExpiresAt,
			RequiredReviewers: rec.RequiredReviewers,
			CurrentApprovals:  grantedCount(rec),
			Reviews:           copyReviews(rec.Reviews),
		})
	}

	return models.ApprovalQueueResponse{Items: items}
}

// Snapshot deep-copies every record for persistence.
func (s *Store) Snapshot() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, &Record{
			ApprovalID:        rec.ApprovalID,
			Request:           rec.Request,
			Status:            rec.Status,
			ExpiresAt:         rec.ExpiresAt,
			Token:             rec.Token,
			Used:              rec.Used,
			RequiredReviewers: rec.RequiredReviewers,
			Reviews:           copyReviews(rec.Reviews),
		})
	}
	return out
}

// Restore replaces all records from persisted state.
func (s *Store) Restore(records []*Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*Record, len(records))
	s.byToken = make(map[string]*Record)
	for _, rec := range records {
		s.records[rec.ApprovalID] = rec
		if rec.Token != "" {
			s.byToken[rec.Token] = rec
		}
	}
}

func (s *Store) applyReviewLocked(rec *Record, reviewerID string, approve bool, comment string) {
	kept := rec.Reviews[:0]
	for _, r := range rec.Reviews {
		if !strings.EqualFold(r.ReviewerID, reviewerID) {
			kept = append(kept, r)
		}
	}
	rec.Reviews = kept

	decision := models.ApprovalDenied
	if approve {
		decision = models.ApprovalGranted
	}
	rec.Reviews = append(rec.Reviews, models.ApprovalDecisionTrace{
		ReviewerID: reviewerID,
		Decision:   decision,
		ReviewedAt: time.Now(),
		Comment:    comment,
		Scope:      buildScope(rec.Request),
	})

	if !approve {
		rec.Status = models.ApprovalDenied
		if rec.Token != "" {
			delete(s.byToken, rec.Token)
		}
		return
	}

	if grantedCount(rec) >= rec.RequiredReviewers {
		rec.Status = models.ApprovalGranted
		if rec.Token == "" {
			rec.Token = "appr-" + strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		s.byToken[rec.Token] = rec
		return
	}
	rec.Status = models.ApprovalPending
}

func scopeSatisfied(req models.ApprovalRequest, tools []models.ToolIntent) bool {
	for _, tool := range tools {
		if req.ToolID != "" && strings.EqualFold(tool.ToolID, req.ToolID) {
			return true
		}
		if req.ToolCategory != nil && tool.Category == *req.ToolCategory {
			return true
		}
	}
	return false
}

func grantedCount(rec *Record) int {
	n := 0
	for _, r := range rec.Reviews {
		if r.Decision == models.ApprovalGranted {
			n++
		}
	}
	return n
}

func copyReviews(reviews []models.ApprovalDecisionTrace) []models.ApprovalDecisionTrace {
	out := make([]models.ApprovalDecisionTrace, len(reviews))
	copy(out, reviews)
	return out
}

func buildScope(req models.ApprovalRequest) string {
	if req.ToolID != "" {
		return "tool:" + req.ToolID
	}
	if req.ToolCategory != nil {
		return fmt.Sprintf("toolCategory:%s", *req.ToolCategory)
	}
	return "general"
}

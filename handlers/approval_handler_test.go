package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leasegate/leasegate/models"
)

func TestApprovalWorkflow(t *testing.T) {
	deps := newTestDeps(t, nil)

	rec := postJSON(t, RequestApproval(deps), models.ApprovalRequest{
		ActorID:        "actor-1",
		WorkspaceID:    "ws-1",
		Reason:         "deploy hotfix",
		RequestedBy:    "actor-1",
		ToolID:         "shell",
		TTLSeconds:     300,
		SingleUse:      true,
		IdempotencyKey: "appr-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeBody[models.ApprovalRequestResponse](t, rec)
	require.NotEmpty(t, created.ApprovalID)
	assert.Equal(t, models.ApprovalPending, created.Status)
	assert.Equal(t, 1, created.RequiredReviewers)

	pending := decodeBody[models.ApprovalQueueResponse](t,
		getRequest(t, ListPendingApprovals(deps), "/?workspace_id=ws-1"))
	require.Len(t, pending.Items, 1)
	assert.Equal(t, created.ApprovalID, pending.Items[0].ApprovalID)

	granted := decodeBody[models.GrantApprovalResponse](t,
		postJSON(t, GrantApproval(deps), models.GrantApprovalRequest{
			ApprovalID:     created.ApprovalID,
			GrantedBy:      "reviewer-1",
			IdempotencyKey: "grant-1",
		}))
	assert.True(t, granted.Granted)
	assert.NotEmpty(t, granted.ApprovalToken)

	pending = decodeBody[models.ApprovalQueueResponse](t,
		getRequest(t, ListPendingApprovals(deps), "/?workspace_id=ws-1"))
	assert.Empty(t, pending.Items)
}

func TestDenyApproval(t *testing.T) {
	deps := newTestDeps(t, nil)

	created := decodeBody[models.ApprovalRequestResponse](t,
		postJSON(t, RequestApproval(deps), models.ApprovalRequest{
			ActorID:        "actor-2",
			WorkspaceID:    "ws-1",
			Reason:         "bulk delete",
			RequestedBy:    "actor-2",
			ToolID:         "shell",
			TTLSeconds:     300,
			IdempotencyKey: "appr-deny",
		}))

	denied := decodeBody[models.DenyApprovalResponse](t,
		postJSON(t, DenyApproval(deps), models.DenyApprovalRequest{
			ApprovalID:     created.ApprovalID,
			DeniedBy:       "reviewer-1",
			IdempotencyKey: "deny-1",
		}))
	assert.True(t, denied.Denied)
}

func TestReviewApproval_ValidationFailure(t *testing.T) {
	deps := newTestDeps(t, nil)

	rec := postJSON(t, ReviewApproval(deps), models.ReviewApprovalRequest{
		ReviewerID: "reviewer-1",
		Approve:    true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

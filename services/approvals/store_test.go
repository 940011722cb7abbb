package approvals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leasegate/leasegate/models"
)

func TestStore_QuorumLifecycle(t *testing.T) {
	store := NewStore()

	created := store.Create(models.ApprovalRequest{
		ActorID:     "alice",
		WorkspaceID: "ws-1",
		Reason:      "deploy script needs exec",
		ToolID:      "shell",
		TTLSeconds:  60,
	}, 2)
	require.NotEmpty(t, created.ApprovalID)
	assert.Equal(t, models.ApprovalPending, created.Status)
	assert.Equal(t, 2, created.RequiredReviewers)

	t.Run("first grant stays pending", func(t *testing.T) {
		resp := store.Grant(models.GrantApprovalRequest{ApprovalID: created.ApprovalID, GrantedBy: "rev-1"})
		assert.False(t, resp.Granted)
		assert.Empty(t, resp.ApprovalToken)
		assert.Equal(t, 1, resp.CurrentApprovals)
	})

	t.Run("same reviewer repeating does not reach quorum", func(t *testing.T) {
		resp := store.Grant(models.GrantApprovalRequest{ApprovalID: created.ApprovalID, GrantedBy: "rev-1"})
		assert.False(t, resp.Granted)
		assert.Equal(t, 1, resp.CurrentApprovals)
	})

	var token string
	t.Run("second distinct reviewer reaches quorum", func(t *testing.T) {
		resp := store.Grant(models.GrantApprovalRequest{ApprovalID: created.ApprovalID, GrantedBy: "rev-2"})
		assert.True(t, resp.Granted)
		require.NotEmpty(t, resp.ApprovalToken)
		assert.Equal(t, 2, resp.CurrentApprovals)
		token = resp.ApprovalToken
	})

	t.Run("further grants keep the same token", func(t *testing.T) {
		resp := store.Grant(models.GrantApprovalRequest{ApprovalID: created.ApprovalID, GrantedBy: "rev-3"})
		assert.True(t, resp.Granted)
		assert.Equal(t, token, resp.ApprovalToken)
	})
}

func TestStore_DenyIsTerminal(t *testing.T) {
	store := NewStore()
	created := store.Create(models.ApprovalRequest{
		ActorID:     "bob",
		WorkspaceID: "ws-1",
		TTLSeconds:  60,
	}, 1)

	grant := store.Grant(models.GrantApprovalRequest{ApprovalID: created.ApprovalID, GrantedBy: "rev-1"})
	require.True(t, grant.Granted)
	token := grant.ApprovalToken

	deny := store.Deny(models.DenyApprovalRequest{ApprovalID: created.ApprovalID, DeniedBy: "rev-2"})
	assert.True(t, deny.Denied)

	_, ok := store.ValidateToken(token, "bob", "ws-1", nil)
	assert.False(t, ok, "denial must invalidate an issued token")

	after := store.Grant(models.GrantApprovalRequest{ApprovalID: created.ApprovalID, GrantedBy: "rev-3"})
	assert.False(t, after.Granted)
	assert.Equal(t, "approval denied", after.Message)
}

func TestStore_ReviewReplacesPriorDecision(t *testing.T) {
	store := NewStore()
	created := store.Create(models.ApprovalRequest{
		ActorID:     "carol",
		WorkspaceID: "ws-2",
		TTLSeconds:  60,
	}, 2)

	first := store.Review(models.ReviewApprovalRequest{ApprovalID: created.ApprovalID, ReviewerID: "rev-1", Approve: true})
	assert.Equal(t, models.ApprovalPending, first.Status)
	assert.Equal(t, 1, first.CurrentApprovals)

	flipped := store.Review(models.ReviewApprovalRequest{ApprovalID: created.ApprovalID, ReviewerID: "rev-1", Approve: false, Comment: "changed my mind"})
	assert.Equal(t, models.ApprovalDenied, flipped.Status)
	assert.Equal(t, 0, flipped.CurrentApprovals)
}

func TestStore_ValidateToken(t *testing.T) {
	cat := models.ToolExec
	store := NewStore()
	created := store.Create(models.ApprovalRequest{
		ActorID:      "dave",
		WorkspaceID:  "ws-3",
		ToolCategory: &cat,
		TTLSeconds:   60,
		SingleUse:    true,
	}, 1)
	grant := store.Grant(models.GrantApprovalRequest{ApprovalID: created.ApprovalID, GrantedBy: "rev-1"})
	require.True(t, grant.Granted)
	token := grant.ApprovalToken

	execTool := []models.ToolIntent{{ToolID: "shell", Category: models.ToolExec}}
	readTool := []models.ToolIntent{{ToolID: "fs", Category: models.ToolFileRead}}

	t.Run("wrong actor", func(t *testing.T) {
		_, ok := store.ValidateToken(token, "mallory", "ws-3", execTool)
		assert.False(t, ok)
	})

	t.Run("wrong workspace", func(t *testing.T) {
		_, ok := store.ValidateToken(token, "dave", "ws-9", execTool)
		assert.False(t, ok)
	})

	t.Run("scope mismatch", func(t *testing.T) {
		_, ok := store.ValidateToken(token, "dave", "ws-3", readTool)
		assert.False(t, ok)
	})

	t.Run("single use consumed once", func(t *testing.T) {
		_, ok := store.ValidateToken(token, "dave", "ws-3", execTool)
		require.True(t, ok)
		_, again := store.ValidateToken(token, "dave", "ws-3", execTool)
		assert.False(t, again, "single-use token must not validate twice")
	})
}

func TestStore_ExpiryAndQueue(t *testing.T) {
	store := NewStore()
	created := store.Create(models.ApprovalRequest{
		ActorID:     "erin",
		WorkspaceID: "ws-4",
		TTLSeconds:  60,
	}, 1)

	queue := store.ListPending(models.ApprovalQueueRequest{WorkspaceID: "ws-4"})
	require.Len(t, queue.Items, 1)
	assert.Equal(t, created.ApprovalID, queue.Items[0].ApprovalID)

	// Force expiry and confirm the record drops out of the queue and rejects
	// grants.
	store.mu.Lock()
	store.records[created.ApprovalID].ExpiresAt = time.Now().Add(-time.Second)
	store.mu.Unlock()

	queue = store.ListPending(models.ApprovalQueueRequest{WorkspaceID: "ws-4"})
	assert.Empty(t, queue.Items)

	resp := store.Grant(models.GrantApprovalRequest{ApprovalID: created.ApprovalID, GrantedBy: "rev-1"})
	assert.False(t, resp.Granted)
	assert.Equal(t, "approval expired", resp.Message)
}

func TestStore_SnapshotRestore(t *testing.T) {
	store := NewStore()
	created := store.Create(models.ApprovalRequest{
		ActorID:     "frank",
		WorkspaceID: "ws-5",
		TTLSeconds:  60,
	}, 1)
	grant := store.Grant(models.GrantApprovalRequest{ApprovalID: created.ApprovalID, GrantedBy: "rev-1"})
	require.True(t, grant.Granted)

	restored := NewStore()
	restored.Restore(store.Snapshot())

	rec, ok := restored.ValidateToken(grant.ApprovalToken, "frank", "ws-5", nil)
	require.True(t, ok)
	assert.Equal(t, models.ApprovalGranted, rec.Status)
}

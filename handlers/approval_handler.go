package handlers

import (
	"net/http"

	"github.com/leasegate/leasegate/app"
	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/utils"
)

// RequestApproval handles POST /api/v1/approvals/request.
func RequestApproval(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ApprovalRequest
		if err := utils.ReadJSON(w, r, &req); err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		resp := deps.Governor.RequestApproval(r.Context(), req)
		_ = utils.WriteCreated(w, resp)
	}
}

// GrantApproval handles POST /api/v1/approvals/grant.
func GrantApproval(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.GrantApprovalRequest
		if err := utils.ReadJSON(w, r, &req); err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		resp := deps.Governor.GrantApproval(r.Context(), req)
		_ = utils.WriteOK(w, resp)
	}
}

// DenyApproval handles POST /api/v1/approvals/deny.
func DenyApproval(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.DenyApprovalRequest
		if err := utils.ReadJSON(w, r, &req); err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		resp := deps.Governor.DenyApproval(r.Context(), req)
		_ = utils.WriteOK(w, resp)
	}
}

// ReviewApproval handles POST /api/v1/approvals/review, the quorum-aware
// review operation.
func ReviewApproval(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ReviewApprovalRequest
		if err := utils.ReadJSON(w, r, &req); err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		resp := deps.Governor.ReviewApproval(r.Context(), req)
		_ = utils.WriteOK(w, resp)
	}
}

// ListPendingApprovals handles GET /api/v1/approvals/pending. Optional
// workspace_id, tool_id, and tool_category query parameters filter the queue.
func ListPendingApprovals(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := models.ApprovalQueueRequest{
			WorkspaceID: r.URL.Query().Get("workspace_id"),
			ToolID:      r.URL.Query().Get("tool_id"),
		}
		if raw := r.URL.Query().Get("tool_category"); raw != "" {
			category := models.ToolCategory(raw)
			req.ToolCategory = &category
		}

		resp := deps.Governor.ListPendingApprovals(req)
		_ = utils.WriteOK(w, resp)
	}
}

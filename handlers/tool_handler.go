package handlers

import (
	"net/http"

	"github.com/leasegate/leasegate/app"
	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/services/tools"
	"github.com/leasegate/leasegate/utils"
)

// RequestToolSubLease handles POST /api/v1/tools/sublease. Sub-lease
// denials, like acquire denials, are structured 200 bodies.
func RequestToolSubLease(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ToolSubLeaseRequest
		if err := utils.ReadJSON(w, r, &req); err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		resp := deps.Governor.RequestToolSubLease(r.Context(), req)
		_ = utils.WriteOK(w, resp)
	}
}

// ExecuteToolCall handles POST /api/v1/tools/execute.
func ExecuteToolCall(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ToolExecutionRequest
		if err := utils.ReadJSON(w, r, &req); err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		resp := deps.Governor.ExecuteToolCall(r.Context(), &req)
		_ = utils.WriteOK(w, resp)
	}
}

// ListTools handles GET /api/v1/tools.
func ListTools(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, map[string]interface{}{
			"tools": deps.ToolRegistry.All(),
		})
	}
}

// RegisterTool handles POST /api/v1/tools. Registration only catalogs the
// tool and its cost weights; whether a lease may use it is still a policy
// decision at sub-lease time.
func RegisterTool(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var def tools.Definition
		if err := utils.ReadJSON(w, r, &def); err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		if def.ToolID == "" {
			_ = utils.WriteBadRequest(w, "tool_id is required", nil)
			return
		}

		deps.ToolRegistry.Register(def)
		_ = utils.WriteCreated(w, def)
	}
}

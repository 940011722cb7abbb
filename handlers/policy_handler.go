package handlers

import (
	"net/http"

	"github.com/leasegate/leasegate/app"
	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/utils"
)

// StagePolicyBundle handles POST /api/v1/policy/stage. Staging validates
// and parks a bundle; nothing is enforced until activation.
func StagePolicyBundle(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var bundle models.PolicyBundle
		if err := utils.ReadJSON(w, r, &bundle); err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		if err := utils.ValidateStruct(&bundle); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		resp := deps.Governor.StagePolicyBundle(bundle)
		if !resp.Accepted {
			_ = utils.WriteBadRequest(w, resp.Message, nil)
			return
		}
		_ = utils.WriteOK(w, resp)
	}
}

// ActivatePolicy handles POST /api/v1/policy/activate.
func ActivatePolicy(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ActivatePolicyRequest
		if err := utils.ReadJSON(w, r, &req); err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		resp := deps.Governor.ActivatePolicy(r.Context(), req)
		if !resp.Activated {
			_ = utils.WriteNotFound(w, resp.Message)
			return
		}
		_ = utils.WriteOK(w, resp)
	}
}

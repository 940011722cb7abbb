package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/leasegate/leasegate/app"
	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/utils"
)

// AcquireLease handles POST /api/v1/leases/acquire. Denials are structured
// 200 responses with a Retry-After hint, not HTTP errors: a deny is a
// governed decision, not a transport failure.
func AcquireLease(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.AcquireLeaseRequest
		if err := utils.ReadJSON(w, r, &req); err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		resp := deps.Admitter().Acquire(r.Context(), &req)
		if !resp.Granted {
			_ = utils.WriteDenied(w, resp.RetryAfterMs, resp)
			return
		}
		_ = utils.WriteOK(w, resp)
	}
}

// ReleaseLease handles POST /api/v1/leases/release. The classification in
// the body distinguishes recorded settlements from unknown or replayed
// lease ids.
func ReleaseLease(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ReleaseLeaseRequest
		if err := utils.ReadJSON(w, r, &req); err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		resp := deps.Admitter().Release(r.Context(), &req)
		_ = utils.WriteOK(w, resp)
	}
}

// VerifyReceipt handles GET /api/v1/receipts/verify?signature=...
func VerifyReceipt(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signature := r.URL.Query().Get("signature")
		if signature == "" {
			_ = utils.WriteBadRequest(w, "signature query parameter is required", nil)
			return
		}

		claims, err := deps.Governor.VerifyReceipt(signature)
		if err != nil {
			deps.Logger.Debug("receipt verification failed", zap.Error(err))
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteOK(w, map[string]interface{}{
			"valid":  true,
			"claims": claims,
		})
	}
}

package handlers

import (
	"net/http"

	"github.com/leasegate/leasegate/app"
	"github.com/leasegate/leasegate/utils"
)

// GovernorStatus handles GET /api/v1/status.
func GovernorStatus(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, deps.Governor.GetStatus())
	}
}

// Metrics handles GET /api/v1/metrics. The snapshot comes from the hub when
// quota enforcement is enabled so both surfaces report the same counters.
func Metrics(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Hub != nil {
			_ = utils.WriteOK(w, deps.Hub.GetMetrics())
			return
		}
		_ = utils.WriteOK(w, deps.Governor.GetMetricsSnapshot())
	}
}

// SafetyInterventions handles GET /api/v1/status/interventions.
func SafetyInterventions(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, map[string]interface{}{
			"interventions": deps.Governor.SafetyInterventions(),
		})
	}
}

// DailyReport handles GET /api/v1/reports/daily. Cost attribution lives in
// the quota hub; without it there is nothing to report.
func DailyReport(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Hub == nil {
			_ = utils.WriteNotFound(w, "quota hub is not enabled")
			return
		}
		_ = utils.WriteOK(w, deps.Hub.DailyReport())
	}
}

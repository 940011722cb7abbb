package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/leasegate/leasegate/app"
)

// HealthCheck returns a simple health check handler
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// ReadinessCheck reports whether the governor can take traffic. The audit
// chain is the only dependency that can silently degrade, so its failed
// write counter is surfaced here.
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		status := "ready"

		if deps.Governor == nil {
			status = "not_ready"
			checks["governor"] = "not_initialized"
		} else {
			checks["governor"] = "healthy"
		}

		if deps.Audit == nil {
			status = "not_ready"
			checks["audit"] = "not_initialized"
		} else if deps.Audit.FailedWrites() > 0 {
			checks["audit"] = "degraded"
		} else {
			checks["audit"] = "healthy"
		}

		snapshot := deps.Policy.CurrentSnapshot()
		if snapshot.PolicyHash == "" {
			status = "not_ready"
			checks["policy"] = "no_active_policy"
		} else {
			checks["policy"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if status == "ready" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"checks": checks,
		})
	}
}

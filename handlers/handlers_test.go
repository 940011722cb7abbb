package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/leasegate/leasegate/app"
	"github.com/leasegate/leasegate/config"
	"github.com/leasegate/leasegate/models"
)

func newTestDeps(t *testing.T, mutate func(*config.Config)) *app.Dependencies {
	t.Helper()

	cfg := &config.Config{
		Environment: "test",
		LogLevel:    "debug",
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8090,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Governor: config.GovernorConfig{
			LeaseTTL:                  2 * time.Minute,
			MaxInFlight:               16,
			DailyBudgetCents:          10_000,
			MaxRequestsPerMinute:      600,
			MaxTokensPerMinute:        200_000,
			MaxContextTokens:          32_000,
			MaxRetrievedChunks:        50,
			MaxToolOutputTokens:       16_000,
			MaxToolCallsPerLease:      20,
			MaxComputeUnits:           1_000,
			RateWindow:                time.Minute,
			ReceiptThresholdCostCents: 500,
			ReceiptSigningKey:         "test-signing-key",
			RetryStormThreshold:       10,
			PolicyDenyThreshold:       5,
			ToolLoopThreshold:         8,
			CircuitBreakerDuration:    time.Minute,
			ActorCooldownDuration:     time.Minute,
			ExpirySweepInterval:       time.Second,
		},
		Audit: config.AuditConfig{
			Directory: t.TempDir(),
			QueueSize: 64,
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	deps, err := app.NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close(context.Background()) })
	return deps
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func newRecorderFor(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func getRequest(t *testing.T, handler http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func acquireBody(key string) models.AcquireLeaseRequest {
	return models.AcquireLeaseRequest{
		OrgID:                 "org-1",
		ActorID:               "actor-1",
		WorkspaceID:           "ws-1",
		PrincipalType:         models.PrincipalHuman,
		Role:                  models.RoleMember,
		ActionType:            models.ActionChatCompletion,
		ModelID:               "gpt-low",
		EstimatedPromptTokens: 100,
		MaxOutputTokens:       200,
		EstimatedCostCents:    10,
		IdempotencyKey:        key,
	}
}

package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/services/audit"
	"github.com/leasegate/leasegate/services/governor"
	"github.com/leasegate/leasegate/services/policy"
)

func newTestHub(t *testing.T, limits Limits) *Hub {
	t.Helper()
	logger := zap.NewNop()

	writer, err := audit.NewJSONLWriter(t.TempDir())
	require.NoError(t, err)
	auditService := audit.NewService(writer, logger, audit.DefaultConfig())
	require.NoError(t, auditService.Start())
	t.Cleanup(func() { _ = auditService.Stop(time.Second) })

	engine, err := policy.NewFileEngine("", 0, logger)
	require.NoError(t, err)

	gov := governor.NewService(governor.DefaultOptions(), governor.Dependencies{
		Policy: engine,
		Audit:  auditService,
	}, logger)
	t.Cleanup(gov.Close)

	return NewHub(gov, limits, logger)
}

func hubRequest(key string) *models.AcquireLeaseRequest {
	req := quotaRequest("actor-1", "ws-1", 10)
	req.IdempotencyKey = key
	return req
}

func TestHub_QuotaDenialReleasesGovernorLease(t *testing.T) {
	hub := newTestHub(t, Limits{
		ActorDailyBudgetCents: map[string]int{"actor-1": 5},
	})

	resp := hub.Acquire(context.Background(), hubRequest("hub-key-1"))

	require.False(t, resp.Granted)
	assert.Equal(t, ReasonActorExhausted, resp.DeniedReason)
	assert.GreaterOrEqual(t, resp.RetryAfterMs, 250)

	// The governor grant must have been rolled back with the quota denial.
	assert.Equal(t, 0, hub.GetMetrics().ActiveLeases)
	assert.Equal(t, 1, hub.DailyReport().TopDeniedReasons[ReasonActorExhausted])
}

func TestHub_GovernorDenialIsCounted(t *testing.T) {
	hub := newTestHub(t, Limits{})

	req := hubRequest("hub-key-2")
	req.ActorID = ""
	resp := hub.Acquire(context.Background(), req)

	require.False(t, resp.Granted)
	assert.Equal(t, "invalid_request", resp.DeniedReason)
	assert.Equal(t, 1, hub.DailyReport().TopDeniedReasons["invalid_request"])
}

func TestHub_ReleaseSettlesQuotaAndAttribution(t *testing.T) {
	hub := newTestHub(t, Limits{
		OrgDailyBudgetCents: 1000,
		MaxInFlightPerActor: 2,
	})

	resp := hub.Acquire(context.Background(), hubRequest("hub-key-3"))
	require.True(t, resp.Granted)
	assert.Equal(t, 10, hub.Quota().OrgSpendCents())
	assert.Equal(t, 1, hub.Quota().ActorInFlight("actor-1"))

	release := hub.Release(context.Background(), &models.ReleaseLeaseRequest{
		LeaseID:         resp.LeaseID,
		ActualCostCents: 7,
		Outcome:         models.OutcomeSuccess,
	})

	require.Equal(t, models.ReleaseRecorded, release.Classification)
	assert.Equal(t, 0, hub.Quota().ActorInFlight("actor-1"))

	report := hub.DailyReport()
	assert.Equal(t, 7, report.TotalSpendCents)
	require.NotEmpty(t, report.TopSpenders)
	assert.Equal(t, "actor-1", report.TopSpenders[0].ActorID)
}

func TestHub_IdempotentReplayDoesNotDoubleDebitQuota(t *testing.T) {
	hub := newTestHub(t, Limits{OrgDailyBudgetCents: 1000})

	first := hub.Acquire(context.Background(), hubRequest("hub-replay"))
	require.True(t, first.Granted)

	second := hub.Acquire(context.Background(), hubRequest("hub-replay"))
	require.True(t, second.Granted)
	assert.Equal(t, first.LeaseID, second.LeaseID)
	assert.Equal(t, 10, hub.Quota().OrgSpendCents())
}

func TestHub_UnknownLeaseReleasePassesThrough(t *testing.T) {
	hub := newTestHub(t, Limits{})

	release := hub.Release(context.Background(), &models.ReleaseLeaseRequest{
		LeaseID: "missing",
		Outcome: models.OutcomeSuccess,
	})

	assert.Equal(t, models.ReleaseLeaseNotFound, release.Classification)
}

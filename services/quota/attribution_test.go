package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leasegate/leasegate/models"
)

func TestTracker_ReleaseAttribution(t *testing.T) {
	tracker := NewAttributionTracker()

	heavy := quotaRequest("actor-1", "ws-1", 0)
	light := quotaRequest("actor-2", "ws-1", 0)

	tracker.RecordRelease(heavy, &models.ReleaseLeaseRequest{
		LeaseID:         "lease-1",
		ActualCostCents: 40,
		ToolCalls: []models.ToolCallUsage{
			{ToolID: "search", Category: models.ToolNetworkRead},
		},
	})
	tracker.RecordRelease(light, &models.ReleaseLeaseRequest{LeaseID: "lease-2", ActualCostCents: 10})

	report := tracker.BuildDailyReport(0)

	// Model rows sum 50; the tool row carries the same 40 again.
	assert.Equal(t, 90, report.TotalSpendCents)
	require.NotEmpty(t, report.TopSpenders)
	assert.Equal(t, "actor-1", report.TopSpenders[0].ActorID)
	assert.Equal(t, 40, report.TopSpenders[0].SpendCents)

	foundTool := false
	for _, row := range report.TopSpenders {
		if row.ToolID == "search" {
			foundTool = true
			assert.Equal(t, 40, row.SpendCents)
			assert.Equal(t, 1, row.Count)
		}
	}
	assert.True(t, foundTool)
}

func TestTracker_DenySurgeAlert(t *testing.T) {
	tracker := NewAttributionTracker()
	tracker.SurgeDenialsThreshold = 3

	req := quotaRequest("actor-1", "ws-1", 0)
	for i := 0; i < 3; i++ {
		tracker.RecordDenied(req, "rate_limit_reached")
	}

	report := tracker.BuildDailyReport(0)

	assert.Equal(t, 3, report.TopDeniedReasons["rate_limit_reached"])
	require.Len(t, report.Alerts, 1)
	assert.Equal(t, "deny_surge", report.Alerts[0].Code)
}

func TestTracker_BudgetAlertThresholds(t *testing.T) {
	cases := []struct {
		name       string
		spendCents int
		wantCode   string
	}{
		{"eighty percent", 85, "budget_80"},
		{"ninety percent", 95, "budget_90"},
		{"fully spent", 120, "budget_100"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracker := NewAttributionTracker()
			tracker.RecordRelease(quotaRequest("actor-1", "ws-1", 0), &models.ReleaseLeaseRequest{
				LeaseID:         "lease-1",
				ActualCostCents: tc.spendCents,
			})

			report := tracker.BuildDailyReport(100)

			require.Len(t, report.Alerts, 1)
			assert.Equal(t, tc.wantCode, report.Alerts[0].Code)
		})
	}
}

func TestTracker_RepeatedPolicyDenialAlert(t *testing.T) {
	tracker := NewAttributionTracker()
	tracker.SurgeDenialsThreshold = 100

	req := quotaRequest("actor-1", "ws-1", 0)
	for i := 0; i < 3; i++ {
		tracker.RecordDenied(req, "model_not_allowed")
	}
	for i := 0; i < 2; i++ {
		tracker.RecordDenied(req, "capability_not_allowed_for_role")
	}

	report := tracker.BuildDailyReport(0)

	require.Len(t, report.Alerts, 1)
	assert.Equal(t, "repeated_policy_denials", report.Alerts[0].Code)
	assert.Equal(t, 5, report.TopSpenders[0].Count)
}

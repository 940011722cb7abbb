package quota

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leasegate/leasegate/models"
)

const denialSurgeWindow = time.Minute

// AttributionTracker aggregates spend and denial counts per
// org/workspace/actor/model/tool combination and raises threshold alerts in
// the daily report.
type AttributionTracker struct {
	mu            sync.Mutex
	rows          map[string]*models.CostAttributionRow
	deniedReasons map[string]int
	recentDenials []time.Time

	// SurgeDenialsThreshold triggers a deny_surge alert when that many
	// denials land within one minute.
	SurgeDenialsThreshold int
	// RepeatedPolicyDenialThreshold triggers a repeated_policy_denials
	// alert on accumulated policy-shaped denial reasons.
	RepeatedPolicyDenialThreshold int
}

// NewAttributionTracker creates a tracker with default alert thresholds.
func NewAttributionTracker() *AttributionTracker {
	return &AttributionTracker{
		rows:                          make(map[string]*models.CostAttributionRow),
		deniedReasons:                 make(map[string]int),
		SurgeDenialsThreshold:         8,
		RepeatedPolicyDenialThreshold: 5,
	}
}

// RecordDenied counts a denial against its reason and the requesting
// identity.
func (t *AttributionTracker) RecordDenied(req *models.AcquireLeaseRequest, deniedReason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.deniedReasons[strings.ToLower(deniedReason)]++
	t.recentDenials = append(t.recentDenials, time.Now().UTC())
	t.trimRecentDenialsLocked()

	row := t.rowLocked(req, "-")
	row.Count++
}

// RecordRelease attributes settled spend to the model row and to one row per
// tool the lease invoked.
func (t *AttributionTracker) RecordRelease(req *models.AcquireLeaseRequest, release *models.ReleaseLeaseRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row := t.rowLocked(req, "-")
	row.SpendCents += release.ActualCostCents
	row.Count++

	for _, call := range release.ToolCalls {
		toolRow := t.rowLocked(req, call.ToolID)
		toolRow.SpendCents += release.ActualCostCents
		toolRow.Count++
	}
}

// BuildDailyReport snapshots total spend, the top ten spenders and denial
// reasons, and any active alerts against the given budget limit.
func (t *AttributionTracker) BuildDailyReport(budgetLimitCents int) models.DailyReportResponse {
	t.mu.Lock()
	defer t.mu.Unlock()

	spend := 0
	top := make([]models.CostAttributionRow, 0, len(t.rows))
	for _, row := range t.rows {
		spend += row.SpendCents
		top = append(top, *row)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].SpendCents != top[j].SpendCents {
			return top[i].SpendCents > top[j].SpendCents
		}
		return top[i].Count > top[j].Count
	})
	if len(top) > 10 {
		top = top[:10]
	}

	type reasonCount struct {
		reason string
		count  int
	}
	reasons := make([]reasonCount, 0, len(t.deniedReasons))
	for reason, count := range t.deniedReasons {
		reasons = append(reasons, reasonCount{reason, count})
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i].count > reasons[j].count })
	if len(reasons) > 10 {
		reasons = reasons[:10]
	}
	denied := make(map[string]int, len(reasons))
	for _, rc := range reasons {
		denied[rc.reason] = rc.count
	}

	return models.DailyReportResponse{
		GeneratedAt:      time.Now().UTC(),
		TotalSpendCents:  spend,
		TopSpenders:      top,
		TopDeniedReasons: denied,
		Alerts:           t.evaluateAlertsLocked(spend, budgetLimitCents),
	}
}

func (t *AttributionTracker) evaluateAlertsLocked(spendCents, budgetLimitCents int) []models.AlertSignal {
	var alerts []models.AlertSignal
	now := time.Now().UTC()

	if budgetLimitCents > 0 {
		percent := float64(spendCents) / float64(budgetLimitCents) * 100
		switch {
		case percent >= 100:
			alerts = append(alerts, models.AlertSignal{Code: "budget_100", Message: "budget reached 100%", TriggeredAt: now})
		case percent >= 90:
			alerts = append(alerts, models.AlertSignal{Code: "budget_90", Message: "budget reached 90%", TriggeredAt: now})
		case percent >= 80:
			alerts = append(alerts, models.AlertSignal{Code: "budget_80", Message: "budget reached 80%", TriggeredAt: now})
		}
	}

	t.trimRecentDenialsLocked()
	if len(t.recentDenials) >= t.SurgeDenialsThreshold {
		alerts = append(alerts, models.AlertSignal{
			Code:        "deny_surge",
			Message:     fmt.Sprintf("denials surged to %d within one minute", len(t.recentDenials)),
			TriggeredAt: now,
		})
	}

	policyDenials := 0
	for reason, count := range t.deniedReasons {
		if strings.Contains(reason, "policy") || strings.Contains(reason, "not_allowed") {
			policyDenials += count
		}
	}
	if policyDenials >= t.RepeatedPolicyDenialThreshold {
		alerts = append(alerts, models.AlertSignal{
			Code:        "repeated_policy_denials",
			Message:     fmt.Sprintf("policy denials repeated %d times", policyDenials),
			TriggeredAt: now,
		})
	}

	return alerts
}

func (t *AttributionTracker) trimRecentDenialsLocked() {
	cutoff := time.Now().UTC().Add(-denialSurgeWindow)
	i := 0
	for i < len(t.recentDenials) && t.recentDenials[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		t.recentDenials = append(t.recentDenials[:0], t.recentDenials[i:]...)
	}
}

func (t *AttributionTracker) rowLocked(req *models.AcquireLeaseRequest, toolID string) *models.CostAttributionRow {
	key := strings.ToLower(req.OrgID + "|" + req.WorkspaceID + "|" + req.ActorID + "|" + req.ModelID + "|" + toolID)
	if row, ok := t.rows[key]; ok {
		return row
	}
	row := &models.CostAttributionRow{
		OrgID:       req.OrgID,
		WorkspaceID: req.WorkspaceID,
		ActorID:     req.ActorID,
		ModelID:     req.ModelID,
		ToolID:      toolID,
	}
	t.rows[key] = row
	return row
}

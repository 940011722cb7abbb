package quota

import (
	"strings"

	"github.com/leasegate/leasegate/models"
)

// Limits carries the hub-level hierarchical quota knobs. Zero values disable
// the corresponding level; per-workspace and per-actor maps are matched
// case-insensitively.
type Limits struct {
	OrgDailyBudgetCents       int            `json:"org_daily_budget_cents"`
	WorkspaceDailyBudgetCents map[string]int `json:"workspace_daily_budget_cents,omitempty"`
	ActorDailyBudgetCents     map[string]int `json:"actor_daily_budget_cents,omitempty"`

	MaxInFlightPerActor      int                 `json:"max_in_flight_per_actor"`
	RoleMaxInFlightOverrides map[models.Role]int `json:"role_max_in_flight_overrides,omitempty"`

	OrgMaxRequestsPerMinute int `json:"org_max_requests_per_minute"`
	OrgMaxTokensPerMinute   int `json:"org_max_tokens_per_minute"`

	WorkspaceMaxRequestsPerMinute map[string]int `json:"workspace_max_requests_per_minute,omitempty"`
	WorkspaceMaxTokensPerMinute   map[string]int `json:"workspace_max_tokens_per_minute,omitempty"`

	ActorMaxRequestsPerMinute int `json:"actor_max_requests_per_minute"`
	ActorMaxTokensPerMinute   int `json:"actor_max_tokens_per_minute"`
}

func (l Limits) actorMaxInFlight(role models.Role) int {
	limit := l.MaxInFlightPerActor
	for r, override := range l.RoleMaxInFlightOverrides {
		if strings.EqualFold(string(r), string(role)) && override > 0 {
			limit = override
		}
	}
	return limit
}

func lookupFold(m map[string]int, key string) (int, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return 0, false
}

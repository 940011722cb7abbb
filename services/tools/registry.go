package tools

import (
	"strings"
	"sync"

	"github.com/leasegate/leasegate/models"
)

// Definition describes a registered tool and its cost weights. Weights feed
// compute-unit estimation for tool-call leases.
type Definition struct {
	ToolID             string              `json:"tool_id"`
	Category           models.ToolCategory `json:"category"`
	FixedCostWeight    int                 `json:"fixed_cost_weight"`
	VariableCostWeight float64             `json:"variable_cost_weight"`
}

// Registry is a case-insensitive tool catalog.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Definition
}

// NewRegistry creates a registry seeded with the given definitions.
func NewRegistry(seed ...Definition) *Registry {
	r := &Registry{tools: make(map[string]Definition, len(seed))}
	for _, def := range seed {
		r.Register(def)
	}
	return r
}

// Register adds or replaces a tool definition.
func (r *Registry) Register(def Definition) {
	if def.FixedCostWeight <= 0 {
		def.FixedCostWeight = 1
	}
	if def.VariableCostWeight <= 0 {
		def.VariableCostWeight = 1.0
	}

	r.mu.Lock()
	r.tools[strings.ToLower(def.ToolID)] = def
	r.mu.Unlock()
}

// Get looks up a tool by id.
func (r *Registry) Get(toolID string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[strings.ToLower(toolID)]
	return def, ok
}

// All returns every registered definition.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.tools))
	for _, def := range r.tools {
		out = append(out, def)
	}
	return out
}

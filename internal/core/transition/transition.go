// Package transition contains the pure stage-transition validator.
// Validation is a lookup against an immutable per-type transition graph and
// performs no I/O.
package transition

import (
	"fmt"

	"github.com/example/loanflow/internal/models"
)

// Graph maps each stage to the set of stages it may move to. A stage mapping
// to an empty set is terminal.
type Graph map[models.Stage][]models.Stage

// Map holds one transition graph per entity type. Loaded once at process
// start and never mutated afterwards.
type Map map[models.EntityType]Graph

// Decision is the outcome of a transition validation. Reason is set when the
// transition is rejected.
type Decision struct {
	Allowed bool
	Reason  string
}

// InvalidTransitionError reports an illegal stage change. The entity is left
// unchanged when this is returned.
type InvalidTransitionError struct {
	EntityType models.EntityType
	From       models.Stage
	To         models.Stage
	Reason     string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition for %s: %s -> %s", e.EntityType, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Validate decides whether an entity of the given type may move from one
// stage to another. Self-transitions are always rejected: a transition must
// move to a materially different legal stage.
func (m Map) Validate(t models.EntityType, from, to models.Stage) Decision {
	graph, ok := m[t]
	if !ok {
		return Decision{Reason: fmt.Sprintf("no transition graph for entity type %s", t)}
	}
	if from == to {
		return Decision{Reason: fmt.Sprintf("transition %s -> %s is a no-op", from, to)}
	}
	allowed, ok := graph[from]
	if !ok {
		return Decision{Reason: fmt.Sprintf("unknown stage %s for entity type %s", from, t)}
	}
	for _, s := range allowed {
		if s == to {
			return Decision{Allowed: true}
		}
	}
	return Decision{Reason: fmt.Sprintf("stage %s does not allow a transition to %s", from, to)}
}

// IsTerminal reports whether a stage has no outgoing transitions.
func (m Map) IsTerminal(t models.EntityType, stage models.Stage) bool {
	graph, ok := m[t]
	if !ok {
		return false
	}
	allowed, ok := graph[stage]
	if !ok {
		return false
	}
	return len(allowed) == 0
}

// KnownStage reports whether the stage appears anywhere in the graph for the
// given entity type, either as a source or as a destination.
func (m Map) KnownStage(t models.EntityType, stage models.Stage) bool {
	graph, ok := m[t]
	if !ok {
		return false
	}
	if _, ok := graph[stage]; ok {
		return true
	}
	for _, targets := range graph {
		for _, s := range targets {
			if s == stage {
				return true
			}
		}
	}
	return false
}

// TerminalStages returns every stage with no outgoing transitions for the
// given entity type.
func (m Map) TerminalStages(t models.EntityType) []models.Stage {
	graph, ok := m[t]
	if !ok {
		return nil
	}
	var stages []models.Stage
	for stage, targets := range graph {
		if len(targets) == 0 {
			stages = append(stages, stage)
		}
	}
	return stages
}

// Default returns the built-in transition map for the three entity types.
// A YAML rule pack may override it.
func Default() Map {
	return Map{
		models.EntityLead: Graph{
			"NEW":       {"CONTACTED", "LOST"},
			"CONTACTED": {"QUALIFIED", "LOST"},
			"QUALIFIED": {"CONVERTED", "LOST"},
			"CONVERTED": {},
			"LOST":      {},
		},
		models.EntityCase: Graph{
			"OPENED":            {"DOCS_PENDING", "WITHDRAWN"},
			"DOCS_PENDING":      {"DOCS_COMPLETE", "WITHDRAWN"},
			"DOCS_COMPLETE":     {"SUBMITTED_TO_BANK", "DOCS_PENDING", "WITHDRAWN"},
			"SUBMITTED_TO_BANK": {"SANCTIONED", "REJECTED", "WITHDRAWN"},
			"SANCTIONED":        {"DISBURSED", "WITHDRAWN"},
			"DISBURSED":         {},
			"REJECTED":          {},
			"WITHDRAWN":         {},
		},
		models.EntityBankApp: Graph{
			"CREATED":      {"LOGGED_IN"},
			"LOGGED_IN":    {"UNDER_REVIEW"},
			"UNDER_REVIEW": {"SANCTIONED", "DECLINED"},
			"SANCTIONED":   {"DISBURSED"},
			"DISBURSED":    {},
			"DECLINED":     {},
		},
	}
}

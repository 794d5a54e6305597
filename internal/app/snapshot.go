// Package app contains the application layer: service implementations, the
// automation rule engine, and action execution.
package app

import (
	"time"

	"github.com/example/loanflow/internal/models"
)

// SnapshotFields flattens an entity snapshot plus derived metrics into the
// map the condition evaluator works over. Derived metrics are computed here
// so the evaluator itself has no notion of time or storage.
func SnapshotFields(entity *models.Entity, now time.Time) map[string]any {
	age := now.Sub(entity.StageEnteredAt)
	fields := map[string]any{
		"type":           string(entity.Type),
		"stage":          string(entity.Stage),
		"awaiting_party": string(entity.AwaitingParty),
		"assignee":       entity.Assignee,
		"priority":       entity.Priority,
		"age_minutes":    age.Minutes(),
		"age_hours":      age.Hours(),
		"age_days":       age.Hours() / 24,
	}

	for k, v := range entity.Metadata {
		if _, taken := fields[k]; !taken {
			fields[k] = v
		}
	}

	// followup_overdue derives from the next_followup_at metadata timestamp
	// when present.
	if raw, ok := entity.Metadata["next_followup_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			fields["followup_overdue"] = now.After(t)
		}
	}

	return fields
}

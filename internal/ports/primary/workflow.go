// Package primary defines the driving ports: the service interfaces exposed
// to the surrounding CRUD layer and to the scheduling loop.
package primary

import (
	"context"

	"github.com/example/loanflow/internal/core/action"
	"github.com/example/loanflow/internal/models"
)

// ActionOutcome is the result class of one executed action.
type ActionOutcome string

// Action outcomes. Deduped means the effect key already existed and the
// action was intentionally skipped.
const (
	ActionOK      ActionOutcome = "ok"
	ActionFailed  ActionOutcome = "failed"
	ActionDeduped ActionOutcome = "deduped"
)

// ActionResult records the outcome of one action of one fired rule.
type ActionResult struct {
	RuleID    string
	Action    action.Type
	Outcome   ActionOutcome
	Retryable bool
	Err       string
}

// TransitionRequest asks for a stage change on an entity.
type TransitionRequest struct {
	EntityID string
	To       models.Stage
	Actor    string
}

// WorkflowService is the synchronous mutation path: it validates and records
// stage transitions and fires ON_CREATE / ON_STAGE_CHANGE automation inline.
// This path never blocks on the dispatch gateway; NOTIFY actions are queued
// as reminder jobs.
type WorkflowService interface {
	// CreateEntity registers a new entity and fires ON_CREATE automation.
	CreateEntity(ctx context.Context, entity *models.Entity) ([]ActionResult, error)

	// RequestTransition validates and applies a stage change, appends the
	// history record, and fires ON_STAGE_CHANGE automation. A rejected
	// transition returns *transition.InvalidTransitionError and leaves the
	// entity unchanged.
	RequestTransition(ctx context.Context, req TransitionRequest) ([]ActionResult, error)

	// GetEntity returns a snapshot of an entity.
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
}

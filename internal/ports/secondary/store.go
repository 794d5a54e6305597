// Package secondary defines the driven ports: interfaces the core consumes,
// implemented by adapters.
package secondary

import (
	"context"
	"errors"
	"time"

	"github.com/example/loanflow/internal/models"
)

// ErrStageConflict is returned by ApplyTransition when the entity's stage no
// longer matches the expected current stage (a concurrent mutation won).
var ErrStageConflict = errors.New("entity stage changed concurrently")

// EntityStore is the adapter to the system of record for workflow entities.
// The core reads snapshots and requests mutations; it never holds the store
// handle as ambient state.
type EntityStore interface {
	// Get returns a snapshot of an entity.
	Get(ctx context.Context, id string) (*models.Entity, error)

	// Create persists a new entity record.
	Create(ctx context.Context, entity *models.Entity) error

	// ListNonTerminal returns snapshots of all entities of the given type
	// whose stage still has outgoing transitions.
	ListNonTerminal(ctx context.Context, t models.EntityType, terminal []models.Stage) ([]*models.Entity, error)

	// ApplyTransition conditionally moves the entity from one stage to
	// another, resetting stage_entered_at. Returns ErrStageConflict if the
	// entity is no longer in the expected stage.
	ApplyTransition(ctx context.Context, id string, from, to models.Stage, at time.Time) error

	// AppendHistory appends a stage-history record and returns the assigned
	// per-entity monotonic sequence number.
	AppendHistory(ctx context.Context, rec *models.HistoryRecord) (int64, error)

	// SetField writes a metadata field on the entity.
	SetField(ctx context.Context, id, field string, value any) error

	// Assign sets the entity's assignee.
	Assign(ctx context.Context, id, assignee string) error

	// SetFlag sets a named boolean metadata flag on the entity.
	SetFlag(ctx context.Context, id, name string, value bool) error
}

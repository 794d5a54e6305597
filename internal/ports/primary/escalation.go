package primary

import (
	"context"

	"github.com/example/loanflow/internal/models"
)

// OpenEscalationRequest asks for an escalation to be opened for an entity.
type OpenEscalationRequest struct {
	EntityID string
	Level    int
	Reason   string
}

// EscalationFilters narrows escalation listings.
type EscalationFilters struct {
	EntityID string
	OpenOnly bool
}

// EscalationService maintains the ordered escalation ladder per entity.
// Levels are monotonic within an open episode and resolution is idempotent.
type EscalationService interface {
	// Open opens an escalation, or returns the existing open escalation
	// unchanged when one at the same or a higher level is already open for
	// the same entity and reason.
	Open(ctx context.Context, req OpenEscalationRequest) (*models.Escalation, error)

	// Resolve closes an escalation. Resolving an already-resolved
	// escalation is a no-op, not an error.
	Resolve(ctx context.Context, escalationID, resolvedBy string) error

	// ResolveAllForEntity closes every open escalation for an entity, used
	// when the entity reaches a terminal stage.
	ResolveAllForEntity(ctx context.Context, entityID, resolvedBy string) (int, error)

	// List retrieves escalations matching the filters.
	List(ctx context.Context, filters EscalationFilters) ([]*models.Escalation, error)
}

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/loanflow/internal/metrics"
	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/primary"
	"github.com/example/loanflow/internal/ports/secondary"
)

// EscalationServiceImpl implements the EscalationService interface.
// Levels increase monotonically per (entity, reason) while an episode is
// open; resolution is idempotent.
type EscalationServiceImpl struct {
	repo  secondary.EscalationRepository
	now   func() time.Time
	newID func() string
}

// NewEscalationService creates a new EscalationService with injected dependencies.
func NewEscalationService(repo secondary.EscalationRepository) *EscalationServiceImpl {
	return &EscalationServiceImpl{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Open opens an escalation. When an escalation at the same or a higher level
// is already open for the same entity and reason, the existing one is
// returned unchanged; a lower level is never opened behind a higher one.
func (s *EscalationServiceImpl) Open(ctx context.Context, req primary.OpenEscalationRequest) (*models.Escalation, error) {
	if req.Level < 1 {
		return nil, fmt.Errorf("escalation level must be at least 1, got %d", req.Level)
	}
	if req.Reason == "" {
		return nil, fmt.Errorf("escalation reason must not be empty")
	}

	maxOpen, err := s.repo.MaxOpenLevel(ctx, req.EntityID, req.Reason)
	if err != nil {
		return nil, fmt.Errorf("failed to check open escalations: %w", err)
	}
	if maxOpen >= req.Level {
		return s.openAtLevel(ctx, req.EntityID, req.Reason, maxOpen)
	}

	escalation := &models.Escalation{
		ID:       s.newID(),
		EntityID: req.EntityID,
		Level:    req.Level,
		Reason:   req.Reason,
		OpenedAt: s.now(),
	}
	if err := s.repo.Create(ctx, escalation); err != nil {
		return nil, fmt.Errorf("failed to open escalation: %w", err)
	}
	metrics.EscalationsOpened.Inc()
	return escalation, nil
}

// Resolve closes an escalation. Resolving an already-resolved escalation is
// a no-op, not an error.
func (s *EscalationServiceImpl) Resolve(ctx context.Context, escalationID, resolvedBy string) error {
	if _, err := s.repo.GetByID(ctx, escalationID); err != nil {
		return err
	}
	if _, err := s.repo.Resolve(ctx, escalationID, resolvedBy, s.now()); err != nil {
		return fmt.Errorf("failed to resolve escalation: %w", err)
	}
	return nil
}

// ResolveAllForEntity closes every open escalation for an entity.
func (s *EscalationServiceImpl) ResolveAllForEntity(ctx context.Context, entityID, resolvedBy string) (int, error) {
	n, err := s.repo.ResolveAllForEntity(ctx, entityID, resolvedBy, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to resolve escalations for entity %s: %w", entityID, err)
	}
	return n, nil
}

// List retrieves escalations matching the filters.
func (s *EscalationServiceImpl) List(ctx context.Context, filters primary.EscalationFilters) ([]*models.Escalation, error) {
	escalations, err := s.repo.List(ctx, secondary.EscalationFilters{
		EntityID: filters.EntityID,
		OpenOnly: filters.OpenOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	return escalations, nil
}

// openAtLevel finds the open escalation at the given level for an entity/reason.
func (s *EscalationServiceImpl) openAtLevel(ctx context.Context, entityID, reason string, level int) (*models.Escalation, error) {
	open, err := s.repo.List(ctx, secondary.EscalationFilters{EntityID: entityID, OpenOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load open escalations: %w", err)
	}
	for _, e := range open {
		if e.Reason == reason && e.Level == level {
			return e, nil
		}
	}
	return nil, fmt.Errorf("open escalation at level %d for entity %s not found", level, entityID)
}

// Ensure EscalationServiceImpl implements the interface
var _ primary.EscalationService = (*EscalationServiceImpl)(nil)

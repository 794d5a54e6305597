package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/loanflow/internal/core/transition"
	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/primary"
	"github.com/example/loanflow/internal/ports/secondary"
)

// WorkflowServiceImpl implements the WorkflowService interface: the
// synchronous entity mutation path. It validates transitions, appends
// history, and fires ON_CREATE / ON_STAGE_CHANGE automation inline. NOTIFY
// effects are queued as reminder jobs, so this path never blocks on the
// dispatch gateway.
type WorkflowServiceImpl struct {
	store       secondary.EntityStore
	jobs        secondary.JobRepository
	transitions transition.Map
	engine      *RuleEngine
	escalations primary.EscalationService
	reminders   primary.ReminderGenerator
	logger      *slog.Logger
	now         func() time.Time
}

// NewWorkflowService creates a new WorkflowService with injected dependencies.
func NewWorkflowService(
	store secondary.EntityStore,
	jobs secondary.JobRepository,
	transitions transition.Map,
	engine *RuleEngine,
	escalations primary.EscalationService,
	reminders primary.ReminderGenerator,
	logger *slog.Logger,
) *WorkflowServiceImpl {
	return &WorkflowServiceImpl{
		store:       store,
		jobs:        jobs,
		transitions: transitions,
		engine:      engine,
		escalations: escalations,
		reminders:   reminders,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateEntity registers a new entity and fires ON_CREATE automation. The
// trigger instance is the entity id itself: creation happens once, so a
// re-processed create event deduplicates naturally.
func (s *WorkflowServiceImpl) CreateEntity(ctx context.Context, entity *models.Entity) ([]primary.ActionResult, error) {
	if !models.KnownEntityType(entity.Type) {
		return nil, fmt.Errorf("unknown entity type %q", entity.Type)
	}
	if !s.transitions.KnownStage(entity.Type, entity.Stage) {
		return nil, fmt.Errorf("unknown stage %q for entity type %s", entity.Stage, entity.Type)
	}

	now := s.now()
	if entity.StageEnteredAt.IsZero() {
		entity.StageEnteredAt = now
	}
	if err := s.store.Create(ctx, entity); err != nil {
		return nil, fmt.Errorf("failed to create entity: %w", err)
	}

	results := s.engine.Fire(ctx, models.TriggerOnCreate, entity, "create|"+entity.ID, now)
	s.generateReminders(ctx, models.TriggerOnCreate, entity, now)
	return results, nil
}

// RequestTransition validates and applies a stage change. A rejected
// transition returns *transition.InvalidTransitionError and leaves the
// entity unchanged. On acceptance the new stage is persisted, a history
// record with a monotonic sequence number is appended, and ON_STAGE_CHANGE
// automation fires with the sequence number as its trigger instance.
func (s *WorkflowServiceImpl) RequestTransition(ctx context.Context, req primary.TransitionRequest) ([]primary.ActionResult, error) {
	entity, err := s.store.Get(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}

	decision := s.transitions.Validate(entity.Type, entity.Stage, req.To)
	if !decision.Allowed {
		return nil, &transition.InvalidTransitionError{
			EntityType: entity.Type,
			From:       entity.Stage,
			To:         req.To,
			Reason:     decision.Reason,
		}
	}

	now := s.now()
	if err := s.store.ApplyTransition(ctx, entity.ID, entity.Stage, req.To, now); err != nil {
		return nil, fmt.Errorf("failed to apply transition: %w", err)
	}

	seq, err := s.store.AppendHistory(ctx, &models.HistoryRecord{
		EntityID:  entity.ID,
		FromStage: entity.Stage,
		ToStage:   req.To,
		Actor:     req.Actor,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append history: %w", err)
	}

	from := entity.Stage
	entity.Stage = req.To
	entity.StageEnteredAt = now

	if s.transitions.IsTerminal(entity.Type, entity.Stage) {
		s.cleanupTerminal(ctx, entity)
	}

	instanceID := fmt.Sprintf("seq|%d", seq)
	results := s.engine.Fire(ctx, models.TriggerOnStageChange, entity, instanceID, now)
	s.generateReminders(ctx, models.TriggerOnStageChange, entity, now)

	s.logger.InfoContext(ctx, "stage transition applied",
		"entity_id", entity.ID,
		"from", string(from),
		"to", string(entity.Stage),
		"seq", seq,
	)
	return results, nil
}

// GetEntity returns a snapshot of an entity.
func (s *WorkflowServiceImpl) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	return s.store.Get(ctx, id)
}

// cleanupTerminal runs the declarative cancellation model: an entity reaching
// a terminal stage auto-resolves its open escalations and cancels its
// queued-but-not-yet-due reminder jobs. Failures here are logged, not
// propagated: the transition itself already succeeded.
func (s *WorkflowServiceImpl) cleanupTerminal(ctx context.Context, entity *models.Entity) {
	if n, err := s.escalations.ResolveAllForEntity(ctx, entity.ID, "system:terminal-stage"); err != nil {
		s.logger.ErrorContext(ctx, "failed to auto-resolve escalations",
			"entity_id", entity.ID, "error", err)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "auto-resolved escalations on terminal stage",
			"entity_id", entity.ID, "count", n)
	}

	if n, err := s.jobs.CancelPending(ctx, entity.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to cancel pending jobs",
			"entity_id", entity.ID, "error", err)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "cancelled pending reminder jobs on terminal stage",
			"entity_id", entity.ID, "count", n)
	}
}

func (s *WorkflowServiceImpl) generateReminders(ctx context.Context, trigger models.TriggerType, entity *models.Entity, now time.Time) {
	if s.reminders == nil {
		return
	}
	if _, err := s.reminders.GenerateForTrigger(ctx, trigger, entity, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to generate reminder jobs",
			"entity_id", entity.ID, "trigger", string(trigger), "error", err)
	}
}

// Ensure WorkflowServiceImpl implements the interface
var _ primary.WorkflowService = (*WorkflowServiceImpl)(nil)

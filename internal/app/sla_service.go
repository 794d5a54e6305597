package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/loanflow/internal/core/sla"
	"github.com/example/loanflow/internal/core/transition"
	"github.com/example/loanflow/internal/metrics"
	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/primary"
	"github.com/example/loanflow/internal/ports/secondary"
)

// ExpectationSet indexes stage expectations by entity type and stage.
type ExpectationSet map[models.EntityType]map[models.Stage]models.StageExpectation

// NewExpectationSet builds the index from a flat expectation list.
func NewExpectationSet(expectations []models.StageExpectation) ExpectationSet {
	set := ExpectationSet{}
	for _, exp := range expectations {
		byStage, ok := set[exp.Scope]
		if !ok {
			byStage = map[models.Stage]models.StageExpectation{}
			set[exp.Scope] = byStage
		}
		byStage[exp.Stage] = exp
	}
	return set
}

// Lookup returns the expectation for an entity type and stage, if configured.
func (s ExpectationSet) Lookup(t models.EntityType, stage models.Stage) (models.StageExpectation, bool) {
	byStage, ok := s[t]
	if !ok {
		return models.StageExpectation{}, false
	}
	exp, ok := byStage[stage]
	return exp, ok
}

// SLAServiceImpl implements the SLAService interface: the polling-path scan
// over non-terminal entities. A transition into BREACHED fires the SLA_BREACH
// trigger exactly once per breach episode; TIME_BASED rules are evaluated on
// the same pass, once per stage episode. No per-entity failure aborts the
// scan.
type SLAServiceImpl struct {
	store        secondary.EntityStore
	transitions  transition.Map
	expectations ExpectationSet
	engine       *RuleEngine
	escalations  primary.EscalationService
	effects      secondary.EffectIndex
	reminders    primary.ReminderGenerator
	logger       *slog.Logger
}

// NewSLAService creates a new SLAService with injected dependencies.
func NewSLAService(
	store secondary.EntityStore,
	transitions transition.Map,
	expectations ExpectationSet,
	engine *RuleEngine,
	escalations primary.EscalationService,
	effects secondary.EffectIndex,
	reminders primary.ReminderGenerator,
	logger *slog.Logger,
) *SLAServiceImpl {
	return &SLAServiceImpl{
		store:        store,
		transitions:  transitions,
		expectations: expectations,
		engine:       engine,
		escalations:  escalations,
		effects:      effects,
		reminders:    reminders,
		logger:       logger,
	}
}

// Scan classifies every non-terminal entity against its stage expectation and
// fires newly-breached episodes, then evaluates TIME_BASED rules.
func (s *SLAServiceImpl) Scan(ctx context.Context, now time.Time) (primary.ScanReport, error) {
	report := primary.ScanReport{}
	for _, entityType := range []models.EntityType{models.EntityLead, models.EntityCase, models.EntityBankApp} {
		entities, err := s.store.ListNonTerminal(ctx, entityType, s.transitions.TerminalStages(entityType))
		if err != nil {
			return report, fmt.Errorf("failed to list %s entities: %w", entityType, err)
		}
		for _, entity := range entities {
			report.Scanned++
			if err := s.scanEntity(ctx, entity, now, &report); err != nil {
				report.ScanErrors++
				s.logger.ErrorContext(ctx, "entity scan failed",
					"entity_id", entity.ID, "error", err)
			}
		}
	}
	return report, nil
}

// scanEntity handles one entity. A panic in rule evaluation is recovered and
// reported as a scan error so the loop survives misbehaving rules.
func (s *SLAServiceImpl) scanEntity(ctx context.Context, entity *models.Entity, now time.Time, report *primary.ScanReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during scan: %v", r)
		}
	}()

	if exp, ok := s.expectations.Lookup(entity.Type, entity.Stage); ok {
		switch sla.Classify(entity.StageEnteredAt, exp, now) {
		case models.SLAWarning:
			report.Warnings++
		case models.SLABreached:
			if err := s.fireBreach(ctx, entity, now, report); err != nil {
				return err
			}
		}
	}

	// TIME_BASED rules fire at most once per stage episode; recurring
	// behavior is the reminder scheduler's job.
	episode := sla.EpisodeKey(entity.ID, entity.Stage, entity.StageEnteredAt)
	results := s.engine.Fire(ctx, models.TriggerTimeBased, entity, "time|"+episode, now)
	report.RulesFired += countFired(results)
	return nil
}

// fireBreach fires SLA_BREACH automation for a breached entity, once per
// episode. The episode key resets when the entity changes stage, which
// re-arms breach detection.
func (s *SLAServiceImpl) fireBreach(ctx context.Context, entity *models.Entity, now time.Time, report *primary.ScanReport) error {
	episode := sla.EpisodeKey(entity.ID, entity.Stage, entity.StageEnteredAt)
	fresh, err := s.effects.Record(ctx, "sla|"+episode)
	if err != nil {
		return fmt.Errorf("failed to arm breach episode: %w", err)
	}
	if !fresh {
		return nil
	}

	report.Breaches++
	metrics.SLABreaches.Inc()
	s.logger.WarnContext(ctx, "sla breached",
		"entity_id", entity.ID,
		"stage", string(entity.Stage),
		"dwell_days", sla.DwellDays(entity.StageEnteredAt, now),
	)

	if _, err := s.escalations.Open(ctx, primary.OpenEscalationRequest{
		EntityID: entity.ID,
		Level:    1,
		Reason:   "sla_breach:" + string(entity.Stage),
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to open breach escalation",
			"entity_id", entity.ID, "error", err)
	}

	results := s.engine.Fire(ctx, models.TriggerSLABreach, entity, "sla|"+episode, now)
	report.RulesFired += countFired(results)

	if s.reminders != nil {
		if _, err := s.reminders.GenerateForTrigger(ctx, models.TriggerSLABreach, entity, now); err != nil {
			s.logger.ErrorContext(ctx, "failed to generate breach reminders",
				"entity_id", entity.ID, "error", err)
		}
	}
	return nil
}

func countFired(results []primary.ActionResult) int {
	fired := map[string]bool{}
	for _, r := range results {
		if r.Outcome != primary.ActionDeduped {
			fired[r.RuleID] = true
		}
	}
	return len(fired)
}

// Ensure SLAServiceImpl implements the interface
var _ primary.SLAService = (*SLAServiceImpl)(nil)

// Package scheduler turns reminder rules into concrete jobs and runs the
// lease/dispatch/retry tick. Multiple workers may tick concurrently: the
// QUEUED -> SENDING conditional update guarantees a job is dispatched by at
// most one of them.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/loanflow/internal/app"
	"github.com/example/loanflow/internal/core/backoff"
	"github.com/example/loanflow/internal/core/transition"
	"github.com/example/loanflow/internal/metrics"
	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/primary"
	"github.com/example/loanflow/internal/ports/secondary"
)

// Config tunes scheduler behavior.
type Config struct {
	BackoffBase     time.Duration
	BackoffCap      time.Duration
	DispatchTimeout time.Duration
	LeaseTimeout    time.Duration
	LeaseBatch      int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BackoffBase:     time.Minute,
		BackoffCap:      time.Hour,
		DispatchTimeout: 10 * time.Second,
		LeaseTimeout:    5 * time.Minute,
		LeaseBatch:      100,
	}
}

// Scheduler implements primary.ReminderService.
type Scheduler struct {
	rules       []models.ReminderRule
	jobs        secondary.JobRepository
	gateway     secondary.DispatchGateway
	store       secondary.EntityStore
	transitions transition.Map
	cfg         Config
	logger      *slog.Logger
	newID       func() string
}

// New creates a Scheduler over a fixed, validated reminder rule set.
func New(
	rules []models.ReminderRule,
	jobs secondary.JobRepository,
	gateway secondary.DispatchGateway,
	store secondary.EntityStore,
	transitions transition.Map,
	cfg Config,
	logger *slog.Logger,
) *Scheduler {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Minute
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = time.Hour
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = 5 * time.Minute
	}
	return &Scheduler{
		rules:       rules,
		jobs:        jobs,
		gateway:     gateway,
		store:       store,
		transitions: transitions,
		cfg:         cfg,
		logger:      logger,
		newID:       uuid.NewString,
	}
}

// GenerateForTrigger generates jobs for reminder rules matching one trigger
// occurrence on one entity. The rule condition is evaluated at generation
// time against the current snapshot.
func (s *Scheduler) GenerateForTrigger(ctx context.Context, trigger models.TriggerType, entity *models.Entity, now time.Time) (int, error) {
	generated := 0
	fields := app.SnapshotFields(entity, now)
	for _, rule := range s.rules {
		if !rule.Active || rule.Scope != entity.Type || rule.Trigger != trigger {
			continue
		}
		if rule.Condition != nil && !rule.Condition.Eval(fields) {
			continue
		}
		if err := s.generate(ctx, rule, entity, now); err != nil {
			return generated, err
		}
		generated++
	}
	return generated, nil
}

// GenerateRecurring evaluates TIME_BASED reminder rules across all
// non-terminal entities. A one-shot rule generates once per entity/rule pair;
// a repeating rule generates a fresh job each interval for as long as its
// condition still holds.
func (s *Scheduler) GenerateRecurring(ctx context.Context, now time.Time) (int, error) {
	generated := 0
	for _, entityType := range []models.EntityType{models.EntityLead, models.EntityCase, models.EntityBankApp} {
		entities, err := s.store.ListNonTerminal(ctx, entityType, s.transitions.TerminalStages(entityType))
		if err != nil {
			return generated, fmt.Errorf("failed to list %s entities: %w", entityType, err)
		}
		for _, entity := range entities {
			fields := app.SnapshotFields(entity, now)
			for _, rule := range s.rules {
				if !rule.Active || rule.Scope != entity.Type || rule.Trigger != models.TriggerTimeBased {
					continue
				}
				if rule.Condition != nil && !rule.Condition.Eval(fields) {
					continue
				}
				due, err := s.recurrenceDue(ctx, rule, entity, now)
				if err != nil {
					s.logger.ErrorContext(ctx, "recurrence check failed",
						"entity_id", entity.ID, "rule_id", rule.ID, "error", err)
					continue
				}
				if !due {
					continue
				}
				if err := s.generate(ctx, rule, entity, now); err != nil {
					s.logger.ErrorContext(ctx, "job generation failed",
						"entity_id", entity.ID, "rule_id", rule.ID, "error", err)
					continue
				}
				generated++
			}
		}
	}
	return generated, nil
}

// recurrenceDue decides whether a TIME_BASED rule owes the entity a fresh
// job: never before one exists, and afterwards only once per repeat interval.
// The interval is measured from the previous generation, not from the job's
// due time: scheduled_at carries the rule's send delay, so that delay is
// subtracted back out to recover the generation time.
func (s *Scheduler) recurrenceDue(ctx context.Context, rule models.ReminderRule, entity *models.Entity, now time.Time) (bool, error) {
	last, exists, err := s.jobs.LastScheduledFor(ctx, entity.ID, rule.ID)
	if err != nil {
		return false, err
	}
	if !exists {
		return true, nil
	}
	if rule.RepeatEvery <= 0 {
		return false, nil
	}
	lastGenerated := last.Add(-rule.SendAfter)
	return now.Sub(lastGenerated) >= rule.RepeatEvery, nil
}

func (s *Scheduler) generate(ctx context.Context, rule models.ReminderRule, entity *models.Entity, now time.Time) error {
	recipient := ""
	key := "phone"
	if rule.Channel == models.ChannelEmail {
		key = "email"
	}
	if v, ok := entity.Metadata[key].(string); ok {
		recipient = v
	}

	job := &models.ReminderJob{
		ID:           s.newID(),
		EntityID:     entity.ID,
		RuleID:       rule.ID,
		Channel:      rule.Channel,
		TemplateName: rule.TemplateName,
		Recipient:    recipient,
		Payload: map[string]string{
			"entity_id":   entity.ID,
			"entity_type": string(entity.Type),
			"stage":       string(entity.Stage),
		},
		ScheduledAt: now.Add(rule.SendAfter),
		MaxRetries:  rule.MaxRetries,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to create job for rule %s: %w", rule.ID, err)
	}
	s.logger.DebugContext(ctx, "reminder job generated",
		"job_id", job.ID, "entity_id", entity.ID, "rule_id", rule.ID,
		"scheduled_at", job.ScheduledAt)
	return nil
}

// Tick leases and dispatches due jobs. Each dispatch is bounded by the
// configured timeout so one stalled send cannot stall the tick. Job failures
// are isolated: a failing job never stops the rest of the batch.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (primary.TickReport, error) {
	report := primary.TickReport{}

	// A worker that died between lease and finalize leaves its job SENDING
	// forever. Requeue leases older than the timeout before listing, so a
	// reclaimed job can be dispatched within the same tick.
	reclaimed, err := s.jobs.ReclaimStale(ctx, now.Add(-s.cfg.LeaseTimeout))
	if err != nil {
		s.logger.ErrorContext(ctx, "stale lease reclaim failed", "error", err)
	} else if reclaimed > 0 {
		report.Reclaimed = reclaimed
		s.logger.WarnContext(ctx, "requeued jobs with stale leases", "count", reclaimed)
	}

	due, err := s.jobs.ListDue(ctx, now, s.cfg.LeaseBatch)
	if err != nil {
		return report, fmt.Errorf("failed to list due jobs: %w", err)
	}
	report.Due = len(due)

	for _, job := range due {
		leased, err := s.jobs.Lease(ctx, job.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "job lease failed", "job_id", job.ID, "error", err)
			continue
		}
		if !leased {
			// Another worker claimed it in the same tick.
			continue
		}
		report.Leased++
		s.dispatch(ctx, job, now, &report)
	}
	return report, nil
}

// dispatch sends one leased job and finalizes its status.
func (s *Scheduler) dispatch(ctx context.Context, job *models.ReminderJob, now time.Time, report *primary.TickReport) {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	sendErr := s.gateway.Send(sendCtx, job.Channel, job.TemplateName, job.Recipient, job.Payload)
	cancel()

	if sendErr == nil {
		if err := s.jobs.MarkSent(ctx, job.ID, now); err != nil {
			s.logger.ErrorContext(ctx, "failed to finalize sent job", "job_id", job.ID, "error", err)
			return
		}
		report.Sent++
		metrics.JobsDispatched.WithLabelValues("sent").Inc()
		return
	}

	attempts := job.Attempts + 1
	switch {
	case !secondary.Retryable(sendErr):
		if err := s.jobs.MarkFailed(ctx, job.ID, attempts, sendErr.Error()); err != nil {
			s.logger.ErrorContext(ctx, "failed to finalize failed job", "job_id", job.ID, "error", err)
			return
		}
		report.Failed++
		metrics.JobsDispatched.WithLabelValues("failed").Inc()
		s.logger.WarnContext(ctx, "job failed permanently",
			"job_id", job.ID, "entity_id", job.EntityID, "error", sendErr)
	case attempts >= job.MaxRetries:
		if err := s.jobs.MarkExhausted(ctx, job.ID, attempts, sendErr.Error()); err != nil {
			s.logger.ErrorContext(ctx, "failed to finalize exhausted job", "job_id", job.ID, "error", err)
			return
		}
		report.Exhausted++
		metrics.JobsDispatched.WithLabelValues("exhausted").Inc()
		s.logger.WarnContext(ctx, "job exhausted retry budget",
			"job_id", job.ID, "entity_id", job.EntityID, "attempts", attempts, "error", sendErr)
	default:
		nextAt := now.Add(backoff.Delay(s.cfg.BackoffBase, attempts, s.cfg.BackoffCap))
		if err := s.jobs.Reschedule(ctx, job.ID, attempts, sendErr.Error(), nextAt); err != nil {
			s.logger.ErrorContext(ctx, "failed to reschedule job", "job_id", job.ID, "error", err)
			return
		}
		report.Retried++
		metrics.JobsDispatched.WithLabelValues("retried").Inc()
	}
}

// Ensure Scheduler implements the interface
var _ primary.ReminderService = (*Scheduler)(nil)

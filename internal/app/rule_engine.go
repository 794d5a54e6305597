package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/loanflow/internal/metrics"
	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/primary"
	"github.com/example/loanflow/internal/ports/secondary"
)

// RuleEngine matches automation rules against trigger occurrences and runs
// their action lists. Rule firing is exactly-once per trigger instance: the
// engine claims a deterministic effect key before executing, so re-processed
// events never duplicate effects.
type RuleEngine struct {
	rules    []models.AutomationRule
	effects  secondary.EffectIndex
	executor *ActionExecutor
	logger   *slog.Logger
}

// NewRuleEngine creates a new RuleEngine over a fixed, validated rule set.
func NewRuleEngine(rules []models.AutomationRule, effects secondary.EffectIndex, executor *ActionExecutor, logger *slog.Logger) *RuleEngine {
	return &RuleEngine{
		rules:    rules,
		effects:  effects,
		executor: executor,
		logger:   logger,
	}
}

// Fire evaluates the rule set for one trigger occurrence on one entity.
// instanceID must be deterministic for the occurrence (the same event
// re-processed must produce the same id). A failing action is recorded and
// the rule's remaining actions still run.
func (e *RuleEngine) Fire(ctx context.Context, trigger models.TriggerType, entity *models.Entity, instanceID string, now time.Time) []primary.ActionResult {
	fields := SnapshotFields(entity, now)

	var matched []models.AutomationRule
	for _, rule := range e.rules {
		if !rule.Active || rule.Scope != entity.Type || rule.Trigger != trigger {
			continue
		}
		if rule.Condition != nil && !rule.Condition.Eval(fields) {
			continue
		}
		matched = append(matched, rule)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].ID < matched[j].ID
	})

	var results []primary.ActionResult
	for _, rule := range matched {
		key := effectKey(entity.ID, rule.ID, instanceID)
		fresh, err := e.effects.Record(ctx, key)
		if err != nil {
			e.logger.ErrorContext(ctx, "effect key claim failed",
				"entity_id", entity.ID, "rule_id", rule.ID, "error", err)
			results = append(results, primary.ActionResult{
				RuleID: rule.ID, Outcome: primary.ActionFailed, Retryable: true, Err: err.Error(),
			})
			continue
		}
		if !fresh {
			for _, act := range rule.Actions {
				results = append(results, primary.ActionResult{
					RuleID: rule.ID, Action: act.ActionType(), Outcome: primary.ActionDeduped,
				})
				metrics.ActionsExecuted.WithLabelValues(string(act.ActionType()), string(primary.ActionDeduped)).Inc()
			}
			continue
		}

		metrics.RulesFired.WithLabelValues(string(trigger)).Inc()
		results = append(results, e.runActions(ctx, rule, entity, now)...)
	}
	return results
}

// runActions executes a rule's action list in order, isolating per-action
// failures so one action cannot block its siblings.
func (e *RuleEngine) runActions(ctx context.Context, rule models.AutomationRule, entity *models.Entity, now time.Time) []primary.ActionResult {
	results := make([]primary.ActionResult, 0, len(rule.Actions))
	for _, act := range rule.Actions {
		retryable, err := e.executor.Execute(ctx, entity, rule.ID, act, now)
		result := primary.ActionResult{
			RuleID:  rule.ID,
			Action:  act.ActionType(),
			Outcome: primary.ActionOK,
		}
		if err != nil {
			result.Outcome = primary.ActionFailed
			result.Retryable = retryable
			result.Err = err.Error()
			e.logger.WarnContext(ctx, "action failed",
				"entity_id", entity.ID,
				"rule_id", rule.ID,
				"action", string(act.ActionType()),
				"retryable", retryable,
				"error", err)
		}
		metrics.ActionsExecuted.WithLabelValues(string(act.ActionType()), string(result.Outcome)).Inc()
		results = append(results, result)
	}
	return results
}

// effectKey builds the deterministic dedup key for one rule firing.
func effectKey(entityID, ruleID, instanceID string) string {
	return fmt.Sprintf("fire|%s|%s|%s", entityID, ruleID, instanceID)
}

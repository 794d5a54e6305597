package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/loanflow/internal/core/action"
	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/primary"
	"github.com/example/loanflow/internal/ports/secondary"
)

// ExecutorDefaults hold fallbacks applied when an action omits a parameter.
type ExecutorDefaults struct {
	Channel    models.Channel
	MaxRetries int
}

// ActionExecutor interprets and executes actions. This is the imperative
// shell: the only place rule side effects touch storage. Outbound messages
// are always queued as reminder jobs, never sent inline.
type ActionExecutor struct {
	store       secondary.EntityStore
	jobs        secondary.JobRepository
	escalations primary.EscalationService
	defaults    ExecutorDefaults
	newID       func() string
}

// NewActionExecutor creates a new ActionExecutor with injected dependencies.
func NewActionExecutor(store secondary.EntityStore, jobs secondary.JobRepository, escalations primary.EscalationService, defaults ExecutorDefaults) *ActionExecutor {
	if defaults.Channel == "" {
		defaults.Channel = models.ChannelWhatsApp
	}
	if defaults.MaxRetries <= 0 {
		defaults.MaxRetries = 3
	}
	return &ActionExecutor{
		store:       store,
		jobs:        jobs,
		escalations: escalations,
		defaults:    defaults,
		newID:       uuid.NewString,
	}
}

// Execute performs one action for one fired rule. The boolean reports whether
// a failure is retryable.
func (e *ActionExecutor) Execute(ctx context.Context, entity *models.Entity, ruleID string, act action.Action, now time.Time) (bool, error) {
	switch typed := act.(type) {
	case action.Assign:
		if err := e.store.Assign(ctx, entity.ID, typed.Assignee); err != nil {
			return true, err
		}
		return false, nil
	case action.SetField:
		if err := e.store.SetField(ctx, entity.ID, typed.Field, typed.Value); err != nil {
			return true, err
		}
		return false, nil
	case action.Flag:
		if err := e.store.SetFlag(ctx, entity.ID, typed.Name, typed.Value); err != nil {
			return true, err
		}
		return false, nil
	case action.Notify:
		return e.queueSend(ctx, entity, ruleID, typed.Channel, typed.Template, typed.Recipient, now)
	case action.ScheduleReminder:
		sendAt := now.Add(time.Duration(typed.AfterMinutes) * time.Minute)
		return e.queueSend(ctx, entity, ruleID, typed.Channel, typed.Template, typed.Recipient, sendAt)
	case action.OpenEscalation:
		_, err := e.escalations.Open(ctx, primary.OpenEscalationRequest{
			EntityID: entity.ID,
			Level:    typed.Level,
			Reason:   typed.Reason,
		})
		if err != nil {
			return true, err
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown action type: %T", act)
	}
}

func (e *ActionExecutor) queueSend(ctx context.Context, entity *models.Entity, ruleID, channel, template, recipient string, sendAt time.Time) (bool, error) {
	ch := models.Channel(channel)
	if ch == "" {
		ch = e.defaults.Channel
	}
	if recipient == "" {
		recipient = contactFor(entity, ch)
	}

	job := &models.ReminderJob{
		ID:           e.newID(),
		EntityID:     entity.ID,
		RuleID:       ruleID,
		Channel:      ch,
		TemplateName: template,
		Recipient:    recipient,
		Payload: map[string]string{
			"entity_id":   entity.ID,
			"entity_type": string(entity.Type),
			"stage":       string(entity.Stage),
		},
		ScheduledAt: sendAt,
		MaxRetries:  e.defaults.MaxRetries,
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return true, fmt.Errorf("failed to queue %s send: %w", template, err)
	}
	return false, nil
}

// contactFor picks a recipient address from entity metadata by channel.
func contactFor(entity *models.Entity, channel models.Channel) string {
	key := "phone"
	if channel == models.ChannelEmail {
		key = "email"
	}
	if v, ok := entity.Metadata[key].(string); ok {
		return v
	}
	return ""
}

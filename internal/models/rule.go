package models

import (
	"time"

	"github.com/example/loanflow/internal/core/action"
	"github.com/example/loanflow/internal/core/predicate"
)

// TriggerType identifies what kind of event fires a rule.
type TriggerType string

// Trigger types. ON_CREATE and ON_STAGE_CHANGE run synchronously with the
// entity mutation; TIME_BASED and SLA_BREACH are driven by the polling loop.
const (
	TriggerOnCreate      TriggerType = "ON_CREATE"
	TriggerOnStageChange TriggerType = "ON_STAGE_CHANGE"
	TriggerTimeBased     TriggerType = "TIME_BASED"
	TriggerSLABreach     TriggerType = "SLA_BREACH"
)

// KnownTriggerType reports whether t is one of the declared trigger types.
func KnownTriggerType(t TriggerType) bool {
	switch t {
	case TriggerOnCreate, TriggerOnStageChange, TriggerTimeBased, TriggerSLABreach:
		return true
	}
	return false
}

// AutomationRule is a declarative rule: when its trigger fires for an entity
// in scope and its condition matches, its actions run in order. Conditions
// and actions are parsed and validated at load time.
type AutomationRule struct {
	ID        string
	Name      string
	Scope     EntityType
	Trigger   TriggerType
	Condition predicate.Node // nil matches unconditionally
	Actions   []action.Action
	Priority  int
	Active    bool
}

// ReminderRule is a template for generating reminder jobs. A zero RepeatEvery
// makes the rule one-shot; otherwise a fresh job is generated each interval
// for as long as the condition holds.
type ReminderRule struct {
	ID           string
	Scope        EntityType
	Trigger      TriggerType
	Condition    predicate.Node // nil matches unconditionally
	Channel      Channel
	TemplateName string
	SendAfter    time.Duration
	RepeatEvery  time.Duration
	MaxRetries   int
	Active       bool
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/loanflow/internal/core/action"
	"github.com/example/loanflow/internal/core/predicate"
	"github.com/example/loanflow/internal/core/transition"
	"github.com/example/loanflow/internal/models"
)

// RulePack is the validated bundle of declarative configuration consumed by
// the core: transition graphs, stage expectations, automation rules and
// reminder rules.
type RulePack struct {
	Transitions     transition.Map
	Expectations    []models.StageExpectation
	AutomationRules []models.AutomationRule
	ReminderRules   []models.ReminderRule
}

type rulePackFile struct {
	Transitions  map[string]map[string][]string `yaml:"transitions"`
	Expectations []expectationSpec              `yaml:"stage_expectations"`
	Automation   []automationRuleSpec           `yaml:"automation_rules"`
	Reminders    []reminderRuleSpec             `yaml:"reminder_rules"`
}

type expectationSpec struct {
	Scope       string `yaml:"scope"`
	Stage       string `yaml:"stage"`
	MinDays     int    `yaml:"expected_min_days"`
	MaxDays     int    `yaml:"expected_max_days"`
	StudentText string `yaml:"student_text"`
	StaffText   string `yaml:"staff_text"`
}

type automationRuleSpec struct {
	ID        string          `yaml:"id"`
	Name      string          `yaml:"name"`
	Scope     string          `yaml:"scope"`
	Trigger   string          `yaml:"trigger"`
	Condition *predicate.Spec `yaml:"condition"`
	Actions   []action.Spec   `yaml:"actions"`
	Priority  int             `yaml:"priority"`
	Active    *bool           `yaml:"active"`
}

type reminderRuleSpec struct {
	ID                 string          `yaml:"id"`
	Scope              string          `yaml:"scope"`
	Trigger            string          `yaml:"trigger"`
	Condition          *predicate.Spec `yaml:"condition"`
	Channel            string          `yaml:"channel"`
	TemplateName       string          `yaml:"template"`
	SendAfterMinutes   int             `yaml:"send_after_minutes"`
	RepeatEveryMinutes int             `yaml:"repeat_every_minutes"`
	MaxRetries         int             `yaml:"max_retries"`
	Active             *bool           `yaml:"active"`
}

// LoadRulePack reads and validates the YAML rule pack. Any malformed
// predicate, action, trigger or scope fails the load with an error naming
// the offending rule.
func LoadRulePack(path string) (*RulePack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule pack: %w", err)
	}
	return ParseRulePack(data)
}

// ParseRulePack parses and validates rule pack bytes.
func ParseRulePack(data []byte) (*RulePack, error) {
	var file rulePackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rule pack: %w", err)
	}

	pack := &RulePack{}

	if len(file.Transitions) == 0 {
		pack.Transitions = transition.Default()
	} else {
		pack.Transitions = transition.Map{}
		for rawType, rawGraph := range file.Transitions {
			entityType := models.EntityType(rawType)
			if !models.KnownEntityType(entityType) {
				return nil, fmt.Errorf("transitions: unknown entity type %q", rawType)
			}
			graph := transition.Graph{}
			for from, targets := range rawGraph {
				stages := make([]models.Stage, 0, len(targets))
				for _, to := range targets {
					if to == from {
						return nil, fmt.Errorf("transitions: %s: self-transition %s -> %s", rawType, from, to)
					}
					stages = append(stages, models.Stage(to))
				}
				graph[models.Stage(from)] = stages
			}
			pack.Transitions[entityType] = graph
		}
	}

	for i, spec := range file.Expectations {
		exp, err := parseExpectation(spec, pack.Transitions)
		if err != nil {
			return nil, fmt.Errorf("stage_expectations[%d]: %w", i, err)
		}
		pack.Expectations = append(pack.Expectations, exp)
	}

	seen := map[string]bool{}
	for i, spec := range file.Automation {
		rule, err := parseAutomationRule(spec)
		if err != nil {
			return nil, fmt.Errorf("automation_rules[%d] (%s): %w", i, spec.ID, err)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("automation_rules[%d]: duplicate rule id %s", i, rule.ID)
		}
		seen[rule.ID] = true
		pack.AutomationRules = append(pack.AutomationRules, rule)
	}

	seen = map[string]bool{}
	for i, spec := range file.Reminders {
		rule, err := parseReminderRule(spec)
		if err != nil {
			return nil, fmt.Errorf("reminder_rules[%d] (%s): %w", i, spec.ID, err)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("reminder_rules[%d]: duplicate rule id %s", i, rule.ID)
		}
		seen[rule.ID] = true
		pack.ReminderRules = append(pack.ReminderRules, rule)
	}

	return pack, nil
}

func parseExpectation(spec expectationSpec, transitions transition.Map) (models.StageExpectation, error) {
	scope := models.EntityType(spec.Scope)
	if !models.KnownEntityType(scope) {
		return models.StageExpectation{}, fmt.Errorf("unknown scope %q", spec.Scope)
	}
	if spec.Stage == "" {
		return models.StageExpectation{}, fmt.Errorf("missing stage")
	}
	if !transitions.KnownStage(scope, models.Stage(spec.Stage)) {
		return models.StageExpectation{}, fmt.Errorf("unknown stage %q for scope %s", spec.Stage, scope)
	}
	if spec.MinDays < 0 || spec.MaxDays < spec.MinDays {
		return models.StageExpectation{}, fmt.Errorf("invalid window [%d, %d] days", spec.MinDays, spec.MaxDays)
	}
	return models.StageExpectation{
		Scope:           scope,
		Stage:           models.Stage(spec.Stage),
		ExpectedMinDays: spec.MinDays,
		ExpectedMaxDays: spec.MaxDays,
		StudentText:     spec.StudentText,
		StaffText:       spec.StaffText,
	}, nil
}

func parseAutomationRule(spec automationRuleSpec) (models.AutomationRule, error) {
	if spec.ID == "" {
		return models.AutomationRule{}, fmt.Errorf("missing rule id")
	}
	scope := models.EntityType(spec.Scope)
	if !models.KnownEntityType(scope) {
		return models.AutomationRule{}, fmt.Errorf("unknown scope %q", spec.Scope)
	}
	trigger := models.TriggerType(spec.Trigger)
	if !models.KnownTriggerType(trigger) {
		return models.AutomationRule{}, fmt.Errorf("unknown trigger %q", spec.Trigger)
	}
	if len(spec.Actions) == 0 {
		return models.AutomationRule{}, fmt.Errorf("rule has no actions")
	}

	rule := models.AutomationRule{
		ID:       spec.ID,
		Name:     spec.Name,
		Scope:    scope,
		Trigger:  trigger,
		Priority: spec.Priority,
		Active:   spec.Active == nil || *spec.Active,
	}

	if spec.Condition != nil {
		node, err := predicate.Parse(*spec.Condition)
		if err != nil {
			return models.AutomationRule{}, fmt.Errorf("condition: %w", err)
		}
		rule.Condition = node
	}

	actions, err := action.ParseAll(spec.Actions)
	if err != nil {
		return models.AutomationRule{}, err
	}
	rule.Actions = actions
	return rule, nil
}

func parseReminderRule(spec reminderRuleSpec) (models.ReminderRule, error) {
	if spec.ID == "" {
		return models.ReminderRule{}, fmt.Errorf("missing rule id")
	}
	scope := models.EntityType(spec.Scope)
	if !models.KnownEntityType(scope) {
		return models.ReminderRule{}, fmt.Errorf("unknown scope %q", spec.Scope)
	}
	trigger := models.TriggerType(spec.Trigger)
	if !models.KnownTriggerType(trigger) {
		return models.ReminderRule{}, fmt.Errorf("unknown trigger %q", spec.Trigger)
	}
	if spec.TemplateName == "" {
		return models.ReminderRule{}, fmt.Errorf("missing template")
	}
	channel := models.Channel(spec.Channel)
	if spec.Channel == "" {
		channel = models.ChannelWhatsApp
	} else if !models.KnownChannel(channel) {
		return models.ReminderRule{}, fmt.Errorf("unknown channel %q", spec.Channel)
	}
	if spec.SendAfterMinutes < 0 {
		return models.ReminderRule{}, fmt.Errorf("send_after_minutes must not be negative")
	}
	if spec.RepeatEveryMinutes < 0 {
		return models.ReminderRule{}, fmt.Errorf("repeat_every_minutes must not be negative")
	}
	maxRetries := spec.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	rule := models.ReminderRule{
		ID:           spec.ID,
		Scope:        scope,
		Trigger:      trigger,
		Channel:      channel,
		TemplateName: spec.TemplateName,
		SendAfter:    time.Duration(spec.SendAfterMinutes) * time.Minute,
		RepeatEvery:  time.Duration(spec.RepeatEveryMinutes) * time.Minute,
		MaxRetries:   maxRetries,
		Active:       spec.Active == nil || *spec.Active,
	}

	if spec.Condition != nil {
		node, err := predicate.Parse(*spec.Condition)
		if err != nil {
			return models.ReminderRule{}, fmt.Errorf("condition: %w", err)
		}
		rule.Condition = node
	}
	return rule, nil
}

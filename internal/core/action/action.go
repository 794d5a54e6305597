// Package action defines automation actions as data structures. Actions
// describe what should happen to an entity; the application layer interprets
// them. Rule configuration can therefore never inject executable behavior.
package action

import (
	"fmt"
)

// Type identifies an action variant.
type Type string

// The closed set of action types.
const (
	TypeAssign           Type = "ASSIGN"
	TypeNotify           Type = "NOTIFY"
	TypeScheduleReminder Type = "SCHEDULE_REMINDER"
	TypeOpenEscalation   Type = "OPEN_ESCALATION"
	TypeFlag             Type = "FLAG"
	TypeSetField         Type = "SET_FIELD"
)

// Action is the base interface for all action variants.
type Action interface {
	// ActionType returns the variant discriminator.
	ActionType() Type
}

// Assign hands the entity to a named party (staff member or team).
type Assign struct {
	Assignee string
}

func (a Assign) ActionType() Type { return TypeAssign }

// Notify queues an outbound message. Dispatch always goes through the
// reminder job queue, never inline.
type Notify struct {
	Channel   string
	Template  string
	Recipient string
}

func (a Notify) ActionType() Type { return TypeNotify }

// ScheduleReminder queues an outbound message after a delay.
type ScheduleReminder struct {
	Channel      string
	Template     string
	Recipient    string
	AfterMinutes int
}

func (a ScheduleReminder) ActionType() Type { return TypeScheduleReminder }

// OpenEscalation opens an escalation at the given level.
type OpenEscalation struct {
	Level  int
	Reason string
}

func (a OpenEscalation) ActionType() Type { return TypeOpenEscalation }

// Flag sets a named boolean marker on the entity.
type Flag struct {
	Name  string
	Value bool
}

func (a Flag) ActionType() Type { return TypeFlag }

// SetField writes a metadata field on the entity.
type SetField struct {
	Field string
	Value any
}

func (a SetField) ActionType() Type { return TypeSetField }

// Spec is the configuration-facing shape of an action in the YAML rule pack.
type Spec struct {
	Type   string         `yaml:"type" json:"type"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Parse validates a spec and builds the typed action. Malformed actions are
// rejected at rule-load time.
func Parse(s Spec) (Action, error) {
	switch Type(s.Type) {
	case TypeAssign:
		assignee, err := stringParam(s.Params, "assignee", true)
		if err != nil {
			return nil, err
		}
		return Assign{Assignee: assignee}, nil
	case TypeNotify:
		template, err := stringParam(s.Params, "template", true)
		if err != nil {
			return nil, err
		}
		channel, err := stringParam(s.Params, "channel", false)
		if err != nil {
			return nil, err
		}
		recipient, err := stringParam(s.Params, "recipient", false)
		if err != nil {
			return nil, err
		}
		return Notify{Channel: channel, Template: template, Recipient: recipient}, nil
	case TypeScheduleReminder:
		template, err := stringParam(s.Params, "template", true)
		if err != nil {
			return nil, err
		}
		channel, err := stringParam(s.Params, "channel", false)
		if err != nil {
			return nil, err
		}
		recipient, err := stringParam(s.Params, "recipient", false)
		if err != nil {
			return nil, err
		}
		after, err := intParam(s.Params, "after_minutes", true)
		if err != nil {
			return nil, err
		}
		if after < 0 {
			return nil, fmt.Errorf("after_minutes must not be negative")
		}
		return ScheduleReminder{Channel: channel, Template: template, Recipient: recipient, AfterMinutes: after}, nil
	case TypeOpenEscalation:
		level, err := intParam(s.Params, "level", true)
		if err != nil {
			return nil, err
		}
		if level < 1 {
			return nil, fmt.Errorf("level must be at least 1")
		}
		reason, err := stringParam(s.Params, "reason", true)
		if err != nil {
			return nil, err
		}
		return OpenEscalation{Level: level, Reason: reason}, nil
	case TypeFlag:
		name, err := stringParam(s.Params, "name", true)
		if err != nil {
			return nil, err
		}
		value := true
		if raw, ok := s.Params["value"]; ok {
			b, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("param value must be a boolean, got %T", raw)
			}
			value = b
		}
		return Flag{Name: name, Value: value}, nil
	case TypeSetField:
		field, err := stringParam(s.Params, "field", true)
		if err != nil {
			return nil, err
		}
		raw, ok := s.Params["value"]
		if !ok {
			return nil, fmt.Errorf("missing required param value")
		}
		return SetField{Field: field, Value: raw}, nil
	case "":
		return nil, fmt.Errorf("missing action type")
	default:
		return nil, fmt.Errorf("unknown action type %q", s.Type)
	}
}

// ParseAll parses an ordered action list, preserving order.
func ParseAll(specs []Spec) ([]Action, error) {
	actions := make([]Action, 0, len(specs))
	for i, s := range specs {
		a, err := Parse(s)
		if err != nil {
			return nil, fmt.Errorf("action %d (%s): %w", i, s.Type, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func stringParam(params map[string]any, name string, required bool) (string, error) {
	raw, ok := params[name]
	if !ok {
		if required {
			return "", fmt.Errorf("missing required param %s", name)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("param %s must be a string, got %T", name, raw)
	}
	if required && s == "" {
		return "", fmt.Errorf("param %s must not be empty", name)
	}
	return s, nil
}

func intParam(params map[string]any, name string, required bool) (int, error) {
	raw, ok := params[name]
	if !ok {
		if required {
			return 0, fmt.Errorf("missing required param %s", name)
		}
		return 0, nil
	}
	switch n := raw.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("param %s must be an integer, got %v", name, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("param %s must be an integer, got %T", name, raw)
	}
}

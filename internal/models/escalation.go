package models

import (
	"database/sql"
	"time"
)

// Escalation is one rung of an entity's escalation ladder. An escalation is
// open until ResolvedAt is set; resolution happens exactly once.
type Escalation struct {
	ID         string
	EntityID   string
	Level      int
	Reason     string
	OpenedAt   time.Time
	ResolvedAt sql.NullTime
	ResolvedBy sql.NullString
}

// Open reports whether the escalation has not yet been resolved.
func (e *Escalation) Open() bool {
	return !e.ResolvedAt.Valid
}

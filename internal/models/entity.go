// Package models contains domain types for loanflow entities.
// SQL persistence lives in internal/adapters/sqlite/*.go
package models

import (
	"time"
)

// EntityType is the closed set of workflow entity kinds.
type EntityType string

// Entity types.
const (
	EntityLead    EntityType = "LEAD"
	EntityCase    EntityType = "CASE"
	EntityBankApp EntityType = "BANK_APP"
)

// KnownEntityType reports whether t is one of the declared entity types.
func KnownEntityType(t EntityType) bool {
	switch t {
	case EntityLead, EntityCase, EntityBankApp:
		return true
	}
	return false
}

// Stage is a named position in an entity's workflow. The set of legal stages
// per entity type is defined by the transition map loaded at startup.
type Stage string

// Party identifies who an entity is currently waiting on.
type Party string

// Awaiting parties.
const (
	PartyNone    Party = ""
	PartyStudent Party = "STUDENT"
	PartyStaff   Party = "STAFF"
	PartyBank    Party = "BANK"
)

// Entity is a read snapshot of a workflow entity. The entity store owns the
// record; the core reads snapshots and requests mutations through the store.
type Entity struct {
	ID             string
	Type           EntityType
	Stage          Stage
	AwaitingParty  Party
	Assignee       string
	Priority       int
	StageEnteredAt time.Time
	Metadata       map[string]any
}

// HistoryRecord is one entry in an entity's stage-history log. Seq increases
// monotonically per entity.
type HistoryRecord struct {
	EntityID  string
	Seq       int64
	FromStage Stage
	ToStage   Stage
	Actor     string
	CreatedAt time.Time
}

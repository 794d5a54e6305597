package models

// StageExpectation is the configured SLA window for one stage of one entity
// type. Read-only reference data consumed by the SLA tracker.
type StageExpectation struct {
	Scope           EntityType
	Stage           Stage
	ExpectedMinDays int
	ExpectedMaxDays int
	StudentText     string
	StaffText       string
}

// SLAStatus classifies how long an entity has dwelled in its stage relative
// to the stage expectation.
type SLAStatus string

// SLA classifications, ordered by increasing dwell time.
const (
	SLAOnTrack  SLAStatus = "ON_TRACK"
	SLAWarning  SLAStatus = "WARNING"
	SLABreached SLAStatus = "BREACHED"
)

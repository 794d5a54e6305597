// Package sla contains the pure dwell-time classifier. Classification is
// monotonic in dwell time: increasing dwell never moves the status backward.
package sla

import (
	"fmt"
	"time"

	"github.com/example/loanflow/internal/models"
)

// DwellDays returns the elapsed time in the current stage, in fractional days.
func DwellDays(stageEnteredAt, now time.Time) float64 {
	return now.Sub(stageEnteredAt).Hours() / 24
}

// Classify maps an entity's dwell time against the stage expectation window.
func Classify(stageEnteredAt time.Time, exp models.StageExpectation, now time.Time) models.SLAStatus {
	days := DwellDays(stageEnteredAt, now)
	switch {
	case days < float64(exp.ExpectedMinDays):
		return models.SLAOnTrack
	case days <= float64(exp.ExpectedMaxDays):
		return models.SLAWarning
	default:
		return models.SLABreached
	}
}

// EpisodeKey identifies one breach episode. A stage change resets
// stage_entered_at, producing a fresh key, which re-arms breach firing.
func EpisodeKey(entityID string, stage models.Stage, stageEnteredAt time.Time) string {
	return fmt.Sprintf("%s|%s|%d", entityID, stage, stageEnteredAt.UTC().Unix())
}

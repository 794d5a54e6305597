package primary

import (
	"context"
	"time"
)

// ScanReport summarizes one SLA / time-based scan pass.
type ScanReport struct {
	Scanned    int
	Warnings   int
	Breaches   int
	RulesFired int
	ScanErrors int
}

// SLAService performs the periodic scan over non-terminal entities: dwell
// classification, once-per-episode SLA_BREACH firing, and TIME_BASED rule
// evaluation. Per-entity failures are logged and never abort the scan.
type SLAService interface {
	Scan(ctx context.Context, now time.Time) (ScanReport, error)
}

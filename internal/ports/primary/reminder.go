package primary

import (
	"context"
	"time"

	"github.com/example/loanflow/internal/models"
)

// ReminderGenerator turns reminder rules into concrete jobs for one trigger
// occurrence. Implemented by the reminder scheduler; consumed by the workflow
// and SLA services so NOTIFY-style effects never block the mutation path.
type ReminderGenerator interface {
	GenerateForTrigger(ctx context.Context, trigger models.TriggerType, entity *models.Entity, now time.Time) (int, error)
}

// TickReport summarizes one reminder dispatch tick.
type TickReport struct {
	Reclaimed int
	Due       int
	Leased    int
	Sent      int
	Retried   int
	Failed    int
	Exhausted int
}

// ReminderService is the polling-path surface of the reminder scheduler.
type ReminderService interface {
	ReminderGenerator

	// GenerateRecurring evaluates TIME_BASED reminder rules across all
	// non-terminal entities and generates jobs that are due, honoring each
	// rule's repeat interval.
	GenerateRecurring(ctx context.Context, now time.Time) (int, error)

	// Tick leases and dispatches due jobs, applying retry with bounded
	// exponential backoff.
	Tick(ctx context.Context, now time.Time) (TickReport, error)
}

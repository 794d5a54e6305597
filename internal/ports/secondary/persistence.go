package secondary

import (
	"context"
	"time"

	"github.com/example/loanflow/internal/models"
)

// JobFilters narrows job listings.
type JobFilters struct {
	EntityID string
	Status   models.JobStatus
}

// JobRepository persists reminder jobs, the state owned by the core.
type JobRepository interface {
	// Create persists a new job in QUEUED state.
	Create(ctx context.Context, job *models.ReminderJob) error

	// GetByID retrieves a job by its ID.
	GetByID(ctx context.Context, id string) (*models.ReminderJob, error)

	// List retrieves jobs matching the given filters, newest first.
	List(ctx context.Context, filters JobFilters) ([]*models.ReminderJob, error)

	// ListDue returns QUEUED jobs with scheduled_at <= now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ReminderJob, error)

	// Lease atomically claims a job (QUEUED -> SENDING). Returns false if
	// another worker already claimed it.
	Lease(ctx context.Context, id string) (bool, error)

	// MarkSent finalizes a leased job as delivered.
	MarkSent(ctx context.Context, id string, at time.Time) error

	// Reschedule returns a leased job to QUEUED after a transient failure,
	// recording the attempt count, error text and next due time.
	Reschedule(ctx context.Context, id string, attempts int, lastError string, nextAt time.Time) error

	// MarkExhausted finalizes a leased job after its retry budget is spent.
	MarkExhausted(ctx context.Context, id string, attempts int, lastError string) error

	// MarkFailed finalizes a leased job after a permanent failure.
	MarkFailed(ctx context.Context, id string, attempts int, lastError string) error

	// CancelPending cancels all QUEUED jobs for an entity and returns how
	// many were cancelled.
	CancelPending(ctx context.Context, entityID string) (int, error)

	// ReclaimStale returns SENDING jobs whose lease was taken at or before
	// the cutoff to QUEUED, so a worker death between lease and finalize
	// cannot strand a job. Returns how many were requeued.
	ReclaimStale(ctx context.Context, cutoff time.Time) (int, error)

	// LastScheduledFor returns the scheduled_at of the most recent
	// non-cancelled job generated for an entity/rule pair, if any. Used to
	// pace recurring reminder rules.
	LastScheduledFor(ctx context.Context, entityID, ruleID string) (time.Time, bool, error)
}

// EscalationFilters narrows escalation listings.
type EscalationFilters struct {
	EntityID string
	OpenOnly bool
}

// EscalationRepository persists escalations, the second state owned by the core.
type EscalationRepository interface {
	// Create persists a new open escalation.
	Create(ctx context.Context, escalation *models.Escalation) error

	// GetByID retrieves an escalation by its ID.
	GetByID(ctx context.Context, id string) (*models.Escalation, error)

	// List retrieves escalations matching the given filters, newest first.
	List(ctx context.Context, filters EscalationFilters) ([]*models.Escalation, error)

	// MaxOpenLevel returns the highest level among open escalations for the
	// entity/reason pair, or 0 if none are open.
	MaxOpenLevel(ctx context.Context, entityID, reason string) (int, error)

	// Resolve closes an escalation exactly once. Returns false if it was
	// already resolved (not an error: resolution is idempotent).
	Resolve(ctx context.Context, id, resolvedBy string, at time.Time) (bool, error)

	// ResolveAllForEntity closes every open escalation for an entity and
	// returns how many were closed.
	ResolveAllForEntity(ctx context.Context, entityID, resolvedBy string, at time.Time) (int, error)
}

// EffectIndex is the insert-if-absent index behind idempotent side effects:
// action-effect dedup and once-per-episode SLA breach firing.
type EffectIndex interface {
	// Record inserts the key if absent. Returns true when the key is new,
	// meaning the caller holds the right to perform the effect.
	Record(ctx context.Context, key string) (bool, error)
}

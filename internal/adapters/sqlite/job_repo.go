package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/secondary"
)

// JobRepository implements secondary.JobRepository with SQLite.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new SQLite job repository.
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, entity_id, rule_id, channel, template_name, recipient, payload, scheduled_at, status, attempts, max_retries, last_error, created_at, updated_at`

// Create persists a new job in QUEUED state.
func (r *JobRepository) Create(ctx context.Context, job *models.ReminderJob) error {
	payload := []byte("{}")
	if job.Payload != nil {
		var err error
		payload, err = json.Marshal(job.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal job payload: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reminder_jobs (id, entity_id, rule_id, channel, template_name, recipient, payload, scheduled_at, status, max_retries) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.EntityID,
		job.RuleID,
		string(job.Channel),
		job.TemplateName,
		job.Recipient,
		string(payload),
		job.ScheduledAt.UTC(),
		string(models.JobQueued),
		job.MaxRetries,
	)
	if err != nil {
		return fmt.Errorf("failed to create reminder job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.ReminderJob, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM reminder_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reminder job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder job: %w", err)
	}
	return job, nil
}

// List retrieves jobs matching the given filters, newest first.
func (r *JobRepository) List(ctx context.Context, filters secondary.JobFilters) ([]*models.ReminderJob, error) {
	query := `SELECT ` + jobColumns + ` FROM reminder_jobs WHERE 1=1`
	args := []any{}

	if filters.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filters.EntityID)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filters.Status))
	}
	query += " ORDER BY created_at DESC"

	return r.queryJobs(ctx, query, args...)
}

// ListDue returns QUEUED jobs with scheduled_at <= now, oldest first.
func (r *JobRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ReminderJob, error) {
	query := `SELECT ` + jobColumns + ` FROM reminder_jobs WHERE status = ? AND scheduled_at <= ? ORDER BY scheduled_at ASC`
	args := []any{string(models.JobQueued), now.UTC()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.queryJobs(ctx, query, args...)
}

// Lease atomically claims a job. The status guard in the WHERE clause means
// exactly one concurrent worker wins the claim.
func (r *JobRepository) Lease(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reminder_jobs SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		string(models.JobSending), id, string(models.JobQueued),
	)
	if err != nil {
		return false, fmt.Errorf("failed to lease reminder job: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

// MarkSent finalizes a leased job as delivered.
func (r *JobRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	return r.finalize(ctx, id, models.JobSending,
		`UPDATE reminder_jobs SET status = ?, attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		string(models.JobSent), id, string(models.JobSending))
}

// Reschedule returns a leased job to QUEUED with its next due time.
func (r *JobRepository) Reschedule(ctx context.Context, id string, attempts int, lastError string, nextAt time.Time) error {
	return r.finalize(ctx, id, models.JobSending,
		`UPDATE reminder_jobs SET status = ?, attempts = ?, last_error = ?, scheduled_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		string(models.JobQueued), attempts, lastError, nextAt.UTC(), id, string(models.JobSending))
}

// MarkExhausted finalizes a leased job after its retry budget is spent.
// The last_error text is retained for operability.
func (r *JobRepository) MarkExhausted(ctx context.Context, id string, attempts int, lastError string) error {
	return r.finalize(ctx, id, models.JobSending,
		`UPDATE reminder_jobs SET status = ?, attempts = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		string(models.JobExhausted), attempts, lastError, id, string(models.JobSending))
}

// MarkFailed finalizes a leased job after a permanent failure.
func (r *JobRepository) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	return r.finalize(ctx, id, models.JobSending,
		`UPDATE reminder_jobs SET status = ?, attempts = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		string(models.JobFailed), attempts, lastError, id, string(models.JobSending))
}

// CancelPending cancels all QUEUED jobs for an entity.
func (r *JobRepository) CancelPending(ctx context.Context, entityID string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reminder_jobs SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE entity_id = ? AND status = ?`,
		string(models.JobCancelled), entityID, string(models.JobQueued),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending jobs: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

// ReclaimStale requeues SENDING jobs whose lease is older than the cutoff.
func (r *JobRepository) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reminder_jobs SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE status = ? AND updated_at <= ?`,
		string(models.JobQueued), string(models.JobSending), cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale leases: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

// LastScheduledFor returns the most recent non-cancelled scheduled_at for an
// entity/rule pair.
func (r *JobRepository) LastScheduledFor(ctx context.Context, entityID, ruleID string) (time.Time, bool, error) {
	var at sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(scheduled_at) FROM reminder_jobs WHERE entity_id = ? AND rule_id = ? AND status != ?`,
		entityID, ruleID, string(models.JobCancelled),
	).Scan(&at)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last scheduled time: %w", err)
	}
	if !at.Valid {
		return time.Time{}, false, nil
	}
	return at.Time, true, nil
}

func (r *JobRepository) finalize(ctx context.Context, id string, expect models.JobStatus, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update reminder job: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("reminder job %s not in %s state", id, expect)
	}
	return nil
}

func (r *JobRepository) queryJobs(ctx context.Context, query string, args ...any) ([]*models.ReminderJob, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ReminderJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*models.ReminderJob, error) {
	var (
		job        models.ReminderJob
		channel    string
		status     string
		rawPayload string
	)
	err := row.Scan(&job.ID, &job.EntityID, &job.RuleID, &channel, &job.TemplateName, &job.Recipient, &rawPayload, &job.ScheduledAt, &status, &job.Attempts, &job.MaxRetries, &job.LastError, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	job.Channel = models.Channel(channel)
	job.Status = models.JobStatus(status)

	payload := map[string]string{}
	if rawPayload != "" {
		if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
			return nil, fmt.Errorf("failed to parse job payload: %w", err)
		}
	}
	job.Payload = payload
	return &job, nil
}

// Ensure JobRepository implements the interface
var _ secondary.JobRepository = (*JobRepository)(nil)

package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/secondary"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memJobRepository is an in-memory JobRepository for scheduler tests.
type memJobRepository struct {
	jobs []*models.ReminderJob
}

func (m *memJobRepository) Create(ctx context.Context, job *models.ReminderJob) error {
	copied := *job
	if copied.Status == "" {
		copied.Status = models.JobQueued
	}
	m.jobs = append(m.jobs, &copied)
	return nil
}

func (m *memJobRepository) GetByID(ctx context.Context, id string) (*models.ReminderJob, error) {
	for _, j := range m.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, fmt.Errorf("job not found: %s", id)
}

func (m *memJobRepository) List(ctx context.Context, filters secondary.JobFilters) ([]*models.ReminderJob, error) {
	var out []*models.ReminderJob
	for _, j := range m.jobs {
		if filters.EntityID != "" && j.EntityID != filters.EntityID {
			continue
		}
		if filters.Status != "" && j.Status != filters.Status {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func (m *memJobRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ReminderJob, error) {
	var out []*models.ReminderJob
	for _, j := range m.jobs {
		if j.Status == models.JobQueued && !j.ScheduledAt.After(now) {
			copied := *j
			out = append(out, &copied)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memJobRepository) Lease(ctx context.Context, id string) (bool, error) {
	for _, j := range m.jobs {
		if j.ID == id {
			if j.Status != models.JobQueued {
				return false, nil
			}
			j.Status = models.JobSending
			j.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *memJobRepository) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	for _, j := range m.jobs {
		if j.Status == models.JobSending && !j.UpdatedAt.After(cutoff) {
			j.Status = models.JobQueued
			n++
		}
	}
	return n, nil
}

func (m *memJobRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	j, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	j.Status = models.JobSent
	j.Attempts++
	j.UpdatedAt = at
	return nil
}

func (m *memJobRepository) Reschedule(ctx context.Context, id string, attempts int, lastError string, nextAt time.Time) error {
	j, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	j.Status = models.JobQueued
	j.Attempts = attempts
	j.LastError = lastError
	j.ScheduledAt = nextAt
	return nil
}

func (m *memJobRepository) MarkExhausted(ctx context.Context, id string, attempts int, lastError string) error {
	j, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	j.Status = models.JobExhausted
	j.Attempts = attempts
	j.LastError = lastError
	return nil
}

func (m *memJobRepository) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	j, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	j.Status = models.JobFailed
	j.Attempts = attempts
	j.LastError = lastError
	return nil
}

func (m *memJobRepository) CancelPending(ctx context.Context, entityID string) (int, error) {
	n := 0
	for _, j := range m.jobs {
		if j.EntityID == entityID && j.Status == models.JobQueued {
			j.Status = models.JobCancelled
			n++
		}
	}
	return n, nil
}

func (m *memJobRepository) LastScheduledFor(ctx context.Context, entityID, ruleID string) (time.Time, bool, error) {
	var latest time.Time
	found := false
	for _, j := range m.jobs {
		if j.EntityID != entityID || j.RuleID != ruleID || j.Status == models.JobCancelled {
			continue
		}
		if !found || j.ScheduledAt.After(latest) {
			latest = j.ScheduledAt
			found = true
		}
	}
	return latest, found, nil
}

// memEntityStore serves entity listings; scheduler code never mutates entities.
type memEntityStore struct {
	entities []*models.Entity
}

func (m *memEntityStore) Get(ctx context.Context, id string) (*models.Entity, error) {
	for _, e := range m.entities {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("entity not found: %s", id)
}

func (m *memEntityStore) Create(ctx context.Context, entity *models.Entity) error {
	m.entities = append(m.entities, entity)
	return nil
}

func (m *memEntityStore) ListNonTerminal(ctx context.Context, t models.EntityType, terminal []models.Stage) ([]*models.Entity, error) {
	isTerminal := map[models.Stage]bool{}
	for _, s := range terminal {
		isTerminal[s] = true
	}
	var out []*models.Entity
	for _, e := range m.entities {
		if e.Type == t && !isTerminal[e.Stage] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEntityStore) ApplyTransition(ctx context.Context, id string, from, to models.Stage, at time.Time) error {
	return fmt.Errorf("not supported in scheduler tests")
}

func (m *memEntityStore) AppendHistory(ctx context.Context, rec *models.HistoryRecord) (int64, error) {
	return 0, fmt.Errorf("not supported in scheduler tests")
}

func (m *memEntityStore) SetField(ctx context.Context, id, field string, value any) error {
	return fmt.Errorf("not supported in scheduler tests")
}

func (m *memEntityStore) Assign(ctx context.Context, id, assignee string) error {
	return fmt.Errorf("not supported in scheduler tests")
}

func (m *memEntityStore) SetFlag(ctx context.Context, id, name string, value bool) error {
	return fmt.Errorf("not supported in scheduler tests")
}

// scriptedGateway returns queued errors in order, then succeeds.
type scriptedGateway struct {
	errs  []error
	sends []string // template names, in dispatch order
}

func (g *scriptedGateway) Send(ctx context.Context, channel models.Channel, template, recipient string, payload map[string]string) error {
	g.sends = append(g.sends, template)
	if len(g.errs) == 0 {
		return nil
	}
	err := g.errs[0]
	g.errs = g.errs[1:]
	return err
}

var (
	_ secondary.JobRepository   = (*memJobRepository)(nil)
	_ secondary.EntityStore     = (*memEntityStore)(nil)
	_ secondary.DispatchGateway = (*scriptedGateway)(nil)
)

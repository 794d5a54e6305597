package app

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

// mockEntityStore is an in-memory EntityStore recording mutations.
type mockEntityStore struct {
	entities map[string]*models.Entity
	history  []*models.HistoryRecord

	applied     []string // "id:from->to"
	assignErr   error
	applyErr    error
	transitions int
}

func newMockEntityStore(entities ...*models.Entity) *mockEntityStore {
	m := &mockEntityStore{entities: map[string]*models.Entity{}}
	for _, e := range entities {
		m.entities[e.ID] = e
	}
	return m
}

func (m *mockEntityStore) Get(ctx context.Context, id string) (*models.Entity, error) {
	e, ok := m.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity not found: %s", id)
	}
	copied := *e
	return &copied, nil
}

func (m *mockEntityStore) Create(ctx context.Context, entity *models.Entity) error {
	if _, exists := m.entities[entity.ID]; exists {
		return fmt.Errorf("entity already exists: %s", entity.ID)
	}
	copied := *entity
	m.entities[entity.ID] = &copied
	return nil
}

func (m *mockEntityStore) ListNonTerminal(ctx context.Context, t models.EntityType, terminal []models.Stage) ([]*models.Entity, error) {
	isTerminal := map[models.Stage]bool{}
	for _, s := range terminal {
		isTerminal[s] = true
	}
	var out []*models.Entity
	for _, e := range m.entities {
		if e.Type == t && !isTerminal[e.Stage] {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockEntityStore) ApplyTransition(ctx context.Context, id string, from, to models.Stage, at time.Time) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	e, ok := m.entities[id]
	if !ok {
		return fmt.Errorf("entity not found: %s", id)
	}
	if e.Stage != from {
		return secondary.ErrStageConflict
	}
	e.Stage = to
	e.StageEnteredAt = at
	m.transitions++
	m.applied = append(m.applied, fmt.Sprintf("%s:%s->%s", id, from, to))
	return nil
}

func (m *mockEntityStore) AppendHistory(ctx context.Context, rec *models.HistoryRecord) (int64, error) {
	seq := int64(1)
	for _, h := range m.history {
		if h.EntityID == rec.EntityID {
			seq++
		}
	}
	rec.Seq = seq
	m.history = append(m.history, rec)
	return seq, nil
}

func (m *mockEntityStore) SetField(ctx context.Context, id, field string, value any) error {
	e, ok := m.entities[id]
	if !ok {
		return fmt.Errorf("entity not found: %s", id)
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	e.Metadata[field] = value
	return nil
}

func (m *mockEntityStore) Assign(ctx context.Context, id, assignee string) error {
	if m.assignErr != nil {
		return m.assignErr
	}
	e, ok := m.entities[id]
	if !ok {
		return fmt.Errorf("entity not found: %s", id)
	}
	e.Assignee = assignee
	return nil
}

func (m *mockEntityStore) SetFlag(ctx context.Context, id, name string, value bool) error {
	// Same key convention as the sqlite store: the flag name is the
	// metadata key, unprefixed.
	return m.SetField(ctx, id, name, value)
}

// mockJobRepository is an in-memory JobRepository covering the paths the
// application layer exercises.
type mockJobRepository struct {
	jobs      []*models.ReminderJob
	createErr error
	cancelled int
}

func (m *mockJobRepository) Create(ctx context.Context, job *models.ReminderJob) error {
	if m.createErr != nil {
		return m.createErr
	}
	copied := *job
	if copied.Status == "" {
		copied.Status = models.JobQueued
	}
	m.jobs = append(m.jobs, &copied)
	return nil
}

func (m *mockJobRepository) GetByID(ctx context.Context, id string) (*models.ReminderJob, error) {
	for _, j := range m.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, fmt.Errorf("job not found: %s", id)
}

func (m *mockJobRepository) List(ctx context.Context, filters secondary.JobFilters) ([]*models.ReminderJob, error) {
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

func (m *mockJobRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ReminderJob, error) {
	var out []*models.ReminderJob
	for _, j := range m.jobs {
		if j.Status == models.JobQueued && !j.ScheduledAt.After(now) {
			out = append(out, j)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockJobRepository) Lease(ctx context.Context, id string) (bool, error) {
	for _, j := range m.jobs {
		if j.ID == id && j.Status == models.JobQueued {
			j.Status = models.JobSending
			return true, nil
		}
	}
	return false, nil
}

func (m *mockJobRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	return m.finalize(id, models.JobSent, -1, "")
}

func (m *mockJobRepository) Reschedule(ctx context.Context, id string, attempts int, lastError string, nextAt time.Time) error {
	for _, j := range m.jobs {
		if j.ID == id {
			j.Status = models.JobQueued
			j.Attempts = attempts
			j.LastError = lastError
			j.ScheduledAt = nextAt
			return nil
		}
	}
	return fmt.Errorf("job not found: %s", id)
}

func (m *mockJobRepository) MarkExhausted(ctx context.Context, id string, attempts int, lastError string) error {
	return m.finalize(id, models.JobExhausted, attempts, lastError)
}

func (m *mockJobRepository) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	return m.finalize(id, models.JobFailed, attempts, lastError)
}

func (m *mockJobRepository) finalize(id string, status models.JobStatus, attempts int, lastError string) error {
	for _, j := range m.jobs {
		if j.ID == id {
			j.Status = status
			if attempts >= 0 {
				j.Attempts = attempts
			}
			j.LastError = lastError
			return nil
		}
	}
	return fmt.Errorf("job not found: %s", id)
}

func (m *mockJobRepository) CancelPending(ctx context.Context, entityID string) (int, error) {
	n := 0
	for _, j := range m.jobs {
		if j.EntityID == entityID && j.Status == models.JobQueued {
			j.Status = models.JobCancelled
			n++
		}
	}
	m.cancelled += n
	return n, nil
}

func (m *mockJobRepository) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	for _, j := range m.jobs {
		if j.Status == models.JobSending && !j.UpdatedAt.After(cutoff) {
			j.Status = models.JobQueued
			n++
		}
	}
	return n, nil
}

func (m *mockJobRepository) LastScheduledFor(ctx context.Context, entityID, ruleID string) (time.Time, bool, error) {
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

// mockEscalationRepository is an in-memory EscalationRepository.
type mockEscalationRepository struct {
	escalations []*models.Escalation
	createErr   error
}

func (m *mockEscalationRepository) Create(ctx context.Context, escalation *models.Escalation) error {
	if m.createErr != nil {
		return m.createErr
	}
	copied := *escalation
	m.escalations = append(m.escalations, &copied)
	return nil
}

func (m *mockEscalationRepository) GetByID(ctx context.Context, id string) (*models.Escalation, error) {
	for _, e := range m.escalations {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("escalation not found: %s", id)
}

func (m *mockEscalationRepository) List(ctx context.Context, filters secondary.EscalationFilters) ([]*models.Escalation, error) {
	var out []*models.Escalation
	for _, e := range m.escalations {
		if filters.EntityID != "" && e.EntityID != filters.EntityID {
			continue
		}
		if filters.OpenOnly && !e.Open() {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockEscalationRepository) MaxOpenLevel(ctx context.Context, entityID, reason string) (int, error) {
	max := 0
	for _, e := range m.escalations {
		if e.EntityID == entityID && e.Reason == reason && e.Open() && e.Level > max {
			max = e.Level
		}
	}
	return max, nil
}

func (m *mockEscalationRepository) Resolve(ctx context.Context, id, resolvedBy string, at time.Time) (bool, error) {
	for _, e := range m.escalations {
		if e.ID == id {
			if !e.Open() {
				return false, nil
			}
			e.ResolvedAt.Time = at
			e.ResolvedAt.Valid = true
			e.ResolvedBy.String = resolvedBy
			e.ResolvedBy.Valid = true
			return true, nil
		}
	}
	return false, fmt.Errorf("escalation not found: %s", id)
}

func (m *mockEscalationRepository) ResolveAllForEntity(ctx context.Context, entityID, resolvedBy string, at time.Time) (int, error) {
	n := 0
	for _, e := range m.escalations {
		if e.EntityID == entityID && e.Open() {
			e.ResolvedAt.Time = at
			e.ResolvedAt.Valid = true
			e.ResolvedBy.String = resolvedBy
			e.ResolvedBy.Valid = true
			n++
		}
	}
	return n, nil
}

func (m *mockEscalationRepository) openFor(entityID string) []*models.Escalation {
	var out []*models.Escalation
	for _, e := range m.escalations {
		if e.EntityID == entityID && e.Open() {
			out = append(out, e)
		}
	}
	return out
}

// mockEffectIndex records claimed effect keys in memory.
type mockEffectIndex struct {
	seen      map[string]bool
	recordErr error
}

func newMockEffectIndex() *mockEffectIndex {
	return &mockEffectIndex{seen: map[string]bool{}}
}

func (m *mockEffectIndex) Record(ctx context.Context, key string) (bool, error) {
	if m.recordErr != nil {
		return false, m.recordErr
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

// mockReminderGenerator counts trigger occurrences handed to the scheduler.
type mockReminderGenerator struct {
	calls []models.TriggerType
}

func (m *mockReminderGenerator) GenerateForTrigger(ctx context.Context, trigger models.TriggerType, entity *models.Entity, now time.Time) (int, error) {
	m.calls = append(m.calls, trigger)
	return 0, nil
}

var (
	_ secondary.EntityStore          = (*mockEntityStore)(nil)
	_ secondary.JobRepository        = (*mockJobRepository)(nil)
	_ secondary.EscalationRepository = (*mockEscalationRepository)(nil)
	_ secondary.EffectIndex          = (*mockEffectIndex)(nil)
)

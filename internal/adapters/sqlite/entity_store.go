// Package sqlite contains SQLite implementations of the secondary ports.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/secondary"
)

// EntityStore implements secondary.EntityStore with SQLite.
type EntityStore struct {
	db *sql.DB
}

// NewEntityStore creates a new SQLite entity store.
func NewEntityStore(db *sql.DB) *EntityStore {
	return &EntityStore{db: db}
}

const entityColumns = `id, type, stage, awaiting_party, assignee, priority, stage_entered_at, metadata`

// Get returns a snapshot of an entity.
func (s *EntityStore) Get(ctx context.Context, id string) (*models.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return entity, nil
}

// Create persists a new entity record.
func (s *EntityStore) Create(ctx context.Context, entity *models.Entity) error {
	meta, err := json.Marshal(entity.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal entity metadata: %w", err)
	}
	if entity.Metadata == nil {
		meta = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (id, type, stage, awaiting_party, assignee, priority, stage_entered_at, metadata) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entity.ID,
		string(entity.Type),
		string(entity.Stage),
		string(entity.AwaitingParty),
		entity.Assignee,
		entity.Priority,
		entity.StageEnteredAt.UTC(),
		string(meta),
	)
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}
	return nil
}

// ListNonTerminal returns all entities of a type not in a terminal stage.
func (s *EntityStore) ListNonTerminal(ctx context.Context, t models.EntityType, terminal []models.Stage) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE type = ?`
	args := []any{string(t)}
	if len(terminal) > 0 {
		query += " AND stage NOT IN (?" + strings.Repeat(",?", len(terminal)-1) + ")"
		for _, stage := range terminal {
			args = append(args, string(stage))
		}
	}
	query += " ORDER BY stage_entered_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// ApplyTransition conditionally moves the entity to a new stage, resetting
// stage_entered_at. The stage guard in the WHERE clause makes the update
// atomic against concurrent mutations.
func (s *EntityStore) ApplyTransition(ctx context.Context, id string, from, to models.Stage, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE entities SET stage = ?, stage_entered_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND stage = ?`,
		string(to), at.UTC(), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to apply transition: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return secondary.ErrStageConflict
	}
	return nil
}

// AppendHistory appends a stage-history record with the next per-entity
// sequence number and returns it.
func (s *EntityStore) AppendHistory(ctx context.Context, rec *models.HistoryRecord) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entity_history (entity_id, seq, from_stage, to_stage, actor, created_at)
		 VALUES (?1, COALESCE((SELECT MAX(seq) FROM entity_history WHERE entity_id = ?1), 0) + 1, ?2, ?3, ?4, ?5)`,
		rec.EntityID, string(rec.FromStage), string(rec.ToStage), rec.Actor, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append history: %w", err)
	}

	var seq int64
	err = s.db.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM entity_history WHERE entity_id = ?`, rec.EntityID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to read history sequence: %w", err)
	}
	return seq, nil
}

// SetField writes a metadata field on the entity.
func (s *EntityStore) SetField(ctx context.Context, id, field string, value any) error {
	return s.updateMetadata(ctx, id, func(meta map[string]any) {
		meta[field] = value
	})
}

// Assign sets the entity's assignee.
func (s *EntityStore) Assign(ctx context.Context, id, assignee string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE entities SET assignee = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		assignee, id,
	)
	if err != nil {
		return fmt.Errorf("failed to assign entity: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("entity %s not found", id)
	}
	return nil
}

// SetFlag sets a named boolean metadata flag on the entity.
func (s *EntityStore) SetFlag(ctx context.Context, id, name string, value bool) error {
	return s.updateMetadata(ctx, id, func(meta map[string]any) {
		meta[name] = value
	})
}

func (s *EntityStore) updateMetadata(ctx context.Context, id string, mutate func(map[string]any)) error {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT metadata FROM entities WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("entity %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to read entity metadata: %w", err)
	}

	meta := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return fmt.Errorf("failed to parse entity metadata: %w", err)
		}
	}
	mutate(meta)

	updated, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal entity metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE entities SET metadata = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(updated), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update entity metadata: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*models.Entity, error) {
	var (
		entity         models.Entity
		entityType     string
		stage          string
		awaitingParty  string
		stageEnteredAt time.Time
		rawMeta        string
	)
	err := row.Scan(&entity.ID, &entityType, &stage, &awaitingParty, &entity.Assignee, &entity.Priority, &stageEnteredAt, &rawMeta)
	if err != nil {
		return nil, err
	}
	entity.Type = models.EntityType(entityType)
	entity.Stage = models.Stage(stage)
	entity.AwaitingParty = models.Party(awaitingParty)
	entity.StageEnteredAt = stageEnteredAt

	meta := map[string]any{}
	if rawMeta != "" {
		if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
	}
	entity.Metadata = meta
	return &entity, nil
}

// Ensure EntityStore implements the interface
var _ secondary.EntityStore = (*EntityStore)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/secondary"
)

// EscalationRepository implements secondary.EscalationRepository with SQLite.
type EscalationRepository struct {
	db *sql.DB
}

// NewEscalationRepository creates a new SQLite escalation repository.
func NewEscalationRepository(db *sql.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

const escalationColumns = `id, entity_id, level, reason, opened_at, resolved_at, resolved_by`

// Create persists a new open escalation.
func (r *EscalationRepository) Create(ctx context.Context, escalation *models.Escalation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO escalations (id, entity_id, level, reason, opened_at) VALUES (?, ?, ?, ?, ?)`,
		escalation.ID,
		escalation.EntityID,
		escalation.Level,
		escalation.Reason,
		escalation.OpenedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}
	return nil
}

// GetByID retrieves an escalation by its ID.
func (r *EscalationRepository) GetByID(ctx context.Context, id string) (*models.Escalation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+escalationColumns+` FROM escalations WHERE id = ?`, id)
	escalation, err := scanEscalation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("escalation %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation: %w", err)
	}
	return escalation, nil
}

// List retrieves escalations matching the given filters, newest first.
func (r *EscalationRepository) List(ctx context.Context, filters secondary.EscalationFilters) ([]*models.Escalation, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalations WHERE 1=1`
	args := []any{}

	if filters.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filters.EntityID)
	}
	if filters.OpenOnly {
		query += " AND resolved_at IS NULL"
	}
	query += " ORDER BY opened_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	defer rows.Close()

	var escalations []*models.Escalation
	for rows.Next() {
		escalation, err := scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		escalations = append(escalations, escalation)
	}
	return escalations, rows.Err()
}

// MaxOpenLevel returns the highest open level for an entity/reason pair.
func (r *EscalationRepository) MaxOpenLevel(ctx context.Context, entityID, reason string) (int, error) {
	var level sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(level) FROM escalations WHERE entity_id = ? AND reason = ? AND resolved_at IS NULL`,
		entityID, reason,
	).Scan(&level)
	if err != nil {
		return 0, fmt.Errorf("failed to read max open level: %w", err)
	}
	if !level.Valid {
		return 0, nil
	}
	return int(level.Int64), nil
}

// Resolve closes an escalation exactly once. The resolved_at guard makes
// repeated resolution a no-op.
func (r *EscalationRepository) Resolve(ctx context.Context, id, resolvedBy string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE escalations SET resolved_at = ?, resolved_by = ? WHERE id = ? AND resolved_at IS NULL`,
		at.UTC(), resolvedBy, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to resolve escalation: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

// ResolveAllForEntity closes every open escalation for an entity.
func (r *EscalationRepository) ResolveAllForEntity(ctx context.Context, entityID, resolvedBy string, at time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE escalations SET resolved_at = ?, resolved_by = ? WHERE entity_id = ? AND resolved_at IS NULL`,
		at.UTC(), resolvedBy, entityID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve escalations: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

func scanEscalation(row rowScanner) (*models.Escalation, error) {
	escalation := &models.Escalation{}
	err := row.Scan(&escalation.ID, &escalation.EntityID, &escalation.Level, &escalation.Reason, &escalation.OpenedAt, &escalation.ResolvedAt, &escalation.ResolvedBy)
	if err != nil {
		return nil, err
	}
	return escalation, nil
}

// Ensure EscalationRepository implements the interface
var _ secondary.EscalationRepository = (*EscalationRepository)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/loanflow/internal/ports/secondary"
)

// EffectIndex implements secondary.EffectIndex with an INSERT OR IGNORE on a
// primary-keyed table. Exactly one concurrent caller observes a fresh insert
// for any given key.
type EffectIndex struct {
	db *sql.DB
}

// NewEffectIndex creates a new SQLite effect index.
func NewEffectIndex(db *sql.DB) *EffectIndex {
	return &EffectIndex{db: db}
}

// Record inserts the key if absent. Returns true when the key is new.
func (i *EffectIndex) Record(ctx context.Context, key string) (bool, error) {
	result, err := i.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO effect_keys (key) VALUES (?)`, key)
	if err != nil {
		return false, fmt.Errorf("failed to record effect key: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

// Ensure EffectIndex implements the interface
var _ secondary.EffectIndex = (*EffectIndex)(nil)

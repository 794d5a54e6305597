package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/loanflow/internal/db"
	"github.com/example/loanflow/internal/models"
)

// setupTestDB creates an in-memory database with the real schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if _, err := database.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to initialize test schema: %v", err)
	}
	return database
}

func seedEntity(t *testing.T, store *EntityStore, id string, entityType models.EntityType, stage models.Stage) *models.Entity {
	t.Helper()
	entity := &models.Entity{
		ID:             id,
		Type:           entityType,
		Stage:          stage,
		AwaitingParty:  models.PartyStaff,
		Priority:       1,
		StageEnteredAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Metadata:       map[string]any{"phone": "+911234567890"},
	}
	if err := store.Create(context.Background(), entity); err != nil {
		t.Fatalf("failed to seed entity %s: %v", id, err)
	}
	return entity
}

func seedJob(t *testing.T, repo *JobRepository, id, entityID string, scheduledAt time.Time) {
	t.Helper()
	err := repo.Create(context.Background(), &models.ReminderJob{
		ID:           id,
		EntityID:     entityID,
		RuleID:       "rem-1",
		Channel:      models.ChannelWhatsApp,
		TemplateName: "docs_nudge",
		Recipient:    "+911234567890",
		Payload:      map[string]string{"entity_id": entityID},
		ScheduledAt:  scheduledAt,
		MaxRetries:   3,
	})
	if err != nil {
		t.Fatalf("failed to seed job %s: %v", id, err)
	}
}

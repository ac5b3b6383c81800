package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-audio/migrations"
)

const testSecret = "test-secret-key-for-jwt-signing-32b"

// testDB opens a temporary database with the embedded schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		WALMode:     true,
		BusyTimeout: 5,
		Migrations:  migrations.FS,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db.DB
}

// seedToken stores a token record for clientID expiring after ttl.
func seedToken(t *testing.T, repo *SQLiteTokenRepository, id, clientID string, ttl time.Duration) *IssuedToken {
	t.Helper()

	token := &IssuedToken{
		ID:        id,
		ClientID:  clientID,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := repo.Create(context.Background(), token); err != nil {
		t.Fatalf("creating token %s: %v", id, err)
	}
	return token
}

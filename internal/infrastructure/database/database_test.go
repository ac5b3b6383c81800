package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T, cfg Config) *DB {
	t.Helper()

	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "test.db")
	}
	cfg.WALMode = true
	cfg.BusyTimeout = 5

	db, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestOpen(t *testing.T) {
	t.Run("creates nested directory and file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "audio.db")
		db := openTestDB(t, Config{Path: dbPath})

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("single writer pool", func(t *testing.T) {
		db := openTestDB(t, Config{})
		if got := db.Stats().MaxOpenConnections; got != 1 {
			t.Errorf("MaxOpenConnections = %v, want 1", got)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		if _, err := Open(context.Background(), Config{}); !errors.Is(err, ErrPathRequired) {
			t.Errorf("Open() error = %v, want ErrPathRequired", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := Open(ctx, Config{Path: filepath.Join(t.TempDir(), "x.db")}); err == nil {
			t.Error("Open() expected error for cancelled context")
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "close.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

func TestExecContext(t *testing.T) {
	db := openTestDB(t, Config{})
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE probes (id INTEGER PRIMARY KEY, device TEXT NOT NULL)"); err != nil {
		t.Fatalf("ExecContext() CREATE error = %v", err)
	}

	result, err := db.ExecContext(ctx, "INSERT INTO probes (device) VALUES (?)", "speakers")
	if err != nil {
		t.Fatalf("ExecContext() INSERT error = %v", err)
	}
	if id, _ := result.LastInsertId(); id != 1 {
		t.Errorf("LastInsertId() = %v, want 1", id)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO missing (x) VALUES (1)"); err == nil {
		t.Error("ExecContext() expected error for missing table")
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			"rollback journal",
			Config{Path: "/var/lib/audio.db", BusyTimeout: 5},
			"file:/var/lib/audio.db?_busy_timeout=5000&_foreign_keys=on",
		},
		{
			"wal",
			Config{Path: "audio.db", WALMode: true},
			"file:audio.db?_busy_timeout=0&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dsn(tt.cfg); got != tt.want {
				t.Errorf("dsn() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBeginTx(t *testing.T) {
	tests := []struct {
		name      string
		commit    bool
		wantCount int
	}{
		{"commit", true, 1},
		{"rollback", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t, Config{})
			ctx := context.Background()

			if _, err := db.ExecContext(ctx, "CREATE TABLE tx_test (id INTEGER PRIMARY KEY, value TEXT)"); err != nil {
				t.Fatalf("CREATE TABLE error = %v", err)
			}

			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				t.Fatalf("BeginTx() error = %v", err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO tx_test (value) VALUES (?)", tt.name); err != nil {
				t.Fatalf("INSERT error = %v", err)
			}
			if tt.commit {
				err = tx.Commit()
			} else {
				err = tx.Rollback()
			}
			if err != nil {
				t.Fatalf("finishing transaction error = %v", err)
			}

			var count int
			if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tx_test").Scan(&count); err != nil {
				t.Fatalf("SELECT error = %v", err)
			}
			if count != tt.wantCount {
				t.Errorf("rows = %d, want %d", count, tt.wantCount)
			}
		})
	}
}

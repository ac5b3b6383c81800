package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-audio/internal/pipewire"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteSnapshotRepository implements SnapshotRepository using SQLite.
//
// It stores property sets as JSON objects in the node_snapshots table,
// preserving the order in which the server announced the keys.
type SQLiteSnapshotRepository struct {
	db *sql.DB
}

var _ SnapshotRepository = (*SQLiteSnapshotRepository)(nil)

// NewSQLiteSnapshotRepository creates a new SQLite snapshot repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteSnapshotRepository: Repository instance ready for use
func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

// RecordSnapshot inserts a snapshot row for status.DeviceID.
func (r *SQLiteSnapshotRepository) RecordSnapshot(ctx context.Context, status Status, source string) error {
	if status.DeviceID == "" {
		return errors.New("device id is required")
	}
	if source == "" {
		source = SnapshotSourcePoll
	}

	var propsJSON sql.NullString
	if status.Properties != nil {
		data, err := json.Marshal(status.Properties)
		if err != nil {
			return fmt.Errorf("marshalling properties: %w", err)
		}
		propsJSON = sql.NullString{String: string(data), Valid: true}
	}

	var nodeID sql.NullInt64
	if status.NodeID != nil {
		nodeID = sql.NullInt64{Int64: int64(*status.NodeID), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO node_snapshots (device_id, node_id, presence, properties, source)
		 VALUES (?, ?, ?, ?, ?)`,
		status.DeviceID,
		nodeID,
		string(status.Presence),
		propsJSON,
		source,
	)
	if err != nil {
		return fmt.Errorf("inserting node snapshot: %w", err)
	}

	return nil
}

// GetHistory returns recent snapshots for a device, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Configured device identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []SnapshotEntry: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteSnapshotRepository) GetHistory(ctx context.Context, deviceID string, limit int) ([]SnapshotEntry, error) {
	if deviceID == "" {
		return nil, errors.New("device id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, node_id, presence, properties, source, created_at
		 FROM node_snapshots
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying node snapshots: %w", err)
	}
	defer rows.Close()

	entries := make([]SnapshotEntry, 0, limit)
	for rows.Next() {
		var (
			entry     SnapshotEntry
			nodeID    sql.NullInt64
			presence  string
			propsJSON sql.NullString
			createdAt string
		)

		if err := rows.Scan(&entry.ID, &entry.DeviceID, &nodeID, &presence, &propsJSON, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning node snapshot: %w", err)
		}

		entry.Presence = Presence(presence)
		if nodeID.Valid {
			id := uint32(nodeID.Int64) //nolint:gosec // stored from a uint32
			entry.NodeID = &id
		}
		if propsJSON.Valid {
			props := pipewire.NewProperties()
			if err := json.Unmarshal([]byte(propsJSON.String), props); err != nil {
				return nil, fmt.Errorf("unmarshalling properties: %w", err)
			}
			entry.Properties = props
		}

		timestamp, err := parseHistoryTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating node snapshots: %w", err)
	}

	return entries, nil
}

// PruneHistory deletes snapshots older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteSnapshotRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM node_snapshots WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting node snapshots: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseHistoryTimestamp parses a timestamp stored in SQLite.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse(time.DateTime, value)
	if fallbackErr == nil {
		return fallback.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}

package device

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-audio/internal/pipewire"
)

// Snapshot source values.
const (
	SnapshotSourcePoll    = "poll"
	SnapshotSourceRequest = "request"
	SnapshotSourceAPI     = "api"
)

// SnapshotEntry is one recorded probe of a device's node.
//
// Entries are written when a device's presence or properties change, which
// gives a local audit trail of hot-plugs and renames even when the
// time-series database is unavailable.
type SnapshotEntry struct {
	// ID is the auto-incremented primary key for the snapshot row.
	ID int64 `json:"id"`

	// DeviceID is the configured device identifier.
	DeviceID string `json:"device_id"`

	// NodeID is the PipeWire global id, nil for the system default.
	NodeID *uint32 `json:"node_id,omitempty"`

	// Presence is the probe outcome.
	Presence Presence `json:"presence"`

	// Properties is the node's property set, nil unless present.
	Properties *pipewire.Properties `json:"properties,omitempty"`

	// Source identifies what triggered the probe (poll, request, api).
	Source string `json:"source"`

	// CreatedAt is the time the snapshot was stored (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotRepository stores and retrieves node snapshots.
//
// Implementations must be thread-safe and use UTC timestamps.
type SnapshotRepository interface {
	// RecordSnapshot stores the outcome of a probe.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - status: Probe result to persist
	//   - source: What triggered the probe (poll, request, api)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordSnapshot(ctx context.Context, status Status, source string) error

	// GetHistory returns recent snapshots for the device.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Configured device identifier
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []SnapshotEntry: Ordered newest-first entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	GetHistory(ctx context.Context, deviceID string, limit int) ([]SnapshotEntry, error)

	// PruneHistory deletes snapshots older than olderThan and returns how
	// many rows were removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

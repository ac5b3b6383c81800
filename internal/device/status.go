package device

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-audio/internal/pipewire"
)

// Status is the result of probing one device.
type Status struct {
	DeviceID   string               `json:"device_id"`
	Name       string               `json:"name"`
	Type       Type                 `json:"type"`
	NodeID     *uint32              `json:"node_id,omitempty"`
	Presence   Presence             `json:"presence"`
	Properties *pipewire.Properties `json:"properties,omitempty"`
	Error      string               `json:"error,omitempty"`
	Latency    time.Duration        `json:"latency_ns"`
	CheckedAt  time.Time            `json:"checked_at"`
}

// Probe runs one property query and classifies the outcome.
// The name is derived from the same query, so Probe costs one bridge session.
func Probe(ctx context.Context, d *Device) Status {
	st := Status{
		DeviceID:  d.ID(),
		Type:      d.Type(),
		CheckedAt: time.Now().UTC(),
	}

	node, ok := d.TargetNode()
	if !ok {
		st.Name = NameDefault
		st.Presence = PresenceDefault
		return st
	}
	st.NodeID = &node

	start := time.Now()
	props, err := d.Properties(ctx)
	st.Latency = time.Since(start)

	switch {
	case err != nil:
		d.logger.Warn("device probe failed", "device", d.ID(), "node", node, "error", err)
		st.Name = NameError
		st.Presence = PresenceError
		st.Error = err.Error()
	case props == nil:
		st.Name = NameUnknown
		st.Presence = PresenceAbsent
	default:
		st.Name = nameFromProperties(props)
		st.Presence = PresencePresent
		st.Properties = props
	}
	return st
}

// Changed reports whether s differs from prev in presence or properties.
func (s Status) Changed(prev Status) bool {
	return s.Presence != prev.Presence || !s.Properties.Equal(prev.Properties)
}

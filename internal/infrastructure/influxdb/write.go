package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementProbe  = "audio_probe"
	MeasurementHealth = "audio_health"
)

// Probe is one device probe outcome.
type Probe struct {
	DeviceID      string
	DeviceType    string
	Presence      string
	NodeID        *uint32
	Latency       time.Duration
	PropertyCount int
	Timestamp     time.Time
}

// Health summarises one monitor round.
type Health struct {
	Devices   int
	Present   int
	Absent    int
	Errors    int
	Timestamp time.Time
}

// WriteProbe records a probe outcome.
//
// Tags carry the device id, type and presence; fields carry the bridge
// round-trip latency and property count. The write is non-blocking.
//
// Example:
//
//	client.WriteProbe(influxdb.Probe{DeviceID: "speakers", Presence: "present", Latency: 4 * time.Millisecond})
func (c *Client) WriteProbe(p Probe) {
	fields := map[string]any{
		"latency_ms":     float64(p.Latency) / float64(time.Millisecond),
		"property_count": p.PropertyCount,
		"present":        p.Presence == "present",
	}
	if p.NodeID != nil {
		fields["node_id"] = int64(*p.NodeID)
	}

	c.write(write.NewPoint(
		MeasurementProbe,
		map[string]string{
			"device_id": p.DeviceID,
			"type":      p.DeviceType,
			"presence":  p.Presence,
		},
		fields,
		timestampOrNow(p.Timestamp),
	))
}

// WriteHealth records the totals of one monitor round.
func (c *Client) WriteHealth(h Health) {
	c.write(write.NewPoint(
		MeasurementHealth,
		map[string]string{"service": "graylogic-audio"},
		map[string]any{
			"devices": h.Devices,
			"present": h.Present,
			"absent":  h.Absent,
			"errors":  h.Errors,
		},
		timestampOrNow(h.Timestamp),
	))
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

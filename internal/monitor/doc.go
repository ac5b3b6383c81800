// Package monitor keeps configured audio devices under observation.
//
// A Monitor probes every device in the registry at a fixed interval through
// the PipeWire metadata bridge. When a device's presence or properties change
// it records a snapshot, publishes the retained state on
// graylogic/state/audio/{device} and broadcasts a device.state event to
// WebSocket clients. Every probe is also written as a time-series point.
//
// The monitor answers on-demand probe requests published to
// graylogic/request/audio/{device} with a response on
// graylogic/response/audio/{request_id}, and reports its own health on
// graylogic/health/audio after every round.
//
// All collaborators except the device registry are optional, so the monitor
// runs unchanged with MQTT, InfluxDB or the database disabled.
package monitor

// Package influxdb records monitor probes as InfluxDB v2 points.
//
// Two measurements are written: audio_probe per device per round, tagged
// with device_id and presence and carrying the bridge round trip, and
// audio_health once per round with present/absent/error totals. Points go
// through the library's batching write API, so a slow server delays
// nothing but the flush.
package influxdb

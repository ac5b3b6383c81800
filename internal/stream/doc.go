// Package stream defines the construction contract between audio devices and
// the component that owns a stream's lifecycle.
//
// A device never runs a stream itself. It captures what it knows about the
// target (object serial, stream label, client properties) and hands a copy of
// that, together with the requested Config, to a Builder. Buffer negotiation,
// real-time callback dispatch and start/stop/drain live behind Handle.
package stream

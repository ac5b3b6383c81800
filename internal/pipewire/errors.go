package pipewire

import "errors"

// Domain-specific errors for the PipeWire client.
var (
	// ErrConnectionFailed is returned when a session cannot be established.
	// Loop, connection, handshake and registry failures all map to it.
	ErrConnectionFailed = errors.New("pipewire: connection to server failed")

	// ErrDisconnected is returned when the server closes the socket while
	// the loop is running.
	ErrDisconnected = errors.New("pipewire: server closed the connection")

	// ErrProtocol is returned for malformed messages and server error events.
	ErrProtocol = errors.New("pipewire: protocol error")

	// ErrProtocolDesync is returned when a message header announces a size
	// the client refuses to buffer. The stream cannot be resynchronised.
	ErrProtocolDesync = errors.New("pipewire: protocol desync")

	// ErrTimeout is returned when a configured sync deadline expires or the
	// caller's context ends before the barrier is acknowledged.
	ErrTimeout = errors.New("pipewire: operation timed out")

	// ErrClosed is returned when a closed session or connection is used.
	ErrClosed = errors.New("pipewire: session closed")
)

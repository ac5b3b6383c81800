package device

import (
	"fmt"
	"strings"
)

// Type is the capability tag of a device.
type Type string

// Device types.
const (
	TypeInput  Type = "input"
	TypeOutput Type = "output"
	TypeDuplex Type = "duplex"
)

// ParseType converts a configuration string to a Type.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeInput, TypeOutput, TypeDuplex:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDeviceType, s)
	}
}

// HasInput reports whether the device can capture.
func (t Type) HasInput() bool {
	return t == TypeInput || t == TypeDuplex
}

// HasOutput reports whether the device can play back.
func (t Type) HasOutput() bool {
	return t == TypeOutput || t == TypeDuplex
}

// Display names returned by Name when no node name is available.
const (
	// NameDefault is returned for the system default device.
	NameDefault = "Default"

	// NameUnknown is returned when the node or its node.name is absent.
	NameUnknown = "Unknown"

	// NameError is returned when the bridge query fails.
	NameError = "Error"
)

// DefaultStreamName labels streams when none has been set.
const DefaultStreamName = "graylogic-audio-stream"

// Presence is the outcome of probing a device's node.
type Presence string

// Presence values.
const (
	// PresenceDefault marks the system default device; it is never probed.
	PresenceDefault Presence = "default"

	// PresencePresent means the node was announced.
	PresencePresent Presence = "present"

	// PresenceAbsent means the node was not announced before the barrier.
	PresenceAbsent Presence = "absent"

	// PresenceError means the query failed.
	PresenceError Presence = "error"
)

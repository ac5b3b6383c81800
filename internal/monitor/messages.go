package monitor

import (
	"time"

	"github.com/nerrad567/gray-logic-audio/internal/device"
)

// Request actions.
const (
	ActionProbe  = "probe"
	ActionStatus = "status"
)

// Response error codes.
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeUnknownAction  = "unknown_action"
	ErrCodeNotConfigured  = "not_configured"
	ErrCodeNotProbed      = "not_probed"
)

// HealthStatus is the monitor's overall state.
type HealthStatus string

// Health status values.
const (
	HealthStarting HealthStatus = "starting"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// RequestMessage asks the monitor about one device.
// Topic: graylogic/request/audio/{device_id}
type RequestMessage struct {
	// RequestID correlates the response. Required.
	RequestID string `json:"request_id"`

	// Timestamp is when the request was issued (UTC).
	Timestamp time.Time `json:"timestamp,omitzero"`

	// Action is "probe" (query the server now) or "status" (last known).
	// Default: "probe".
	Action string `json:"action,omitempty"`

	// DeviceID overrides the id taken from the topic.
	DeviceID string `json:"device_id,omitempty"`
}

// ResponseMessage answers a RequestMessage.
// Topic: graylogic/response/audio/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Status    *device.Status `json:"status,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed request.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthMessage is published after every probe round and on start/stop.
// Topic: graylogic/health/audio (retained)
type HealthMessage struct {
	Status        HealthStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	Version       string       `json:"version,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Devices       int          `json:"devices"`
	Present       int          `json:"present"`
	Absent        int          `json:"absent"`
	Errors        int          `json:"errors"`
	Timestamp     time.Time    `json:"timestamp"`
}

// StateMessage is the retained device state.
// Topic: graylogic/state/audio/{device_id}
type StateMessage struct {
	device.Status
	Source string `json:"source"`
}

func errorResponse(requestID, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Error:     &ResponseError{Code: code, Message: message},
	}
}

package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout for the audio bridge.
//
// The bridge follows the flat Gray Logic scheme graylogic/{category}/{protocol}/{id}
// with protocol "audio".
const (
	// TopicPrefix is the base for all Gray Logic topics.
	TopicPrefix = "graylogic"

	// Protocol is the protocol segment used by the audio bridge.
	Protocol = "audio"
)

// Topics provides builders for audio bridge MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("speakers")
//	// Returns: "graylogic/state/audio/speakers"
type Topics struct{}

// DeviceState returns the retained state topic of a device.
//
// Example: graylogic/state/audio/speakers
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, deviceID)
}

// DeviceRequest returns the topic on which probes of a device are requested.
//
// Example: graylogic/request/audio/speakers
func (Topics) DeviceRequest(deviceID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, Protocol, deviceID)
}

// Response returns the topic for the answer to one request.
//
// Example: graylogic/response/audio/6f1c2a9e-...
func (Topics) Response(requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, Protocol, requestID)
}

// Health returns the bridge health topic. It also carries the LWT.
//
// Example: graylogic/health/audio
func (Topics) Health() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// AllDeviceStates returns a pattern matching every audio device state.
//
// Pattern: graylogic/state/audio/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, Protocol)
}

// AllDeviceRequests returns a pattern matching every audio device request.
//
// Pattern: graylogic/request/audio/+
func (Topics) AllDeviceRequests() string {
	return fmt.Sprintf("%s/request/%s/+", TopicPrefix, Protocol)
}

// AllResponses returns a pattern matching every audio response.
//
// Pattern: graylogic/response/audio/+
func (Topics) AllResponses() string {
	return fmt.Sprintf("%s/response/%s/+", TopicPrefix, Protocol)
}

// AllTopics returns a pattern matching all Gray Logic topics.
//
// Pattern: graylogic/#
func (Topics) AllTopics() string {
	return "graylogic/#"
}

// DeviceFromTopic extracts the device id from an audio state or request topic.
// It returns "" when topic does not belong to the audio bridge.
func DeviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[2] != Protocol {
		return ""
	}
	if parts[1] != "state" && parts[1] != "request" {
		return ""
	}
	return parts[3]
}

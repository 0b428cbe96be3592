package vents2mqtt

import (
	"encoding/json/jsontext"
)

// Platform is the interface implemented by every Home Assistant MQTT entity platform (sensor, switch, select, ...).
type Platform interface {
	// MarshalDiscoveryTo writes the platform specific fields of a discovery payload to the specified jsontext.Encoder.
	// The encoder is positioned inside the component's object.
	MarshalDiscoveryTo(e *jsontext.Encoder) error

	// PlatformName returns the value for the `platform` field of the discovery payload. It is also the second level of
	// the discovery topic.
	PlatformName() string

	// StateTopic returns the topic Home Assistant reads the entity state from.
	StateTopic() string

	// CommandTopic returns the topic Home Assistant publishes commands to, or the empty string for read-only platforms.
	CommandTopic() string
}

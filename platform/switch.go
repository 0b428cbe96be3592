package platform

import (
	"encoding/json/jsontext"
	"errors"

	"github.com/nlowe/vents2mqtt/discovery"
	"github.com/nlowe/vents2mqtt/hass"
)

// Switch is a writable on/off entity.
//
// See https://www.home-assistant.io/integrations/switch.mqtt/
type Switch struct {
	State   string `vents2mqtt:"required"`
	Command string `vents2mqtt:"required"`

	PayloadOn  hass.PowerState
	PayloadOff hass.PowerState

	// Optimistic makes Home Assistant assume the command succeeded without waiting for the state topic.
	Optimistic bool
}

func (s *Switch) PlatformName() string {
	return "switch"
}

func (s *Switch) StateTopic() string {
	return s.State
}

func (s *Switch) CommandTopic() string {
	return s.Command
}

func (s *Switch) MarshalDiscoveryTo(e *jsontext.Encoder) error {
	return errors.Join(
		discovery.MarshalRequiredTopic("state", e, discovery.FieldStateTopic, s.State),
		discovery.MarshalRequiredTopic("command", e, discovery.FieldCommandTopic, s.Command),
		discovery.MarshalStdIfNot(hass.PowerStateOn, e, discovery.FieldPayloadOn, s.PayloadOn),
		discovery.MarshalStdIfNot(hass.PowerStateOff, e, discovery.FieldPayloadOff, s.PayloadOff),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldOptimistic, s.Optimistic),
	)
}

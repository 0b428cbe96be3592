package platform

import (
	"encoding/json/jsontext"
	"errors"
	"time"

	"github.com/nlowe/vents2mqtt/discovery"
	"github.com/nlowe/vents2mqtt/hass"
)

// BinarySensor reports hass.PowerStateOn or hass.PowerStateOff.
//
// See https://www.home-assistant.io/integrations/binary_sensor.mqtt/ for complete documentation.
type BinarySensor struct {
	// The topic the current state is published to.
	State string `vents2mqtt:"required"`

	// Payloads that represent the on and off states. Home Assistant defaults to ON and OFF.
	PayloadOn  hass.PowerState
	PayloadOff hass.PowerState

	ExpireMeasurementsAfter time.Duration
	ForceUpdate             bool

	// For sensors that only send on state updates (like PIRs), this variable sets a delay in seconds after which the
	// sensor’s state will be updated back to off by Home Assistant.
	OffDelay time.Duration
}

func (s *BinarySensor) PlatformName() string {
	return "binary_sensor"
}

func (s *BinarySensor) StateTopic() string {
	return s.State
}

func (s *BinarySensor) CommandTopic() string {
	return ""
}

func (s *BinarySensor) MarshalDiscoveryTo(e *jsontext.Encoder) error {
	return errors.Join(
		discovery.MarshalRequiredTopic("state", e, discovery.FieldStateTopic, s.State),
		discovery.MarshalStdIfNot(hass.PowerStateOn, e, discovery.FieldPayloadOn, s.PayloadOn),
		discovery.MarshalStdIfNot(hass.PowerStateOff, e, discovery.FieldPayloadOff, s.PayloadOff),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldExpireMeasurementsAfter, s.ExpireMeasurementsAfter),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldForceUpdate, s.ForceUpdate),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldOffDelay, s.OffDelay),
	)
}

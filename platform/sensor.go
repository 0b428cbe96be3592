package platform

import (
	"encoding/json/jsontext"
	"errors"
	"time"

	"github.com/nlowe/vents2mqtt/discovery"
	"github.com/nlowe/vents2mqtt/hass"
)

// Sensor implements the sensor.mqtt integration for Home Assistant.
//
// See the Home Assistant documentation for more details: https://www.home-assistant.io/integrations/sensor.mqtt/.
type Sensor struct {
	// If set, it defines the number of seconds after the sensor’s state expires if it’s not updated. After expiry, the
	// sensor’s state becomes unavailable. By default, the sensor’s state never expires.
	ExpireMeasurementsAfter time.Duration

	// Instruct Home Assistant to calculate update events even if the value hasn’t changed.
	ForceUpdate bool

	// List of allowed sensor state values. The device class must be set to hass.DeviceClassEnum. Options cannot be
	// used together with StateClass or UnitOfMeasurement.
	//
	// Note: The Home Assistant documentation states "an empty list is not allowed". Empty / nil slices will be omitted
	// when marshaling discovery information.
	EnumOptions []string

	// The number of decimals which should be used in the sensor’s state after rounding.
	SuggestedDisplayPrecision uint

	// The hass.StateClass of the sensor.
	StateClass hass.StateClass

	// The topic the current value of the sensor is published to.
	State string `vents2mqtt:"required"`

	// Defines the units used by this sensor
	UnitOfMeasurement string
}

func (s *Sensor) PlatformName() string {
	return "sensor"
}

func (s *Sensor) StateTopic() string {
	return s.State
}

func (s *Sensor) CommandTopic() string {
	return ""
}

func (s *Sensor) MarshalDiscoveryTo(e *jsontext.Encoder) error {
	return errors.Join(
		discovery.MaybeMarshalStdComparable(e, discovery.FieldExpireMeasurementsAfter, s.ExpireMeasurementsAfter),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldForceUpdate, s.ForceUpdate),
		discovery.MaybeMarshalStdSlice(e, discovery.FieldOptions, s.EnumOptions),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldSuggestedDisplayPrecision, s.SuggestedDisplayPrecision),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldStateClass, s.StateClass),
		discovery.MarshalRequiredTopic("state", e, discovery.FieldStateTopic, s.State),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldUnitOfMeasurement, s.UnitOfMeasurement),
	)
}

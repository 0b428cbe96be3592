package platform

import (
	"encoding/json/jsontext"
	"errors"

	"github.com/nlowe/vents2mqtt/discovery"
	"github.com/nlowe/vents2mqtt/hass"
)

// Number is a writable numeric entity.
//
// See https://www.home-assistant.io/integrations/number.mqtt/
type Number struct {
	State   string `vents2mqtt:"required"`
	Command string `vents2mqtt:"required"`

	// Min, Max and Step are in engineering units. Nil leaves Home Assistant's default (1, 100 and 1).
	Min  *float64
	Max  *float64
	Step *float64

	Mode              hass.NumberMode
	UnitOfMeasurement string
	Optimistic        bool
}

func (n *Number) PlatformName() string {
	return "number"
}

func (n *Number) StateTopic() string {
	return n.State
}

func (n *Number) CommandTopic() string {
	return n.Command
}

func (n *Number) MarshalDiscoveryTo(e *jsontext.Encoder) error {
	return errors.Join(
		discovery.MarshalRequiredTopic("state", e, discovery.FieldStateTopic, n.State),
		discovery.MarshalRequiredTopic("command", e, discovery.FieldCommandTopic, n.Command),
		discovery.MaybeMarshalStd(e, discovery.FieldMin, n.Min),
		discovery.MaybeMarshalStd(e, discovery.FieldMax, n.Max),
		discovery.MaybeMarshalStd(e, discovery.FieldStep, n.Step),
		discovery.MarshalStdIfNot(hass.NumberModeAuto, e, discovery.FieldMode, n.Mode),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldUnitOfMeasurement, n.UnitOfMeasurement),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldOptimistic, n.Optimistic),
	)
}

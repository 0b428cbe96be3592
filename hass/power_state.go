package hass

import (
	"log/slog"
	"strings"

	"github.com/nlowe/vents2mqtt/mqtt"
)

// PowerState represents generic on/off state for devices. This may or may not refer to physical power depending on the
// underlying entity (For example, an alarm indicator reports PowerStateOn while an alarm is active).
type PowerState string

var (
	PowerStateMarshaler mqtt.ValueMarshaler[PowerState] = func(v PowerState) ([]byte, error) {
		return mqtt.StringMarshaler(string(v))
	}

	PowerStateUnmarshaler mqtt.ValueUnmarshaler[PowerState] = func(bytes []byte) (PowerState, error) {
		v, err := mqtt.TrimmedStringUnmarshaler(bytes)
		return PowerState(v), err
	}
)

const (
	PowerStateOn      PowerState = "ON"
	PowerStateOff     PowerState = "OFF"
	PowerStateUnknown PowerState = "None"
)

// PowerStateOf maps a boolean to PowerStateOn or PowerStateOff.
func PowerStateOf(on bool) PowerState {
	if on {
		return PowerStateOn
	}

	return PowerStateOff
}

// ParsePowerState interprets the payloads Home Assistant and hand-written automations send to switches. Matching is
// case-insensitive and accepts ON/OFF, 1/0 and true/false. The second return value is false for anything else.
func ParsePowerState(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "1", "true":
		return true, true
	case "off", "0", "false":
		return false, true
	default:
		return false, false
	}
}

// CustomPowerState provides a way to configure custom values for on and off states for a given entity. It implements
// slog.LogValuer.
type CustomPowerState struct {
	On  PowerState
	Off PowerState
}

func (c CustomPowerState) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("on_value", string(c.On)),
		slog.String("off_value", string(c.Off)),
	)
}

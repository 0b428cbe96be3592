package hass

import (
	"log/slog"

	"github.com/nlowe/vents2mqtt/mqtt"
)

// Availability exposes whether Home Assistant should consider a device or entity as "available" (aka it is online).
type Availability string

var (
	AvailabilityMarshaler mqtt.ValueMarshaler[Availability] = func(v Availability) ([]byte, error) {
		return mqtt.StringMarshaler(string(v))
	}
	AvailabilityUnmarshaler mqtt.ValueUnmarshaler[Availability] = func(bytes []byte) (Availability, error) {
		v, err := mqtt.TrimmedStringUnmarshaler(bytes)
		return Availability(v), err
	}
)

const (
	// Available is the Availability value for online/available devices.
	Available Availability = "online"
	// Unavailable is the Availability value for offline/unavailable devices.
	Unavailable Availability = "offline"
)

// AvailabilityOf maps whether a value is currently known to the matching Availability.
func AvailabilityOf(known bool) Availability {
	if known {
		return Available
	}

	return Unavailable
}

// CustomAvailability instructs Home Assistant to use different values to determine availability state. It implements
// slog.LogValuer.
type CustomAvailability struct {
	Available   Availability
	Unavailable Availability
}

func (c CustomAvailability) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("available_value", string(c.Available)),
		slog.String("unavailable_value", string(c.Unavailable)),
	)
}

// AvailabilityMode controls how Home Assistant combines several availability topics for one entity.
type AvailabilityMode string

const (
	// AvailabilityModeAll marks the entity available only if every availability topic reports Available.
	AvailabilityModeAll AvailabilityMode = "all"
	// AvailabilityModeAny marks the entity available if at least one topic reports Available.
	AvailabilityModeAny AvailabilityMode = "any"
	// AvailabilityModeLatest uses the last message received on any availability topic. This is Home Assistant's
	// default.
	AvailabilityModeLatest AvailabilityMode = "latest"
)

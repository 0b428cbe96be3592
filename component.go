package vents2mqtt

import (
	"bytes"
	"cmp"
	"encoding/json/jsontext"
	"errors"
	"fmt"

	"github.com/nlowe/vents2mqtt/discovery"
	"github.com/nlowe/vents2mqtt/hass"
	"github.com/nlowe/vents2mqtt/mqtt"
)

// ErrNoPlatform is the error returned when marshaling a Component without a Platform.
var ErrNoPlatform = errors.New("component has no platform")

// Component is the discovery record of one Home Assistant entity. It implements json.MarshalerTo by encoding a
// single-component discovery payload, published retained to Component.Topic.
type Component struct {
	Platform Platform `vents2mqtt:"required"`

	// The Device this entity belongs to.
	Device *Device `vents2mqtt:"required"`

	// If nil, DefaultOrigin is used.
	Origin *Origin

	// The name of the entity. Set to the empty string if only the device name is relevant.
	Name string

	// The ObjectID is the last variable level of the discovery topic. It must be unique within the device.
	ObjectID string `vents2mqtt:"required"`

	// The category of the entity. See https://developers.home-assistant.io/docs/core/entity/#generic-properties
	EntityCategory hass.EntityCategory

	// The Icon to use in the frontend for this entity
	Icon string

	DeviceClass hass.DeviceClass

	// Template Home Assistant applies to state messages before using them.
	ValueTemplate string

	// Topics that report whether this entity is available. They are combined according to AvailabilityMode.
	AvailabilityTopics []string
	AvailabilityMode   hass.AvailabilityMode
	// Custom values to use for available and unavailable states
	CustomAvailabilityValues hass.CustomAvailability

	// Use this value instead of name for automatic generation of the entity ID. When used with a UniqueID, the
	// DefaultEntityID is only used when the entity is added for the first time.
	DefaultEntityID string

	// An ID that uniquely identifies this entity. If two entities have the same unique ID, Home Assistant will raise an
	// exception.
	UniqueID string `vents2mqtt:"required"`

	// MQTT Options Home Assistant uses when publishing commands for this entity.
	WriteOptions mqtt.WriteOptions
}

// Topic returns the discovery topic for this component under the provided discovery prefix.
func (c *Component) Topic(prefix string) string {
	return discovery.Topic(prefix, c.Platform.PlatformName(), c.Device.ID(), c.ObjectID)
}

func (c *Component) MarshalJSONTo(e *jsontext.Encoder) error {
	if c.Platform == nil {
		return ErrNoPlatform
	}

	if c.Device == nil {
		return fmt.Errorf("device: %w", discovery.ErrValueRequired)
	}

	if err := c.Device.Valid(); err != nil {
		return err
	}

	nameToken := jsontext.Null
	if c.Name != "" {
		nameToken = jsontext.String(c.Name)
	}

	return errors.Join(
		e.WriteToken(jsontext.BeginObject),

		discovery.MarshalStdComparable("platform", e, discovery.FieldPlatform, c.Platform.PlatformName()),

		e.WriteToken(jsontext.String(discovery.FieldName)),
		e.WriteToken(nameToken),

		discovery.MarshalStd("device", e, discovery.FieldDevice, c.Device),
		discovery.MarshalStd("origin", e, discovery.FieldOrigin, cmp.Or(c.Origin, &DefaultOrigin)),

		discovery.MaybeMarshalStdComparable(e, discovery.FieldEntityCategory, c.EntityCategory),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldIcon, c.Icon),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldDeviceClass, c.DeviceClass),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldValueTemplate, c.ValueTemplate),

		discovery.MaybeMarshalAvailabilityList(e, discovery.FieldAvailability, c.AvailabilityTopics),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldAvailabilityMode, c.AvailabilityMode),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldPayloadAvailable, c.CustomAvailabilityValues.Available),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldPayloadNotAvailable, c.CustomAvailabilityValues.Unavailable),

		discovery.MaybeMarshalStdComparable(e, discovery.FieldDefaultEntityID, c.DefaultEntityID),
		discovery.MarshalStdComparable("unique_id", e, discovery.FieldUniqueID, c.UniqueID),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldQualityOfService, c.WriteOptions.QoS),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldRetain, c.WriteOptions.Retain),

		c.Platform.MarshalDiscoveryTo(e),

		e.WriteToken(jsontext.EndObject),
	)
}

// Marshal encodes the discovery payload. Numbers are canonicalized so the payload is byte-for-byte stable across
// restarts.
func (c *Component) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	e := jsontext.NewEncoder(
		&buf,
		jsontext.CanonicalizeRawInts(true),
		jsontext.CanonicalizeRawFloats(true),
	)

	if err := c.MarshalJSONTo(e); err != nil {
		return nil, fmt.Errorf("marshal discovery payload for %s: %w", c.UniqueID, err)
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

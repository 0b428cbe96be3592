package vents2mqtt

import (
	"encoding/json/jsontext"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/nlowe/vents2mqtt/discovery"
)

// ErrInvalidDevice is the error returned by Device.Valid if it is not properly configured.
var ErrInvalidDevice = errors.New("device must have at least one identifying value in 'identifiers' and/or 'connections'")

// DeviceConnection maps this Device to the outside world. For example:
//
//	DeviceConnection{
//	    Kind: "ip",
//	    Value: "192.168.1.50",
//	}
//
// It implements fmt.Stringer and slog.LogValuer
type DeviceConnection struct {
	Kind  string
	Value string
}

func (d DeviceConnection) String() string {
	return fmt.Sprintf("[%q,%q]", d.Kind, d.Value)
}

func (d DeviceConnection) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", d.Kind),
		slog.String("value", d.Value),
	)
}

func (d DeviceConnection) MarshalJSONTo(e *jsontext.Encoder) error {
	return errors.Join(
		e.WriteToken(jsontext.BeginArray),
		e.WriteToken(jsontext.String(d.Kind)),
		e.WriteToken(jsontext.String(d.Value)),
		e.WriteToken(jsontext.EndArray),
	)
}

// Device is the Home Assistant device every register entity belongs to. It is embedded in the discovery payload of
// each Component so Home Assistant groups the entities together.
//
// See https://www.home-assistant.io/integrations/mqtt/#discovery-payload
type Device struct {
	// The ID to use for discovery topics. If empty, an ID is calculated from other fields.
	DiscoveryID string `json:"-"`

	// The name of the device.
	Name string `json:"name,omitempty"`

	// The serial number of the device
	Serial string `json:"sn,omitempty"`

	// The manufacturer of the device.
	Manufacturer string `json:"mf,omitempty"`

	// The model of the device.
	Model string `json:"mdl,omitempty"`

	// The model identifier of the device.
	ModelID string `json:"mdl_id,omitempty"`

	// A link to the webpage that can manage the configuration of this device. Can be either a http://, https:// or an
	// internal homeassistant:// URL.
	ConfigurationURL *url.URL `json:"cu,omitempty"`

	// A list of connections of the device to the outside world.
	Connections []DeviceConnection `json:"cns,omitempty"`

	// The hardware version of the device.
	HardwareVersion string `json:"hw,omitempty"`

	// The firmware version of the device
	FirmwareVersion string `json:"sw,omitempty"`

	// A list of IDs that uniquely identify the device. For example a serial number.
	Identifiers []string `json:"ids,omitempty"`

	// Suggest an area if the device isn't in one yet
	SuggestedArea string `json:"sa,omitempty"`

	// Identifier of a device that routes messages between this device and Home Assistant.
	ViaDevice string `json:"via_device,omitempty"`
}

// ID calculates an identifier for this device. If the Device.DiscoveryID is specified, that value will be used.
// Otherwise, if any of the following fields are set, they are used (separated by discovery.IDSep): All
// Device.Identifiers, Device.Name, Device.Serial, Device.Manufacturer, Device.Model, and Device.ModelID.
func (d *Device) ID() string {
	if d.DiscoveryID != "" {
		return d.DiscoveryID
	}

	parts := make([]string, 0, len(d.Identifiers)+5)
	for _, v := range slices.Concat(d.Identifiers, []string{d.Name, d.Serial, d.Manufacturer, d.Model, d.ModelID}) {
		if v != "" {
			parts = append(parts, discovery.IDSanitizer.Replace(v))
		}
	}

	return strings.Join(parts, discovery.IDSep)
}

// Valid checks if this Device is configured appropriately. Home Assistant requires at least one value be configured for
// Device.Identifiers, or at least one value be configured for Device.Connections.
func (d *Device) Valid() error {
	if len(d.Identifiers) == 0 && len(d.Connections) == 0 {
		return ErrInvalidDevice
	}

	return nil
}

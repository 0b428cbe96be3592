package mapper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nlowe/vents2mqtt"
	"github.com/nlowe/vents2mqtt/discovery"
	"github.com/nlowe/vents2mqtt/hass"
	"github.com/nlowe/vents2mqtt/mqtt"
	"github.com/nlowe/vents2mqtt/platform"
	"github.com/nlowe/vents2mqtt/register"
)

const (
	// TopicRoot is the first level of every state, command and availability topic.
	TopicRoot = "vents"

	CommandSuffix      = "set"
	AvailabilitySuffix = "availability"

	// ValueTemplate passes state payloads through unchanged; Encode already renders them the way Home Assistant
	// expects.
	ValueTemplate = "{{ value }}"

	idPrefix = "vents"
)

// ErrUnknownTopic is the error returned by Route for topics that are not the command topic of a writable register.
var ErrUnknownTopic = errors.New("unknown command topic")

// Command is a decoded inbound command.
type Command struct {
	Descriptor register.Descriptor
	Value      register.Value
	Payload    string
}

// Option configures a Mapper.
type Option func(m *Mapper)

// WithDiscoveryPrefix overrides discovery.DefaultPrefix.
func WithDiscoveryPrefix(prefix string) Option {
	return func(m *Mapper) {
		m.discoveryPrefix = mqtt.TrimTopic(prefix)
	}
}

// WithDevice overrides the Home Assistant device every entity is attached to. DiscoveryID and Identifiers are always
// replaced by the mapper's node id so topics and unique ids stay stable.
func WithDevice(d vents2mqtt.Device) Option {
	return func(m *Mapper) {
		m.device = d
	}
}

// WithCommandQoS sets the QoS Home Assistant uses for commands and state subscriptions.
func WithCommandQoS(qos mqtt.QualityOfService) Option {
	return func(m *Mapper) {
		m.qos = qos
	}
}

// Mapper knows the topic layout for one device:
//
//	vents/<device>/availability            bridge availability
//	vents/<device>/<register>              state
//	vents/<device>/<register>/set          command (writable registers only)
//	vents/<device>/<register>/availability register availability
//	<prefix>/<platform>/vents_<device>/<register>/config  discovery
type Mapper struct {
	catalog *register.Catalog

	deviceID        string
	nodeID          string
	base            string
	discoveryPrefix string
	device          vents2mqtt.Device
	qos             mqtt.QualityOfService
}

// New returns a Mapper for the device with the provided id. Characters that are not allowed in a topic level are
// replaced by discovery.IDSep.
func New(catalog *register.Catalog, deviceID string, opts ...Option) *Mapper {
	id := discovery.IDSanitizer.Replace(deviceID)
	m := &Mapper{
		catalog:         catalog,
		deviceID:        id,
		nodeID:          idPrefix + "_" + id,
		base:            mqtt.JoinTopic(TopicRoot, id),
		discoveryPrefix: discovery.DefaultPrefix,
		device: vents2mqtt.Device{
			Name:         "Vents " + deviceID,
			Manufacturer: "Vents",
			Model:        "Air handling unit",
		},
	}

	for _, opt := range opts {
		opt(m)
	}

	m.device.DiscoveryID = m.nodeID
	m.device.Identifiers = []string{m.nodeID}
	return m
}

func (m *Mapper) Catalog() *register.Catalog {
	return m.catalog
}

// Device returns the Home Assistant device entities are attached to.
func (m *Mapper) Device() *vents2mqtt.Device {
	d := m.device
	return &d
}

// DiscoveryPrefix returns the topic prefix Home Assistant watches for discovery payloads.
func (m *Mapper) DiscoveryPrefix() string {
	return m.discoveryPrefix
}

// BridgeAvailabilityTopic is where the bridge reports whether it is connected. It doubles as the MQTT Last Will topic.
func (m *Mapper) BridgeAvailabilityTopic() string {
	return mqtt.JoinTopic(m.base, AvailabilitySuffix)
}

func (m *Mapper) StateTopic(d register.Descriptor) string {
	return mqtt.JoinTopic(m.base, d.Name)
}

// CommandTopic returns the command topic for d, or the empty string if d is read-only.
func (m *Mapper) CommandTopic(d register.Descriptor) string {
	if !d.Writable() {
		return ""
	}

	return mqtt.JoinTopic(m.base, d.Name, CommandSuffix)
}

func (m *Mapper) AvailabilityTopic(d register.Descriptor) string {
	return mqtt.JoinTopic(m.base, d.Name, AvailabilitySuffix)
}

// CommandFilter is the subscription filter matching every command topic of the device.
func (m *Mapper) CommandFilter() string {
	return mqtt.JoinTopic(m.base, mqtt.SingleLevelWildcard, CommandSuffix)
}

// UniqueID is the stable Home Assistant unique id of the entity for d.
func (m *Mapper) UniqueID(d register.Descriptor) string {
	return m.nodeID + "_" + d.Name
}

// DiscoveryTopic returns the topic the discovery record of d is published to.
func (m *Mapper) DiscoveryTopic(d register.Descriptor) string {
	c := m.Discovery(d)
	return c.Topic(m.discoveryPrefix)
}

// Discovery builds the discovery record for d. The result depends only on d and the mapper's configuration, so it is
// identical across calls and restarts.
func (m *Mapper) Discovery(d register.Descriptor) vents2mqtt.Component {
	p := m.platformFor(d)

	deviceClass := d.DeviceClass
	if deviceClass == hass.DeviceClassNone && d.Kind == register.Enumerated && !d.Writable() {
		deviceClass = hass.DeviceClassEnum
	}

	return vents2mqtt.Component{
		Platform:           p,
		Device:             m.Device(),
		Name:               humanize(d.Name),
		ObjectID:           d.Name,
		EntityCategory:     d.EntityCategory,
		Icon:               d.Icon,
		DeviceClass:        deviceClass,
		ValueTemplate:      ValueTemplate,
		AvailabilityTopics: []string{m.BridgeAvailabilityTopic(), m.AvailabilityTopic(d)},
		AvailabilityMode:   hass.AvailabilityModeAll,
		DefaultEntityID:    p.PlatformName() + "." + m.UniqueID(d),
		UniqueID:           m.UniqueID(d),
		WriteOptions:       mqtt.WriteOptions{QoS: m.qos},
	}
}

// platformFor picks the Home Assistant platform for d: read-only registers become (binary) sensors, writable booleans
// switches, writable enums selects and every other writable register a number.
func (m *Mapper) platformFor(d register.Descriptor) vents2mqtt.Platform {
	state, command := m.StateTopic(d), m.CommandTopic(d)

	if !d.Writable() {
		switch d.Kind {
		case register.Boolean:
			return &platform.BinarySensor{State: state}
		case register.Enumerated:
			return &platform.Sensor{State: state, EnumOptions: d.Labels()}
		default:
			return &platform.Sensor{
				State:                     state,
				StateClass:                d.StateClass,
				UnitOfMeasurement:         d.Unit,
				SuggestedDisplayPrecision: uint(d.Decimals()),
			}
		}
	}

	switch d.Kind {
	case register.Boolean:
		return &platform.Switch{State: state, Command: command}
	case register.Enumerated:
		return &platform.Select{State: state, Command: command, Options: d.Labels()}
	default:
		lo, hi := d.Range()
		minimum, maximum := d.Engineering(lo), d.Engineering(hi)
		if d.Min != nil {
			minimum = *d.Min
		}

		if d.Max != nil {
			maximum = *d.Max
		}

		step := 1.0
		if d.Kind == register.Float {
			step = d.Scale
		}

		return &platform.Number{
			State:             state,
			Command:           command,
			Min:               &minimum,
			Max:               &maximum,
			Step:              &step,
			UnitOfMeasurement: d.Unit,
		}
	}
}

// Route resolves an inbound message on a command topic to a Command. Topics outside this device's command namespace
// and commands for unknown registers fail with ErrUnknownTopic; payloads are checked by Decode.
func (m *Mapper) Route(topic string, payload []byte) (Command, error) {
	rest, ok := strings.CutPrefix(mqtt.TrimTopic(topic), m.base+mqtt.TopicSeparator)
	if !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	name, ok := strings.CutSuffix(rest, mqtt.TopicSeparator+CommandSuffix)
	if !ok || strings.Contains(name, mqtt.TopicSeparator) {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	d, ok := m.catalog.ByName(name)
	if !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	v, err := Decode(d, string(payload))
	if err != nil {
		return Command{Descriptor: d, Payload: string(payload)}, err
	}

	return Command{Descriptor: d, Value: v, Payload: string(payload)}, nil
}

// humanize turns a register slug into an entity name ("supply_in_temperature" -> "Supply in temperature").
func humanize(slug string) string {
	name := strings.ReplaceAll(slug, "_", " ")
	if name == "" {
		return name
	}

	return strings.ToUpper(name[:1]) + name[1:]
}

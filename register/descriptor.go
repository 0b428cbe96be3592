package register

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/nlowe/vents2mqtt/hass"
)

// Address is the 16-bit parameter number of a register on the device. The high byte selects the parameter page.
type Address uint16

func (a Address) String() string {
	return fmt.Sprintf("0x%04x", uint16(a))
}

// Page returns the high byte of the address.
func (a Address) Page() byte {
	return byte(a >> 8)
}

// Low returns the low byte of the address.
func (a Address) Low() byte {
	return byte(a)
}

// Value is a raw register value in device units. Its meaning (boolean, enum code, integer, scaled float) comes from the
// Descriptor of the register it was read from.
type Value int64

// Direction tells whether a register may be written.
type Direction uint8

const (
	ReadOnly Direction = iota
	ReadWrite
)

func (d Direction) String() string {
	switch d {
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Kind is the semantic type of a register value.
type Kind uint8

const (
	Boolean Kind = iota
	Integer
	Enumerated
	Float
)

func (k Kind) String() string {
	switch k {
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	case Enumerated:
		return "enumerated"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ByteOrder is the order in which multi-byte values are transmitted by the device.
type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

// EnumOption is one label/code pair of an enumerated register.
type EnumOption struct {
	Label string
	Code  Value
}

// Descriptor is the static description of one register. It implements slog.LogValuer.
type Descriptor struct {
	Address   Address
	Name      string
	Direction Direction
	Kind      Kind

	// Unit is the unit of measurement shown by Home Assistant, if any.
	Unit string

	// Enum lists the valid values of an Enumerated register, in display order. It must be empty for every other Kind.
	Enum []EnumOption

	// Scale converts the raw value of a Float register to engineering units (raw 215 * 0.1 = 21.5).
	Scale float64

	// Min and Max bound writable values, in engineering units. Nil means unbounded (within Width).
	Min *float64
	Max *float64

	// Width is the number of bytes the device uses for the value. Zero means 1.
	Width     int
	ByteOrder ByteOrder
	Signed    bool

	DeviceClass    hass.DeviceClass
	StateClass     hass.StateClass
	EntityCategory hass.EntityCategory
	Icon           string
}

func (d Descriptor) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", d.Name),
		slog.String("address", d.Address.String()),
		slog.String("kind", d.Kind.String()),
	)
}

// Writable reports whether Home Assistant may issue commands for this register.
func (d Descriptor) Writable() bool {
	return d.Direction == ReadWrite
}

// Bytes returns the width of the value on the wire.
func (d Descriptor) Bytes() int {
	if d.Width <= 0 {
		return 1
	}

	return d.Width
}

// Range returns the smallest and largest raw value that fits in the register's width and signedness.
func (d Descriptor) Range() (Value, Value) {
	bits := uint(d.Bytes() * 8)
	if d.Signed {
		return -(Value(1) << (bits - 1)), Value(1)<<(bits-1) - 1
	}

	return 0, Value(1)<<bits - 1
}

// Fits reports whether v can be stored in the register.
func (d Descriptor) Fits(v Value) bool {
	lo, hi := d.Range()
	return v >= lo && v <= hi
}

// Label returns the enum label for a code.
func (d Descriptor) Label(code Value) (string, bool) {
	for _, o := range d.Enum {
		if o.Code == code {
			return o.Label, true
		}
	}

	return "", false
}

// Code returns the enum code for a label. Labels are matched exactly.
func (d Descriptor) Code(label string) (Value, bool) {
	for _, o := range d.Enum {
		if o.Label == label {
			return o.Code, true
		}
	}

	return 0, false
}

// Labels returns the enum labels in display order.
func (d Descriptor) Labels() []string {
	labels := make([]string, len(d.Enum))
	for i, o := range d.Enum {
		labels[i] = o.Label
	}

	return labels
}

// Decimals is the number of fractional digits needed to represent one step of Scale. It is zero for every Kind except
// Float.
func (d Descriptor) Decimals() int {
	if d.Kind != Float || d.Scale <= 0 || d.Scale >= 1 {
		return 0
	}

	return int(math.Ceil(-math.Log10(d.Scale) - 1e-9))
}

// Engineering converts a raw value to engineering units.
func (d Descriptor) Engineering(v Value) float64 {
	if d.Kind == Float {
		return float64(v) * d.Scale
	}

	return float64(v)
}

// Raw converts a value in engineering units to the nearest raw value.
func (d Descriptor) Raw(f float64) Value {
	if d.Kind == Float {
		return Value(math.Round(f / d.Scale))
	}

	return Value(math.Round(f))
}

// InBounds reports whether v satisfies Min and Max.
func (d Descriptor) InBounds(v Value) bool {
	f := d.Engineering(v)
	if d.Min != nil && f < *d.Min-1e-9 {
		return false
	}

	if d.Max != nil && f > *d.Max+1e-9 {
		return false
	}

	return true
}

// Bound is a helper for populating Descriptor.Min and Descriptor.Max.
func Bound(f float64) *float64 {
	return &f
}

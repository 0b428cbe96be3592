package mapper

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nlowe/vents2mqtt/hass"
	"github.com/nlowe/vents2mqtt/register"
)

var (
	// ErrInvalidPayload is the error returned when a command payload cannot be converted to a value for its register.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrNotWritable is the error returned when a command targets a read-only register.
	ErrNotWritable = errors.New("register is not writable")
	// ErrUnknownCode is the error returned by Encode when the device reports a code that is not part of an enumerated
	// register's options.
	ErrUnknownCode = errors.New("unknown enum code")
)

// Encode renders v as the state payload for d. Booleans are ON or OFF, enumerated values their label, integers a
// decimal number and floats a decimal number with as many fractional digits as one step of the register's scale.
func Encode(d register.Descriptor, v register.Value) (string, error) {
	switch d.Kind {
	case register.Boolean:
		return string(hass.PowerStateOf(v != 0)), nil
	case register.Enumerated:
		label, ok := d.Label(v)
		if !ok {
			return "", fmt.Errorf("%s: %w %d", d.Name, ErrUnknownCode, v)
		}

		return label, nil
	case register.Float:
		return strconv.FormatFloat(d.Engineering(v), 'f', d.Decimals(), 64), nil
	default:
		return strconv.FormatInt(int64(v), 10), nil
	}
}

// Decode converts a command payload for d to a raw value. Read-only registers are rejected with ErrNotWritable without
// looking at the payload; anything Parse rejects is reported as ErrInvalidPayload.
func Decode(d register.Descriptor, payload string) (register.Value, error) {
	if !d.Writable() {
		return 0, fmt.Errorf("%s: %w", d.Name, ErrNotWritable)
	}

	return Parse(d, payload)
}

// Parse is the inverse of Encode. Surrounding whitespace is ignored. Enum labels are matched exactly; booleans also
// accept 1/0 and true/false in any case. Numbers must satisfy the register's Min and Max and fit its width.
func Parse(d register.Descriptor, payload string) (register.Value, error) {
	payload = strings.TrimSpace(payload)

	var v register.Value
	switch d.Kind {
	case register.Boolean:
		on, ok := hass.ParsePowerState(payload)
		if !ok {
			return 0, invalid(d, payload, "not a boolean")
		}

		if on {
			v = 1
		}
	case register.Enumerated:
		code, ok := d.Code(payload)
		if !ok {
			return 0, invalid(d, payload, fmt.Sprintf("not one of %s", strings.Join(d.Labels(), ", ")))
		}

		v = code
	default:
		f, err := strconv.ParseFloat(payload, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, invalid(d, payload, "not a number")
		}

		// Home Assistant number entities send "21.0" even for integer registers.
		if d.Kind == register.Integer && f != math.Trunc(f) {
			return 0, invalid(d, payload, "not an integer")
		}

		if lo, hi := d.Range(); f < d.Engineering(lo)-1 || f > d.Engineering(hi)+1 {
			return 0, invalid(d, payload, fmt.Sprintf("does not fit in %d byte(s)", d.Bytes()))
		}

		v = d.Raw(f)
	}

	if !d.InBounds(v) {
		return 0, invalid(d, payload, "out of range")
	}

	if !d.Fits(v) {
		return 0, invalid(d, payload, fmt.Sprintf("does not fit in %d byte(s)", d.Bytes()))
	}

	return v, nil
}

func invalid(d register.Descriptor, payload, reason string) error {
	return fmt.Errorf("%s: %w %q: %s", d.Name, ErrInvalidPayload, payload, reason)
}

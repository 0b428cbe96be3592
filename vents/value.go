package vents

import (
	"fmt"

	"github.com/nlowe/vents2mqtt/register"
)

// encodeValue converts v to the bytes the device expects for d.
func encodeValue(d register.Descriptor, v register.Value) ([]byte, error) {
	if !d.Fits(v) {
		lo, hi := d.Range()
		return nil, fmt.Errorf("value %d for %s is outside [%d, %d]", v, d.Name, lo, hi)
	}

	n := d.Bytes()
	u := uint64(v)
	b := make([]byte, n)
	for i := range n {
		shift := uint(8 * i)
		if d.ByteOrder == register.LittleEndian {
			b[i] = byte(u >> shift)
		} else {
			b[n-1-i] = byte(u >> shift)
		}
	}

	return b, nil
}

// decodeValue converts the bytes sent by the device to a Value. The length of raw wins over d.Width, since some
// firmwares answer wide parameters in compact form when the value fits in one byte.
func decodeValue(d register.Descriptor, raw []byte) (register.Value, error) {
	n := len(raw)
	if n == 0 || n > 8 {
		return 0, fmt.Errorf("%s: unexpected value length %d", d.Name, n)
	}

	var u uint64
	for i := range n {
		var b byte
		if d.ByteOrder == register.LittleEndian {
			b = raw[n-1-i]
		} else {
			b = raw[i]
		}

		u = u<<8 | uint64(b)
	}

	if d.Signed && n < 8 {
		bits := uint(8 * n)
		if u&(1<<(bits-1)) != 0 {
			return register.Value(int64(u) - int64(1)<<bits), nil
		}
	}

	return register.Value(u), nil
}

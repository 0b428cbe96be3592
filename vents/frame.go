package vents

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nlowe/vents2mqtt/register"
)

const (
	protocolType = 0x03
	idSize       = 0x10

	funcRead              byte = 0x01
	funcWriteWithResponse byte = 0x03
	funcResponse          byte = 0x06

	markerNotSupported byte = 0xfd
	markerSize         byte = 0xfe
	markerPage         byte = 0xff
)

var prefix = []byte{0xfd, 0xfd}

// ErrMalformedFrame is returned when a datagram is not a well-formed frame.
var ErrMalformedFrame = errors.New("malformed frame")

// ErrChecksum is returned when the trailing checksum of a frame does not match its contents.
var ErrChecksum = errors.New("checksum mismatch")

type frame struct {
	id       [idSize]byte
	password []byte
	function byte
	body     []byte
}

// deviceID pads or truncates id to the fixed width used on the wire. Short IDs are padded with ASCII '0'.
func deviceID(id string) [idSize]byte {
	var result [idSize]byte
	for i := range result {
		result[i] = '0'
	}

	copy(result[:], id)
	return result
}

func checksum(b []byte) uint16 {
	var sum uint16
	for _, v := range b {
		sum += uint16(v)
	}

	return sum
}

func (f frame) MarshalBinary() ([]byte, error) {
	if len(f.password) > 0xff {
		return nil, fmt.Errorf("%w: password is longer than 255 bytes", ErrMalformedFrame)
	}

	buf := make([]byte, 0, len(prefix)+2+idSize+1+len(f.password)+1+len(f.body)+2)
	buf = append(buf, prefix...)
	buf = append(buf, protocolType, idSize)
	buf = append(buf, f.id[:]...)
	buf = append(buf, byte(len(f.password)))
	buf = append(buf, f.password...)
	buf = append(buf, f.function)
	buf = append(buf, f.body...)
	buf = binary.LittleEndian.AppendUint16(buf, checksum(buf[len(prefix):]))

	return buf, nil
}

// UnmarshalBinary parses a frame, skipping any bytes in front of the prefix.
func (f *frame) UnmarshalBinary(b []byte) error {
	i := bytes.Index(b, prefix)
	if i < 0 {
		return fmt.Errorf("%w: no prefix", ErrMalformedFrame)
	}

	b = b[i:]

	// prefix, protocol, id size, id, password length, function, checksum
	const minimum = 2 + 1 + 1 + idSize + 1 + 1 + 2
	if len(b) < minimum {
		return fmt.Errorf("%w: %d bytes is too short", ErrMalformedFrame, len(b))
	}

	payload, sum := b[:len(b)-2], binary.LittleEndian.Uint16(b[len(b)-2:])
	if calc := checksum(payload[len(prefix):]); calc != sum {
		return fmt.Errorf("%w: calculated 0x%04x, frame has 0x%04x", ErrChecksum, calc, sum)
	}

	if payload[2] != protocolType || payload[3] != idSize {
		return fmt.Errorf("%w: unsupported protocol 0x%02x/0x%02x", ErrMalformedFrame, payload[2], payload[3])
	}

	pos := 4
	copy(f.id[:], payload[pos:pos+idSize])
	pos += idSize

	pwdLen := int(payload[pos])
	pos++
	if pos+pwdLen+1 > len(payload) {
		return fmt.Errorf("%w: truncated password", ErrMalformedFrame)
	}

	f.password = bytes.Clone(payload[pos : pos+pwdLen])
	pos += pwdLen

	f.function = payload[pos]
	f.body = bytes.Clone(payload[pos+1:])

	return nil
}

// parameter is one entry of a reply body. Unsupported is set when the device answered with the not-supported marker.
type parameter struct {
	value       []byte
	unsupported bool
}

// readBody builds the body of a read request for the provided addresses. Page switches are emitted only when the page
// changes; the device starts every request on page 0.
func readBody(addresses ...register.Address) []byte {
	var body []byte
	var page byte

	for _, a := range addresses {
		if a.Page() != page {
			page = a.Page()
			body = append(body, markerPage, page)
		}

		body = append(body, a.Low())
	}

	return body
}

// writeBody builds the body of a write request. Single byte values use the compact [low][value] form, wider values the
// size-prefixed form.
func writeBody(a register.Address, value []byte) []byte {
	var body []byte
	if a.Page() != 0 {
		body = append(body, markerPage, a.Page())
	}

	if len(value) != 1 {
		body = append(body, markerSize, byte(len(value)))
	}

	body = append(body, a.Low())
	return append(body, value...)
}

// parseReplyBody decodes the body of a response frame into its parameters. Entries are either compact [low][value]
// pairs, size-prefixed [FE][size][low][value...] blocks, [FD][low] for parameters the device does not support, or
// [FF][page] page switches that apply to every following entry.
func parseReplyBody(body []byte) (map[register.Address]parameter, error) {
	result := map[register.Address]parameter{}
	var page byte

	for i := 0; i < len(body); {
		switch body[i] {
		case markerPage:
			if i+1 >= len(body) {
				return nil, fmt.Errorf("%w: truncated page switch", ErrMalformedFrame)
			}

			page = body[i+1]
			i += 2
		case markerNotSupported:
			if i+1 >= len(body) {
				return nil, fmt.Errorf("%w: truncated unsupported marker", ErrMalformedFrame)
			}

			result[address(page, body[i+1])] = parameter{unsupported: true}
			i += 2
		case markerSize:
			if i+2 >= len(body) {
				return nil, fmt.Errorf("%w: truncated size block", ErrMalformedFrame)
			}

			size := int(body[i+1])
			start := i + 3
			if start+size > len(body) {
				return nil, fmt.Errorf("%w: size block overruns body", ErrMalformedFrame)
			}

			result[address(page, body[i+2])] = parameter{value: bytes.Clone(body[start : start+size])}
			i = start + size
		default:
			if i+1 >= len(body) {
				return nil, fmt.Errorf("%w: truncated parameter 0x%02x", ErrMalformedFrame, body[i])
			}

			a := address(page, body[i])
			// A size-prefixed value is exact, keep it over a compact duplicate.
			if _, seen := result[a]; !seen {
				result[a] = parameter{value: []byte{body[i+1]}}
			}

			i += 2
		}
	}

	return result, nil
}

func address(page, low byte) register.Address {
	return register.Address(uint16(page)<<8 | uint16(low))
}

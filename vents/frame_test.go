package vents

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlowe/vents2mqtt/register"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()

	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDeviceID(t *testing.T) {
	assert.Equal(t, "ABC0000000000000", string(func() []byte { id := deviceID("ABC"); return id[:] }()))
	assert.Equal(t, "0123456789abcdef", string(func() []byte { id := deviceID("0123456789abcdefXYZ"); return id[:] }()))
}

func TestFrameMarshalBinary(t *testing.T) {
	for _, tt := range []struct {
		name string
		id   string
		want string
	}{
		{name: "full id", id: "0123456789abcdef", want: "fdfd031030313233343536373839616263646566043131313101024005"},
		{name: "padded id", id: "ABC", want: "fdfd031041424330303030303030303030303030043131313101021404"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			b, err := frame{id: deviceID(tt.id), password: []byte("1111"), function: funcRead, body: []byte{0x02}}.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, tt.want, hex.EncodeToString(b))
		})
	}
}

func TestFrameUnmarshalBinary(t *testing.T) {
	// Leading garbage in front of the prefix is skipped.
	b := append([]byte{0x00, 0x42}, mustHex(t, "fdfd031030313233343536373839616263646566043131313101024005")...)

	var f frame
	require.NoError(t, f.UnmarshalBinary(b))

	assert.Equal(t, "0123456789abcdef", string(f.id[:]))
	assert.Equal(t, []byte("1111"), f.password)
	assert.Equal(t, funcRead, f.function)
	assert.Equal(t, []byte{0x02}, f.body)
}

func TestFrameUnmarshalBinaryErrors(t *testing.T) {
	good := mustHex(t, "fdfd031030313233343536373839616263646566043131313101024005")

	corrupt := append([]byte(nil), good...)
	corrupt[len(corrupt)-3] = 0x03

	for _, tt := range []struct {
		name string
		b    []byte
		want error
	}{
		{name: "no prefix", b: []byte{0x01, 0x02, 0x03}, want: ErrMalformedFrame},
		{name: "too short", b: good[:10], want: ErrMalformedFrame},
		{name: "bad checksum", b: corrupt, want: ErrChecksum},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var f frame
			require.ErrorIs(t, f.UnmarshalBinary(tt.b), tt.want)
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	want := frame{id: deviceID("dev"), password: []byte("secret"), function: funcResponse, body: []byte{0x01, 0x01, 0x02, 0x03}}

	b, err := want.MarshalBinary()
	require.NoError(t, err)

	var got frame
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, want, got)
}

func TestReadBody(t *testing.T) {
	assert.Equal(t, []byte{0x02}, readBody(0x0002))
	assert.Equal(t, []byte{0x01, 0x02, markerPage, 0x03, 0x02, markerPage, 0x00, 0x05}, readBody(0x0001, 0x0002, 0x0302, 0x0005))
}

func TestWriteBody(t *testing.T) {
	assert.Equal(t, []byte{0x02, 0x03}, writeBody(0x0002, []byte{0x03}))
	assert.Equal(t, []byte{markerSize, 0x02, 0x18, 0xd7, 0x00}, writeBody(0x0018, []byte{0xd7, 0x00}))
	assert.Equal(t, []byte{markerPage, 0x03, 0x02, 0x01}, writeBody(0x0302, []byte{0x01}))
}

func TestParseReplyBody(t *testing.T) {
	body := []byte{
		0x01, 0x01, // compact power = 1
		markerSize, 0x02, 0x1e, 0xd7, 0x00, // sized supply temperature = d7 00
		0x1e, 0x05, // compact duplicate must not win
		markerNotSupported, 0x25, // humidity not supported
		markerPage, 0x03, 0x02, 0x07, // page 3, low 2
	}

	params, err := parseReplyBody(body)
	require.NoError(t, err)

	assert.Equal(t, map[register.Address]parameter{
		0x0001: {value: []byte{0x01}},
		0x001e: {value: []byte{0xd7, 0x00}},
		0x0025: {unsupported: true},
		0x0302: {value: []byte{0x07}},
	}, params)
}

func TestParseReplyBodyErrors(t *testing.T) {
	for _, tt := range []struct {
		name string
		body []byte
	}{
		{name: "truncated pair", body: []byte{0x01}},
		{name: "truncated page", body: []byte{markerPage}},
		{name: "truncated unsupported", body: []byte{markerNotSupported}},
		{name: "truncated size", body: []byte{markerSize, 0x02}},
		{name: "overrun", body: []byte{markerSize, 0x04, 0x1e, 0x01}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseReplyBody(tt.body)
			require.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

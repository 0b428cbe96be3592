package hass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePowerState(t *testing.T) {
	for _, tt := range []struct {
		in     string
		want   bool
		wantOK bool
	}{
		{in: "ON", want: true, wantOK: true},
		{in: "on", want: true, wantOK: true},
		{in: " On\n", want: true, wantOK: true},
		{in: "1", want: true, wantOK: true},
		{in: "true", want: true, wantOK: true},
		{in: "OFF", want: false, wantOK: true},
		{in: "0", want: false, wantOK: true},
		{in: "False", want: false, wantOK: true},
		{in: "2", wantOK: false},
		{in: "", wantOK: false},
		{in: "yes", wantOK: false},
	} {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePowerState(tt.in)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPowerStateOf(t *testing.T) {
	assert.Equal(t, PowerStateOn, PowerStateOf(true))
	assert.Equal(t, PowerStateOff, PowerStateOf(false))
}

func TestAvailability(t *testing.T) {
	assert.Equal(t, Available, AvailabilityOf(true))
	assert.Equal(t, Unavailable, AvailabilityOf(false))

	v, err := AvailabilityUnmarshaler([]byte("online\n"))
	require.NoError(t, err)
	assert.Equal(t, Available, v)

	b, err := AvailabilityMarshaler(Unavailable)
	require.NoError(t, err)
	assert.Equal(t, "offline", string(b))
}

package vents

import (
	"context"
	"net"
	"strconv"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlowe/vents2mqtt/device"
	"github.com/nlowe/vents2mqtt/register"
)

// fakeDevice answers requests on a loopback UDP socket from an in-memory page-0 parameter table.
type fakeDevice struct {
	t    *testing.T
	conn net.PacketConn

	mu     sync.Mutex
	params map[byte][]byte
	silent bool
	writes [][]byte
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	d := &fakeDevice{t: t, conn: conn, params: map[byte][]byte{}}
	t.Cleanup(func() { _ = conn.Close() })

	go d.serve()
	return d
}

func (d *fakeDevice) port() int {
	return d.conn.LocalAddr().(*net.UDPAddr).Port
}

func (d *fakeDevice) set(low byte, value ...byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.params[low] = value
}

func (d *fakeDevice) setSilent(silent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.silent = silent
}

func (d *fakeDevice) serve() {
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := d.conn.ReadFrom(buf)
		if err != nil {
			return
		}

		var req frame
		if err = req.UnmarshalBinary(buf[:n]); err != nil {
			continue
		}

		d.mu.Lock()
		if d.silent {
			d.mu.Unlock()
			continue
		}

		var body []byte
		switch req.function {
		case funcRead:
			for _, low := range req.body {
				body = d.appendParam(body, low)
			}
		case funcWriteWithResponse:
			d.writes = append(d.writes, req.body)
			low, value := req.body[0], req.body[1:]
			if low == markerSize {
				low, value = req.body[2], req.body[3:]
			}

			d.params[low] = value
			body = d.appendParam(body, low)
		}
		d.mu.Unlock()

		reply, err := frame{id: req.id, password: req.password, function: funcResponse, body: body}.MarshalBinary()
		if err != nil {
			continue
		}

		_, _ = d.conn.WriteTo(reply, from)
	}
}

func (d *fakeDevice) appendParam(body []byte, low byte) []byte {
	v, ok := d.params[low]
	switch {
	case !ok:
		return append(body, markerNotSupported, low)
	case len(v) == 1:
		return append(body, low, v[0])
	default:
		return append(append(body, markerSize, byte(len(v)), low), v...)
	}
}

func newTestClient(t *testing.T, d *fakeDevice) *Client {
	t.Helper()

	c, err := NewClient(Config{
		ID:               "TESTDEVICE",
		Host:             "127.0.0.1",
		Port:             d.port(),
		Timeout:          100 * time.Millisecond,
		UnreachableAfter: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestNewClientRequiresIDAndHost(t *testing.T) {
	_, err := NewClient(Config{Host: "127.0.0.1"})
	require.Error(t, err)

	_, err = NewClient(Config{ID: "abc"})
	require.Error(t, err)

	c, err := NewClient(Config{ID: "abc", Host: "10.0.0.2"})
	require.NoError(t, err)
	assert.Equal(t, net.JoinHostPort("10.0.0.2", strconv.Itoa(DefaultPort)), c.address)
	assert.Equal(t, DefaultPassword, c.cfg.Password)
	assert.Equal(t, DefaultTimeout, c.cfg.Timeout)
}

func TestClientReadRegister(t *testing.T) {
	d := newFakeDevice(t)
	d.set(0x02, 0x03)
	d.set(0x21, 0xd7, 0x00)

	c := newTestClient(t, d)
	catalog := register.Vents()

	speed, _ := catalog.Describe(register.AddressSpeed)
	v, err := c.ReadRegister(context.Background(), speed)
	require.NoError(t, err)
	assert.Equal(t, register.Value(3), v)

	temp, _ := catalog.Describe(register.AddressSupplyInTemperature)
	v, err = c.ReadRegister(context.Background(), temp)
	require.NoError(t, err)
	assert.Equal(t, register.Value(215), v)
}

func TestClientReadUnsupportedRegister(t *testing.T) {
	d := newFakeDevice(t)
	c := newTestClient(t, d)

	humidity, _ := register.Vents().Describe(register.AddressHumidity)
	_, err := c.ReadRegister(context.Background(), humidity)
	require.ErrorIs(t, err, device.ErrRegisterRead)
	require.False(t, device.Unreachable(err))
}

func TestClientWriteRegister(t *testing.T) {
	d := newFakeDevice(t)
	d.set(0x02, 0x01)
	d.set(0x18, 0x14)

	c := newTestClient(t, d)
	catalog := register.Vents()

	speed, _ := catalog.Describe(register.AddressSpeed)
	require.NoError(t, c.WriteRegister(context.Background(), speed, 3))

	v, err := c.ReadRegister(context.Background(), speed)
	require.NoError(t, err)
	assert.Equal(t, register.Value(3), v)

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Equal(t, [][]byte{{0x02, 0x03}}, d.writes)
}

func TestClientWriteRegisterOutOfRange(t *testing.T) {
	d := newFakeDevice(t)
	c := newTestClient(t, d)

	speed, _ := register.Vents().Describe(register.AddressSpeed)
	require.ErrorIs(t, c.WriteRegister(context.Background(), speed, 1000), device.ErrWriteFailed)

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Empty(t, d.writes)
}

func TestClientTimeoutsBecomeUnreachable(t *testing.T) {
	d := newFakeDevice(t)
	d.set(0x02, 0x01)
	d.setSilent(true)

	c := newTestClient(t, d)
	speed, _ := register.Vents().Describe(register.AddressSpeed)

	_, err := c.ReadRegister(context.Background(), speed)
	require.ErrorIs(t, err, device.ErrRegisterRead, "a single timeout only fails the register")
	require.False(t, device.Unreachable(err))

	_, err = c.ReadRegister(context.Background(), speed)
	require.ErrorIs(t, err, device.ErrDeviceUnreachable)

	d.setSilent(false)
	v, err := c.ReadRegister(context.Background(), speed)
	require.NoError(t, err)
	assert.Equal(t, register.Value(1), v)

	d.setSilent(true)
	_, err = c.ReadRegister(context.Background(), speed)
	require.False(t, device.Unreachable(err), "a reply resets the timeout count")
}

func TestClientCanceledContext(t *testing.T) {
	d := newFakeDevice(t)
	c := newTestClient(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	speed, _ := register.Vents().Describe(register.AddressSpeed)
	_, err := c.ReadRegister(ctx, speed)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClientRefusedIsUnreachable(t *testing.T) {
	// Reserve a loopback port and release it so nothing is listening there.
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, conn.Close())

	c, err := NewClient(Config{
		ID:               "TESTDEVICE",
		Host:             "127.0.0.1",
		Port:             port,
		Timeout:          time.Second,
		UnreachableAfter: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	speed, _ := register.Vents().Describe(register.AddressSpeed)
	_, err = c.ReadRegister(context.Background(), speed)
	require.True(t, device.Unreachable(err), "a refused request marks the device unreachable on the first attempt: %v", err)
	require.ErrorIs(t, err, syscall.ECONNREFUSED)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Nil(t, c.conn, "the socket is dropped so the next request dials again")
}

// Package vents implements device.Transport for Vents / Blauberg air handling units, which speak a proprietary
// request/response protocol over UDP.
package vents

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/nlowe/vents2mqtt/device"
	ventslog "github.com/nlowe/vents2mqtt/log"
	"github.com/nlowe/vents2mqtt/register"
)

const (
	DefaultPort             = 4000
	DefaultPassword         = "1111"
	DefaultTimeout          = 3500 * time.Millisecond
	DefaultUnreachableAfter = 3

	maxDatagram = 4096
)

// Config configures a Client.
type Config struct {
	// ID is the 16 character identifier printed on the controller.
	ID       string
	Host     string
	Port     int
	Password string

	// Timeout bounds a single request/response exchange.
	Timeout time.Duration

	// UnreachableAfter is the number of consecutive timed out exchanges after which the device is considered
	// unreachable rather than a single register failing.
	UnreachableAfter int
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}

	if c.Password == "" {
		c.Password = DefaultPassword
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	if c.UnreachableAfter <= 0 {
		c.UnreachableAfter = DefaultUnreachableAfter
	}

	return c
}

// Client exchanges frames with one device. Requests are serialized on a single connected UDP socket, which is dialed
// lazily and re-dialed after it fails.
type Client struct {
	cfg     Config
	id      [idSize]byte
	address string

	mu       sync.Mutex
	conn     net.Conn
	timeouts int

	log *slog.Logger
}

var _ device.Transport = &Client{}

// NewClient validates cfg and returns a Client. No packets are sent until the first request.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	if cfg.ID == "" {
		return nil, errors.New("vents: device id is required")
	}

	if cfg.Host == "" {
		return nil, errors.New("vents: device host is required")
	}

	if len(cfg.Password) > 0xff {
		return nil, errors.New("vents: password is longer than 255 bytes")
	}

	address := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return &Client{
		cfg:     cfg,
		id:      deviceID(cfg.ID),
		address: address,
		log:     ventslog.ForComponent("vents").With(slog.String("device", address)),
	}, nil
}

// ReadRegister implements device.Transport.
func (c *Client) ReadRegister(ctx context.Context, d register.Descriptor) (register.Value, error) {
	params, err := c.exchange(ctx, funcRead, readBody(d.Address), d.Address)
	if err != nil {
		return 0, c.classify(err, device.ErrRegisterRead, d)
	}

	p := params[d.Address]
	if p.unsupported {
		return 0, fmt.Errorf("%w: %s (%s) is not supported by the device", device.ErrRegisterRead, d.Name, d.Address)
	}

	v, err := decodeValue(d, p.value)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", device.ErrRegisterRead, err)
	}

	return v, nil
}

// WriteRegister implements device.Transport. The device echoes the stored value; the echo is not compared against v
// because confirming a write is the caller's job.
func (c *Client) WriteRegister(ctx context.Context, d register.Descriptor, v register.Value) error {
	raw, err := encodeValue(d, v)
	if err != nil {
		return fmt.Errorf("%w: %w", device.ErrWriteFailed, err)
	}

	params, err := c.exchange(ctx, funcWriteWithResponse, writeBody(d.Address, raw), d.Address)
	if err != nil {
		return c.classify(err, device.ErrWriteFailed, d)
	}

	if params[d.Address].unsupported {
		return fmt.Errorf("%w: %s (%s) is not supported by the device", device.ErrWriteFailed, d.Name, d.Address)
	}

	return nil
}

// Close releases the socket. The Client may still be used afterwards; it dials again on the next request.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) classify(err error, op error, d register.Descriptor) error {
	if errors.Is(err, device.ErrDeviceUnreachable) {
		return err
	}

	return fmt.Errorf("%w: %s (%s): %w", op, d.Name, d.Address, err)
}

// exchange sends one request and waits for the reply that answers it. Replies that fail to parse or do not mention
// want are discarded, since they are most likely late answers to a request that already timed out.
func (c *Client) exchange(ctx context.Context, function byte, body []byte, want register.Address) (map[register.Address]parameter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, "udp", c.address)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", device.ErrDeviceUnreachable, err)
		}

		c.conn = conn
	}

	req, err := frame{id: c.id, password: []byte(c.cfg.Password), function: function, body: body}.MarshalBinary()
	if err != nil {
		return nil, err
	}

	if err = c.conn.SetDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return nil, c.fail(err)
	}

	c.log.Debug("tx", slog.String("frame", hex.EncodeToString(req)))
	if _, err = c.conn.Write(req); err != nil {
		return nil, c.fail(err)
	}

	buf := make([]byte, maxDatagram)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return nil, c.fail(err)
		}

		c.log.Debug("rx", slog.String("frame", hex.EncodeToString(buf[:n])))

		var reply frame
		if err = reply.UnmarshalBinary(buf[:n]); err != nil {
			c.log.With(ventslog.Error(err)).Debug("Discarding unparsable datagram")
			continue
		}

		if reply.function != funcResponse {
			c.log.Debug("Discarding datagram that is not a response")
			continue
		}

		params, err := parseReplyBody(reply.body)
		if err != nil {
			c.log.With(ventslog.Error(err)).Debug("Discarding response with malformed body")
			continue
		}

		if _, ok := params[want]; !ok {
			c.log.With(slog.String("address", want.String())).Debug("Discarding response for another parameter")
			continue
		}

		c.timeouts = 0
		return params, nil
	}
}

// fail records a failed exchange. Refused connections mean nothing is listening on the device address, and enough
// consecutive timeouts mean the device stopped answering; both are reported as device.ErrDeviceUnreachable.
func (c *Client) fail(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		c.closeLocked()
		return fmt.Errorf("%w: %w", device.ErrDeviceUnreachable, err)
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		c.timeouts++
		if c.timeouts >= c.cfg.UnreachableAfter {
			return fmt.Errorf("%w: %d consecutive requests timed out: %w", device.ErrDeviceUnreachable, c.timeouts, err)
		}

		return err
	}

	c.closeLocked()
	return err
}

func (c *Client) closeLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

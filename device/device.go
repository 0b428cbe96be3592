// Package device defines how the bridge talks to an air handling unit. The sampler and the sync engine depend on the
// Transport interface only; package vents provides the UDP implementation.
package device

import (
	"context"
	"errors"

	"github.com/nlowe/vents2mqtt/register"
)

var (
	// ErrDeviceUnreachable means no register could be exchanged with the device at all. Callers should treat every
	// register as unknown until a later exchange succeeds.
	ErrDeviceUnreachable = errors.New("device unreachable")

	// ErrRegisterRead means the device answered but a single register could not be read. Other registers are
	// unaffected.
	ErrRegisterRead = errors.New("register read failed")

	// ErrWriteFailed means the device did not acknowledge a register write.
	ErrWriteFailed = errors.New("register write failed")
)

// Transport reads and writes single registers. Implementations must be safe for concurrent use.
type Transport interface {
	// ReadRegister returns the raw value of the register described by d.
	ReadRegister(ctx context.Context, d register.Descriptor) (register.Value, error)

	// WriteRegister stores v in the register described by d. A nil error means the device accepted the request, not
	// that the new value has taken effect.
	WriteRegister(ctx context.Context, d register.Descriptor, v register.Value) error
}

// Unreachable reports whether err means the whole device is gone rather than a single register.
func Unreachable(err error) bool {
	return errors.Is(err, ErrDeviceUnreachable)
}

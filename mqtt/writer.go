package mqtt

import (
	"context"
	"errors"
)

// ErrBrokerDisconnected is the error returned by Writer implementations when no broker connection is currently
// established. Callers should keep their latest state and publish it once a new Epoch begins.
var ErrBrokerDisconnected = errors.New("mqtt: broker disconnected")

// Writer is the minimum abstraction around writing values to MQTT.
type Writer interface {
	// WriteTopic writes the provided value to the specified topic with the specified WriteOptions.
	WriteTopic(ctx context.Context, topic string, options WriteOptions, value []byte) error
}

// WriterFunc adapts an ordinary function to a Writer.
type WriterFunc func(ctx context.Context, topic string, options WriteOptions, value []byte) error

func (f WriterFunc) WriteTopic(ctx context.Context, topic string, options WriteOptions, value []byte) error {
	return f(ctx, topic, options, value)
}

// Error discards the result of Writer.WriteTopic, returning just the error. Used to join multiple errors when you don't
// care about returned values.
func Error[T any](_ T, err error) error {
	return err
}

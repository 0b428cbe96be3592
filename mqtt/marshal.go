package mqtt

import "strings"

// ValueMarshaler is a function that can convert values of type T to a byte slice for writing to an MQTT Topic.
type ValueMarshaler[T any] func(v T) ([]byte, error)

// ValueUnmarshaler is a function that can convert the byte slice payload from an MQTT Message to values of type T.
type ValueUnmarshaler[T any] func([]byte) (T, error)

var (
	StringMarshaler ValueMarshaler[string] = func(v string) ([]byte, error) {
		return []byte(v), nil
	}

	// TrimmedStringUnmarshaler strips surrounding whitespace, which some publishers append to hand-typed payloads.
	TrimmedStringUnmarshaler ValueUnmarshaler[string] = func(bytes []byte) (string, error) {
		return strings.TrimSpace(string(bytes)), nil
	}
)

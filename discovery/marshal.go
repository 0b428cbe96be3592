package discovery

import (
	"encoding/json/jsontext"
	"encoding/json/v2"
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	// ErrValueRequired is the error returned by marshal functions for values that hold the type's associated Zero value
	// when marshaling the discovery payload.
	ErrValueRequired = errors.New("value is required")
	// ErrTopicRequired is the error returned by MarshalRequiredTopic when the provided topic is empty.
	ErrTopicRequired = errors.New("topic is required")
	// ErrMissingStateOrCommandTopic is the error returned by MaybeMarshalStateAndCommandTopics if either the state
	// topic or the command topic (but not both) are specified.
	ErrMissingStateOrCommandTopic = errors.New("state and command topics must both be configured")

	// Marshalers contains json.Marshalers for types from the standard library to make them conform to the Home
	// Assistant MQTT Discovery schema (e.g. render URLs as strings).
	Marshalers = json.JoinMarshalers(
		// Marshal URLs as their string representation
		json.MarshalToFunc[*url.URL](func(e *jsontext.Encoder, u *url.URL) error {
			return e.WriteToken(jsontext.String(u.String()))
		}),
		// Marshal durations as integer seconds
		json.MarshalToFunc[time.Duration](func(e *jsontext.Encoder, t time.Duration) error {
			return e.WriteToken(jsontext.Int(int64(t.Seconds())))
		}),
	)
)

// MarshalRequiredTopic encodes the topic for the discovery payload being built. It returns ErrTopicRequired if the
// topic is the empty string.
func MarshalRequiredTopic(name string, e *jsontext.Encoder, k string, topic string) error {
	if topic == "" {
		return fmt.Errorf("%s: %w", name, ErrTopicRequired)
	}

	return MaybeMarshalTopic(e, k, topic)
}

// MaybeMarshalTopic encodes the topic for the discovery payload being built if the topic string is not empty.
func MaybeMarshalTopic(e *jsontext.Encoder, k string, topic string) error {
	if topic == "" {
		return nil
	}

	return errors.Join(
		e.WriteToken(jsontext.String(k)),
		e.WriteToken(jsontext.String(topic)),
	)
}

// MaybeMarshalStateAndCommandTopics marshals the specified state and command topics if they are not empty. If one is
// set, the other must be set too.
func MaybeMarshalStateAndCommandTopics(name string, e *jsontext.Encoder, sk string, state string, ck string, command string) error {
	if state == "" && command == "" {
		return nil
	}

	if state == "" || command == "" {
		return fmt.Errorf("%s: %w", name, ErrMissingStateOrCommandTopic)
	}

	return errors.Join(
		MarshalRequiredTopic(name, e, sk, state),
		MarshalRequiredTopic(name, e, ck, command),
	)
}

// MaybeMarshalAvailabilityList encodes a list of availability topics (`[{"t": "..."}]`) if any are provided.
func MaybeMarshalAvailabilityList(e *jsontext.Encoder, k string, topics []string) error {
	if len(topics) == 0 {
		return nil
	}

	err := errors.Join(
		e.WriteToken(jsontext.String(k)),
		e.WriteToken(jsontext.BeginArray),
	)

	for _, topic := range topics {
		err = errors.Join(
			err,
			e.WriteToken(jsontext.BeginObject),
			MarshalRequiredTopic("availability", e, FieldTopic, topic),
			e.WriteToken(jsontext.EndObject),
		)
	}

	return errors.Join(err, e.WriteToken(jsontext.EndArray))
}

// MarshalStd marshals the specified value using json.MarshalEncode with Marshalers. If the provided value is nil, it
// returns ErrValueRequired.
func MarshalStd[T any](name string, e *jsontext.Encoder, k string, v *T) error {
	if v == nil {
		return fmt.Errorf("%s: %w", name, ErrValueRequired)
	}

	return MaybeMarshalStd(e, k, v)
}

// MaybeMarshalStd marshals the provided value using json.MarshalEncode with Marshalers if it is not nil.
func MaybeMarshalStd[T any](e *jsontext.Encoder, k string, v *T) error {
	if v == nil {
		return nil
	}

	return errors.Join(
		e.WriteToken(jsontext.String(k)),
		json.MarshalEncode(e, v, json.WithMarshalers(Marshalers)),
	)
}

// MaybeMarshalStdSlice marshals the provided slice of values using json.MarshalEncode with Marshalers if it is not
// empty.
func MaybeMarshalStdSlice[T any](e *jsontext.Encoder, k string, v []T) error {
	if len(v) == 0 {
		return nil
	}

	return errors.Join(
		e.WriteToken(jsontext.String(k)),
		json.MarshalEncode(e, v, json.WithMarshalers(Marshalers)),
	)
}

// MarshalStdComparable marshals the provided value using Marshalers. If it is equal to the type's zero value, it
// returns ErrValueRequired.
func MarshalStdComparable[T comparable](name string, e *jsontext.Encoder, k string, v T) error {
	var defaultT T
	if v == defaultT {
		return fmt.Errorf("%s: %w", name, ErrValueRequired)
	}

	return MaybeMarshalStd(e, k, &v)
}

// MaybeMarshalStdComparable marshals the provided value using Marshalers if it is not equal to the type's zero value.
func MaybeMarshalStdComparable[T comparable](e *jsontext.Encoder, k string, v T) error {
	var defaultT T
	if v == defaultT {
		return nil
	}

	return MaybeMarshalStd(e, k, &v)
}

// MarshalStdIfNot marshals the provided value using Marshalers if it is not equal to the specified value.
func MarshalStdIfNot[T comparable](not T, e *jsontext.Encoder, vk string, v T) error {
	var defaultT T
	if v == not || v == defaultT {
		return nil
	}

	return errors.Join(
		e.WriteToken(jsontext.String(vk)),
		json.MarshalEncode(e, v, json.WithMarshalers(Marshalers)),
	)
}

package engine

import (
	"fmt"
	"log/slog"
	"time"
)

// EventKind classifies diagnostic events. It implements fmt.Stringer and slog.LogValuer.
type EventKind uint8

const (
	// EventDeviceUnreachable means a sample cycle was abandoned because the device did not answer at all.
	EventDeviceUnreachable EventKind = iota + 1
	// EventRegisterReadFailed means one register could not be read and is now unknown.
	EventRegisterReadFailed
	// EventEncodeFailed means the device reported a value that cannot be rendered as a payload.
	EventEncodeFailed
	// EventInvalidCommand means an inbound command was dropped without touching the device.
	EventInvalidCommand
	// EventWriteAttemptFailed means one write attempt failed or was not confirmed by the resample. The write is
	// retried while attempts remain.
	EventWriteAttemptFailed
	// EventWriteConfirmed means the resample after a write matched the requested value.
	EventWriteConfirmed
	// EventWriteNotConfirmed means a write exhausted its attempts and the last confirmed value was republished.
	EventWriteNotConfirmed
	// EventWriteSuperseded means a newer command for the same register replaced a pending write.
	EventWriteSuperseded
	// EventPublishFailed means at least one state or availability message could not be published.
	EventPublishFailed
	// EventDiscoveryFailed means at least one discovery record could not be published.
	EventDiscoveryFailed
)

func (k EventKind) String() string {
	switch k {
	case EventDeviceUnreachable:
		return "device_unreachable"
	case EventRegisterReadFailed:
		return "register_read_failed"
	case EventEncodeFailed:
		return "encode_failed"
	case EventInvalidCommand:
		return "invalid_command"
	case EventWriteAttemptFailed:
		return "write_attempt_failed"
	case EventWriteConfirmed:
		return "write_confirmed"
	case EventWriteNotConfirmed:
		return "write_not_confirmed"
	case EventWriteSuperseded:
		return "write_superseded"
	case EventPublishFailed:
		return "publish_failed"
	case EventDiscoveryFailed:
		return "discovery_failed"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

func (k EventKind) LogValue() slog.Value {
	return slog.StringValue(k.String())
}

// level is the log level events of this kind are logged at.
func (k EventKind) level() slog.Level {
	switch k {
	case EventWriteConfirmed, EventWriteSuperseded:
		return slog.LevelInfo
	case EventRegisterReadFailed, EventWriteAttemptFailed:
		return slog.LevelDebug
	default:
		return slog.LevelWarn
	}
}

// Event is a diagnostic event. Register is empty for events that concern the whole device or connection.
type Event struct {
	Kind     EventKind
	Register string
	Err      error
	At       time.Time
}

func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{slog.Any("kind", e.Kind)}
	if e.Register != "" {
		attrs = append(attrs, slog.String("register", e.Register))
	}

	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}

	return slog.GroupValue(attrs...)
}

// Observer receives every Event. It is called synchronously from the engine's goroutines and must not block.
type Observer func(Event)

package log

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
)

const (
	ComponentKey = "component"
	ErrorKey     = "error"
	RegisterKey  = "register"
)

// Error returns a slog.Attr for the provided error. The key will be ErrorKey.
func Error(e error) slog.Attr {
	return slog.Any(ErrorKey, e)
}

// Register returns a slog.Attr naming the register a log line is about. The key will be RegisterKey.
func Register(name string) slog.Attr {
	return slog.String(RegisterKey, name)
}

// indirectHandler is a small wrapper around a slog.Handler that allows swapping out the underlying handler on demand.
type indirectHandler struct {
	h atomic.Pointer[slog.Handler]
}

func (i *indirectHandler) Enabled(ctx context.Context, level slog.Level) bool {
	h := i.h.Load()
	if h == nil {
		return false
	}

	return (*h).Enabled(ctx, level)
}

func (i *indirectHandler) Handle(ctx context.Context, record slog.Record) error {
	h := i.h.Load()
	if h == nil {
		return nil
	}

	return (*h).Handle(ctx, record)
}

// WithAttrs and WithGroup return derived handlers that keep resolving the sink on every call, so loggers created by
// ForComponent before To is called still end up at the configured handler.
func (i *indirectHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &derivedHandler{parent: i, attrs: attrs}
}

func (i *indirectHandler) WithGroup(name string) slog.Handler {
	return &derivedHandler{parent: i, group: name}
}

var _ slog.Handler = &indirectHandler{}

// derivedHandler replays attrs and groups onto whatever handler the sink holds at the time of the call.
type derivedHandler struct {
	parent slog.Handler
	attrs  []slog.Attr
	group  string
}

func (d *derivedHandler) resolve() slog.Handler {
	var h slog.Handler
	switch p := d.parent.(type) {
	case *indirectHandler:
		inner := p.h.Load()
		if inner == nil {
			return nil
		}
		h = *inner
	case *derivedHandler:
		h = p.resolve()
		if h == nil {
			return nil
		}
	default:
		h = p
	}

	if d.group != "" {
		return h.WithGroup(d.group)
	}

	return h.WithAttrs(d.attrs)
}

func (d *derivedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	h := d.resolve()
	return h != nil && h.Enabled(ctx, level)
}

func (d *derivedHandler) Handle(ctx context.Context, record slog.Record) error {
	h := d.resolve()
	if h == nil {
		return nil
	}

	return h.Handle(ctx, record)
}

func (d *derivedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &derivedHandler{parent: d, attrs: attrs}
}

func (d *derivedHandler) WithGroup(name string) slog.Handler {
	return &derivedHandler{parent: d, group: name}
}

var (
	sink = &indirectHandler{h: atomic.Pointer[slog.Handler]{}}
)

// To updates all slog.Logger objects used by the bridge to write logs to the provided slog.Handler. By default, log
// values will be discarded unless To is called at least once with a non-discarding slog.Handler.
func To(h slog.Handler) {
	sink.h.Store(&h)
}

// ForComponent constructs a slog.Logger for the specified component (which is stored in an attribute with the key
// ComponentKey).
func ForComponent(component string) *slog.Logger {
	return slog.New(sink).With(slog.String(ComponentKey, component))
}

// NewHandler builds the process-wide handler from the logging configuration. Format "text" selects slog's text
// handler, anything else JSON. Unrecognised levels fall back to info.
func NewHandler(format, level string, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}

	return slog.NewJSONHandler(w, opts)
}

// ParseLevel converts a configured level name to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

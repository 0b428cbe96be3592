package mqtt

import (
	"context"
	"log/slog"
	"sync"
)

// Subscription holds metadata for a MQTT subscription for a given topic filter. It implements fmt.Stringer and
// slog.LogValuer.
type Subscription struct {
	Topic   string
	Options ReadOptions
}

func (s Subscription) String() string {
	return s.Topic
}

func (s Subscription) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("topic", s.Topic),
		slog.Any("options", s.Options),
	)
}

// Handler is the MQTT equivalent to http.Handler. It is a callback configured for an MQTT Subscription.
//
// Because a handler may receive a message at any time, they do not directly return errors. Implementations should
// provide a way to deal with errors separately. Handlers must not block. Any long-running operations should be run from
// a new goroutine started by the Handler instead.
//
// If the handler needs to write any response message to MQTT, it should use the provided writer and return. It is not
// valid to use Writer or message slice after returning.
type Handler interface {
	ServeMQTT(w Writer, topic string, message []byte)
}

// The HandlerFunc type is an adapter to allow the use of ordinary functions as MQTT handlers. If f is a function with
// the appropriate signature, HandlerFunc(f) is a Handler that calls f.
type HandlerFunc func(Writer, string, []byte)

func (f HandlerFunc) ServeMQTT(w Writer, topic string, message []byte) {
	f(w, topic, message)
}

// Subscriber manages MQTT Subscriptions
type Subscriber interface {
	// Subscribe configures the underlying MQTT connection to send the client messages for the provided subscriptions.
	// The provided Handler will be called for all subscribed topics in this call.
	Subscribe(ctx context.Context, handler Handler, subscriptions ...Subscription) error

	// Unsubscribe removes any subscriptions configured for the specified topics.
	Unsubscribe(ctx context.Context, topics ...string) error
}

// Mux dispatches messages to the handler whose subscription filter matches the topic. Filters are matched with
// MatchTopic in registration order; every matching handler is called. The zero value is ready to use.
type Mux struct {
	mu     sync.RWMutex
	routes []route
}

type route struct {
	filter  string
	handler Handler
}

// Handle registers handler for the provided topic filter.
func (m *Mux) Handle(filter string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.routes = append(m.routes, route{filter: filter, handler: handler})
}

// Remove drops every handler registered for the provided topic filter.
func (m *Mux) Remove(filter string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.routes[:0]
	for _, r := range m.routes {
		if r.filter != filter {
			kept = append(kept, r)
		}
	}
	m.routes = kept
}

func (m *Mux) ServeMQTT(w Writer, topic string, message []byte) {
	m.mu.RLock()
	var matched []Handler
	for _, r := range m.routes {
		if MatchTopic(r.filter, topic) {
			matched = append(matched, r.handler)
		}
	}
	m.mu.RUnlock()

	for _, h := range matched {
		h.ServeMQTT(w, topic, message)
	}
}

package autopaho

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	ventslog "github.com/nlowe/vents2mqtt/log"
	"github.com/nlowe/vents2mqtt/mqtt"
)

// Session is an MQTT connection managed by autopaho. It implements mqtt.Writer, mqtt.Subscriber and
// mqtt.EpochNotifier. Subscriptions are re-sent after every reconnect, and every successful connection starts a new
// mqtt.Epoch.
type Session struct {
	mu sync.Mutex

	ctx  context.Context
	conn *autopaho.ConnectionManager
	r    paho.Router

	subscriptions map[string]paho.SubscribeOptions

	connected bool
	epoch     mqtt.Epoch
	handlers  []mqtt.EpochHandler
	now       func() time.Time

	log *slog.Logger
}

var (
	_ mqtt.Writer        = &Session{}
	_ mqtt.Subscriber    = &Session{}
	_ mqtt.EpochNotifier = &Session{}
)

func newSession(ctx context.Context) *Session {
	return &Session{
		ctx: ctx,
		r:   paho.NewStandardRouter(),

		subscriptions: map[string]paho.SubscribeOptions{},
		now:           time.Now,

		log: ventslog.ForComponent("autopaho"),
	}
}

// DialMQTT starts an autopaho connection manager for config and waits for the first connection. ctx bounds the
// lifetime of the connection manager, not just the initial connect.
func DialMQTT(ctx context.Context, config autopaho.ClientConfig) (*Session, error) {
	s := newSession(ctx)

	// Wrap the connection callbacks to deal with re-subscribing and connection epochs.
	originalOnConnUp := config.OnConnectionUp
	config.OnConnectionUp = func(manager *autopaho.ConnectionManager, connack *paho.Connack) {
		s.onConnectionUp(ctx)

		if originalOnConnUp != nil {
			originalOnConnUp(manager, connack)
		}
	}

	originalOnClientError := config.ClientConfig.OnClientError
	config.ClientConfig.OnClientError = func(err error) {
		s.onConnectionDown(err)

		if originalOnClientError != nil {
			originalOnClientError(err)
		}
	}

	originalOnServerDisconnect := config.ClientConfig.OnServerDisconnect
	config.ClientConfig.OnServerDisconnect = func(d *paho.Disconnect) {
		s.onConnectionDown(fmt.Errorf("server disconnect: reason %d", d.ReasonCode))

		if originalOnServerDisconnect != nil {
			originalOnServerDisconnect(d)
		}
	}

	// Lock the session before starting the connection so the first OnConnectionUp callback (which calls
	// s.onConnectionUp) blocks until after s.conn is assigned.
	s.mu.Lock()
	s.log.Info("Connecting to mqtt broker")
	conn, err := autopaho.NewConnection(ctx, config)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	s.conn = conn
	s.mu.Unlock()

	conn.AddOnPublishReceived(func(rx autopaho.PublishReceived) (bool, error) {
		s.r.Route(rx.Packet.Packet())
		return true, nil
	})

	s.log.Debug("Waiting for connection to be ready")
	if err = conn.AwaitConnection(ctx); err != nil {
		return nil, fmt.Errorf("mqtt: wait for connection: %w", err)
	}

	s.log.Debug("Connected to mqtt broker")
	return s, nil
}

// onConnectionUp re-sends every subscription and then starts a new epoch.
func (s *Session) onConnectionUp(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.subscriptions) > 0 && s.conn != nil {
		sub := &paho.Subscribe{
			Subscriptions: make([]paho.SubscribeOptions, 0, len(s.subscriptions)),
		}

		for _, opts := range s.subscriptions {
			sub.Subscriptions = append(sub.Subscriptions, opts)
		}

		s.log.Debug("Reconnected to MQTT. Re-sending subscriptions.")
		if _, err := s.conn.Subscribe(ctx, sub); err != nil {
			s.log.With(ventslog.Error(err)).Error("Failed to re-subscribe to mqtt topics")
		}
	}

	s.startEpochLocked()
}

// startEpochLocked records a new connection epoch and notifies every handler. The caller must hold s.mu.
func (s *Session) startEpochLocked() {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	s.connected = true
	s.epoch = mqtt.Epoch{ID: id.String(), Sequence: s.epoch.Sequence + 1, Started: s.now()}
	s.log.With(slog.Any("epoch", s.epoch)).Info("MQTT connection epoch started")

	for _, h := range s.handlers {
		go h(s.ctx, s.epoch)
	}
}

func (s *Session) onConnectionDown(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return
	}

	s.connected = false
	s.log.With(ventslog.Error(err), slog.Any("epoch", s.epoch)).Warn("MQTT connection lost")
}

// Connected reports whether the broker connection is currently up.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connected
}

// OnEpoch registers handler for every future connection epoch. If the session is connected, handler is also started
// for the current epoch.
func (s *Session) OnEpoch(handler mqtt.EpochHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = append(s.handlers, handler)
	if s.connected {
		go handler(s.ctx, s.epoch)
	}
}

// WriteTopic publishes value. It fails fast with mqtt.ErrBrokerDisconnected while the connection is down instead of
// queueing the message.
func (s *Session) WriteTopic(ctx context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
	s.mu.Lock()
	conn, connected := s.conn, s.connected
	s.mu.Unlock()

	if conn == nil || !connected {
		return fmt.Errorf("publish to %s: %w", topic, mqtt.ErrBrokerDisconnected)
	}

	s.log.With(slog.String("topic", topic), slog.Any("options", options), slog.String("payload", string(value))).Debug("Publishing payload")

	_, err := conn.Publish(ctx, &paho.Publish{
		QoS:     uint8(options.QoS),
		Retain:  options.Retain,
		Topic:   topic,
		Payload: value,
	})

	if errors.Is(err, autopaho.ConnectionDownError) {
		return fmt.Errorf("publish to %s: %w: %w", topic, mqtt.ErrBrokerDisconnected, err)
	}

	return err
}

// Subscribe registers handler for subscriptions. While disconnected the subscriptions are only recorded; they are sent
// when the next connection comes up.
func (s *Session) Subscribe(ctx context.Context, handler mqtt.Handler, subscriptions ...mqtt.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(subscriptions) == 0 {
		return nil
	}

	sub := &paho.Subscribe{
		Subscriptions: make([]paho.SubscribeOptions, len(subscriptions)),
	}

	for i, subscription := range subscriptions {
		opts := subscribeOptions(subscription)

		s.subscriptions[subscription.Topic] = opts
		sub.Subscriptions[i] = opts

		s.r.RegisterHandler(subscription.Topic, func(publish *paho.Publish) {
			handler.ServeMQTT(s, publish.Topic, publish.Payload)
		})
	}

	if s.conn == nil || !s.connected {
		s.log.With(slog.Any("subscriptions", subscriptions)).Debug("Deferring subscription until connected")
		return nil
	}

	s.log.With(slog.Any("subscriptions", subscriptions)).Debug("Subscribing to MQTT Topic(s)")
	_, err := s.conn.Subscribe(ctx, sub)
	return err
}

func (s *Session) Unsubscribe(ctx context.Context, topics ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range topics {
		delete(s.subscriptions, t)
		s.r.UnregisterHandler(t)
	}

	if s.conn == nil || !s.connected {
		return nil
	}

	s.log.With(slog.Any("topics", topics)).Debug("Unsubscribing from MQTT Topic(s)")
	_, err := s.conn.Unsubscribe(ctx, &paho.Unsubscribe{
		Topics: topics,
	})

	return err
}

// Disconnect cleanly closes the connection. The broker does not publish the Last Will after a clean disconnect.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.connected = false
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	return conn.Disconnect(ctx)
}

func subscribeOptions(s mqtt.Subscription) paho.SubscribeOptions {
	return paho.SubscribeOptions{
		Topic:             s.Topic,
		QoS:               uint8(s.Options.QoS),
		RetainHandling:    uint8(s.Options.RetainHandling),
		NoLocal:           s.Options.NoLocal,
		RetainAsPublished: s.Options.RetainAsPublished,
	}
}

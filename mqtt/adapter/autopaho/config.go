package autopaho

import (
	"crypto/tls"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	ventslog "github.com/nlowe/vents2mqtt/log"
	"github.com/nlowe/vents2mqtt/mqtt"
)

const (
	DefaultPort    = 1883
	DefaultTLSPort = 8883

	// DefaultKeepAlive is the keep alive interval in seconds.
	DefaultKeepAlive = 20

	// DefaultSessionExpiryInterval is how many seconds the broker keeps the session after the connection drops.
	DefaultSessionExpiryInterval = 60
)

// Will is the Last Will and Testament the broker publishes when the connection drops without a clean disconnect.
type Will struct {
	Topic   string
	Payload []byte
	Options mqtt.WriteOptions
}

// Options describes how to reach and authenticate with the broker.
type Options struct {
	Host     string
	Port     int
	TLS      bool
	ClientID string
	Username string
	Password string

	// Will is optional.
	Will *Will
}

// BrokerURL returns the URL autopaho dials for o. TLS selects the mqtts scheme. A zero Port selects the default port
// for the scheme.
func (o Options) BrokerURL() *url.URL {
	scheme, port := "mqtt", o.Port
	if o.TLS {
		scheme = "mqtts"
		if port == 0 {
			port = DefaultTLSPort
		}
	}

	if port == 0 {
		port = DefaultPort
	}

	return &url.URL{Scheme: scheme, Host: net.JoinHostPort(o.Host, strconv.Itoa(port))}
}

// ClientConfig builds the autopaho configuration for o. Connection events are logged; DialMQTT adds its own
// callbacks on top.
func (o Options) ClientConfig() autopaho.ClientConfig {
	log := ventslog.ForComponent("mqtt")
	broker := o.BrokerURL()

	config := autopaho.ClientConfig{
		ServerUrls: []*url.URL{broker},
		KeepAlive:  DefaultKeepAlive,

		// Commands that arrive during a short outage are still delivered after reconnecting.
		SessionExpiryInterval: DefaultSessionExpiryInterval,

		OnConnectionUp: func(_ *autopaho.ConnectionManager, _ *paho.Connack) {
			log.With(slog.String("broker", broker.String())).Info("mqtt connected")
		},
		OnConnectError: func(err error) {
			log.With(ventslog.Error(err)).Error("mqtt connection error")
		},

		ClientConfig: paho.ClientConfig{
			ClientID: o.ClientID,
			OnClientError: func(err error) {
				log.With(ventslog.Error(err)).Error("mqtt client error")
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				log := log.With(slog.Int("reason", int(d.ReasonCode)))

				if d.Properties != nil {
					log = log.With(
						slog.Group(
							"properties",
							slog.String("reference", d.Properties.ServerReference),
							slog.String("reason", d.Properties.ReasonString),
						),
					)
				}

				log.Warn("Disconnected from server")
			},
		},
	}

	if o.Username != "" {
		config.ConnectUsername = o.Username
		config.ConnectPassword = []byte(o.Password)
	}

	if o.TLS {
		config.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: o.Host,
		}
	}

	if o.Will != nil {
		config.WillMessage = &paho.WillMessage{
			Topic:   o.Will.Topic,
			Payload: o.Will.Payload,
			QoS:     byte(o.Will.Options.QoS),
			Retain:  o.Will.Options.Retain,
		}
	}

	return config
}

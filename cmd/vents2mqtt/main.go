// Command vents2mqtt keeps a Vents air handling unit and Home Assistant in sync over MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nlowe/vents2mqtt"
	"github.com/nlowe/vents2mqtt/config"
	"github.com/nlowe/vents2mqtt/engine"
	"github.com/nlowe/vents2mqtt/hass"
	ventslog "github.com/nlowe/vents2mqtt/log"
	"github.com/nlowe/vents2mqtt/mapper"
	"github.com/nlowe/vents2mqtt/mqtt"
	"github.com/nlowe/vents2mqtt/mqtt/adapter/autopaho"
	"github.com/nlowe/vents2mqtt/register"
	"github.com/nlowe/vents2mqtt/vents"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vents2mqtt: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("VENTS2MQTT_CONFIG"), "Path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ventslog.To(ventslog.NewHandler(cfg.Logging.Format, cfg.Logging.Level, os.Stderr))
	log := ventslog.ForComponent("main")
	log.With(slog.String("version", vents2mqtt.Version), slog.String("device", cfg.Device.ID)).Info("Starting up")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := vents.NewClient(vents.Config{
		ID:       cfg.Device.ID,
		Host:     cfg.Device.Host,
		Port:     cfg.Device.Port,
		Password: cfg.Device.Password,
		Timeout:  cfg.DeviceTimeout(),
	})
	if err != nil {
		return fmt.Errorf("vents: %w", err)
	}

	defer func() {
		if err := client.Close(); err != nil {
			log.With(ventslog.Error(err)).Warn("Failed to close device connection")
		}
	}()

	qos := mqtt.QualityOfService(cfg.MQTT.QoS)
	m := mapper.New(
		register.Vents(),
		cfg.Device.ID,
		mapper.WithDiscoveryPrefix(cfg.MQTT.DiscoveryPrefix),
		mapper.WithDevice(deviceFor(cfg)),
		mapper.WithCommandQoS(qos),
	)

	session, stopSession, err := connect(ctx, cfg, m, qos)
	if err != nil {
		return err
	}

	defer stopSession()

	e := engine.New(engine.Config{
		PollInterval:    cfg.PollInterval(),
		WriteAttempts:   cfg.Sync.WriteAttempts,
		WriteRetryDelay: cfg.WriteRetryDelay(),
		QoS:             qos,
	}, m, client, session)

	if err = e.Subscribe(ctx, session); err != nil {
		return fmt.Errorf("mqtt: subscribe: %w", err)
	}

	session.OnEpoch(e.HandleEpoch)

	err = e.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	log.Info("Shutting down")
	if closeErr := e.Close(shutdownCtx); closeErr != nil {
		if session.Connected() {
			log.With(ventslog.Error(closeErr)).Warn("Failed to mark bridge offline")
		} else {
			log.Info("Broker unavailable, the Last Will marks the bridge offline")
		}
	}

	if disconnectErr := session.Disconnect(shutdownCtx); disconnectErr != nil {
		log.With(ventslog.Error(disconnectErr)).Warn("Failed to disconnect from mqtt")
	}

	if errors.Is(err, context.Canceled) {
		log.Info("Goodbye!")
		return nil
	}

	return err
}

// connect dials the broker with the bridge availability topic as Last Will. The session outlives ctx so the bridge can
// still mark itself offline after a signal; the returned stop function ends it.
func connect(ctx context.Context, cfg *config.Config, m *mapper.Mapper, qos mqtt.QualityOfService) (*autopaho.Session, func(), error) {
	will, err := hass.AvailabilityMarshaler(hass.Unavailable)
	if err != nil {
		return nil, nil, err
	}

	opts := autopaho.Options{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		TLS:      cfg.MQTT.TLS,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Will: &autopaho.Will{
			Topic:   m.BridgeAvailabilityTopic(),
			Payload: will,
			Options: mqtt.Retained(qos),
		},
	}

	sessionCtx, stopSession := context.WithCancel(context.Background())

	// Give up on the initial connection if we are asked to stop before the broker answers.
	detach := context.AfterFunc(ctx, stopSession)
	defer detach()

	ventslog.ForComponent("main").With(slog.String("broker", opts.BrokerURL().String())).Info("Connecting to mqtt")
	session, err := autopaho.DialMQTT(sessionCtx, opts.ClientConfig())
	if err != nil {
		stopSession()
		return nil, nil, fmt.Errorf("mqtt: connect: %w", err)
	}

	return session, stopSession, nil
}

func deviceFor(cfg *config.Config) vents2mqtt.Device {
	d := vents2mqtt.Device{
		Name:         "Vents " + cfg.Device.ID,
		Serial:       cfg.Device.ID,
		Manufacturer: "Vents",
		Model:        "Air handling unit",
	}

	if ip := net.ParseIP(cfg.Device.Host); ip != nil {
		d.Connections = []vents2mqtt.DeviceConnection{{Kind: "ip", Value: ip.String()}}
	}

	return d
}

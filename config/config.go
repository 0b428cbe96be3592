// Package config loads the bridge configuration from defaults, an optional YAML file and environment variables, in
// that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingValue is the error returned by Validate when a required setting has no value.
	ErrMissingValue = errors.New("missing required value")
	// ErrInvalidValue is the error returned when a setting cannot be parsed or is out of range.
	ErrInvalidValue = errors.New("invalid value")
)

const (
	DefaultDevicePort      = 4000
	DefaultDevicePassword  = "1111"
	DefaultDeviceTimeout   = 3.5
	DefaultPollInterval    = 5.0
	DefaultWriteAttempts   = 3
	DefaultWriteRetryDelay = 500
	DefaultMQTTHost        = "127.0.0.1"
	DefaultMQTTPort        = 1883
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Sync    SyncConfig    `yaml:"sync"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Logging LoggingConfig `yaml:"logging"`
}

type DeviceConfig struct {
	ID       string  `yaml:"id"`
	Host     string  `yaml:"host"`
	Port     int     `yaml:"port"`
	Password string  `yaml:"password"`
	Timeout  float64 `yaml:"timeout_s"`
}

type SyncConfig struct {
	PollInterval    float64 `yaml:"poll_interval_s"`
	WriteAttempts   int     `yaml:"write_attempts"`
	WriteRetryDelay int     `yaml:"write_retry_delay_ms"`
}

type MQTTConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	TLS             bool   `yaml:"tls"`
	ClientID        string `yaml:"client_id"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	QoS             int    `yaml:"qos"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden. Device ID and host have no default.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Port:     DefaultDevicePort,
			Password: DefaultDevicePassword,
			Timeout:  DefaultDeviceTimeout,
		},
		Sync: SyncConfig{
			PollInterval:    DefaultPollInterval,
			WriteAttempts:   DefaultWriteAttempts,
			WriteRetryDelay: DefaultWriteRetryDelay,
		},
		MQTT: MQTTConfig{
			Host:            DefaultMQTTHost,
			Port:            DefaultMQTTPort,
			DiscoveryPrefix: DefaultDiscoveryPrefix,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load builds the configuration. path may be empty, in which case only defaults and the environment are used.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if cfg.MQTT.ClientID == "" && cfg.Device.ID != "" {
		cfg.MQTT.ClientID = "vents2mqtt-" + cfg.Device.ID
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides settings from the environment. Empty variables are ignored.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	env := envReader{lookup: lookup}

	env.setString("VENTS_DEVICE_ID", &c.Device.ID)
	env.setString("VENTS_DEVICE_HOST", &c.Device.Host)
	env.setInt("VENTS_DEVICE_PORT", &c.Device.Port)
	env.setString("VENTS_DEVICE_PASSWORD", &c.Device.Password)
	env.setFloat("VENTS_DEVICE_TIMEOUT_S", &c.Device.Timeout)

	env.setFloat("VENTS_POLL_INTERVAL_S", &c.Sync.PollInterval)
	env.setInt("VENTS_WRITE_RETRIES", &c.Sync.WriteAttempts)
	env.setInt("VENTS_WRITE_RETRY_DELAY_MS", &c.Sync.WriteRetryDelay)

	env.setString("MQTT_HOST", &c.MQTT.Host)
	env.setInt("MQTT_PORT", &c.MQTT.Port)
	env.setString("MQTT_USER", &c.MQTT.Username)
	env.setString("MQTT_PASSWORD", &c.MQTT.Password)
	env.setBool("MQTT_TLS", &c.MQTT.TLS)
	env.setString("MQTT_CLIENT_ID", &c.MQTT.ClientID)
	env.setString("MQTT_DISCOVERY_PREFIX", &c.MQTT.DiscoveryPrefix)
	env.setInt("MQTT_QOS", &c.MQTT.QoS)

	env.setString("LOG_LEVEL", &c.Logging.Level)
	env.setString("LOG_FORMAT", &c.Logging.Format)

	return errors.Join(env.errs...)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)

	return v, ok && v != ""
}

func (r *envReader) setString(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) setInt(key string, dst *int) {
	v, ok := r.get(key)
	if !ok {
		return
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidValue, key, v))
		return
	}

	*dst = n
}

func (r *envReader) setFloat(key string, dst *float64) {
	v, ok := r.get(key)
	if !ok {
		return
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidValue, key, v))
		return
	}

	*dst = f
}

func (r *envReader) setBool(key string, dst *bool) {
	v, ok := r.get(key)
	if !ok {
		return
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidValue, key, v))
		return
	}

	*dst = b
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Device.ID == "" {
		errs = append(errs, fmt.Errorf("%w: device.id (VENTS_DEVICE_ID)", ErrMissingValue))
	}

	if c.Device.Host == "" {
		errs = append(errs, fmt.Errorf("%w: device.host (VENTS_DEVICE_HOST)", ErrMissingValue))
	}

	if c.MQTT.Host == "" {
		errs = append(errs, fmt.Errorf("%w: mqtt.host (MQTT_HOST)", ErrMissingValue))
	}

	if len(c.Device.ID) > 16 {
		errs = append(errs, fmt.Errorf("%w: device.id must be at most 16 characters", ErrInvalidValue))
	}

	if len(c.Device.Password) > 255 {
		errs = append(errs, fmt.Errorf("%w: device.password must be at most 255 characters", ErrInvalidValue))
	}

	for name, port := range map[string]int{"device.port": c.Device.Port, "mqtt.port": c.MQTT.Port} {
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("%w: %s must be between 1 and 65535", ErrInvalidValue, name))
		}
	}

	if c.Device.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: device.timeout_s must be positive", ErrInvalidValue))
	}

	if c.Sync.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: sync.poll_interval_s must be positive", ErrInvalidValue))
	}

	if c.Sync.WriteAttempts < 1 {
		errs = append(errs, fmt.Errorf("%w: sync.write_attempts must be at least 1", ErrInvalidValue))
	}

	if c.Sync.WriteRetryDelay < 0 {
		errs = append(errs, fmt.Errorf("%w: sync.write_retry_delay_ms must not be negative", ErrInvalidValue))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("%w: mqtt.qos must be 0, 1, or 2", ErrInvalidValue))
	}

	return errors.Join(errs...)
}

func (c *Config) DeviceTimeout() time.Duration {
	return seconds(c.Device.Timeout)
}

func (c *Config) PollInterval() time.Duration {
	return seconds(c.Sync.PollInterval)
}

func (c *Config) WriteRetryDelay() time.Duration {
	return time.Duration(c.Sync.WriteRetryDelay) * time.Millisecond
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

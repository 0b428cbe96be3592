package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load("", env(map[string]string{
		"VENTS_DEVICE_ID":   "0123456789abcdef",
		"VENTS_DEVICE_HOST": "192.168.1.50",
	}))
	require.NoError(t, err)

	assert.Equal(t, DefaultDevicePort, cfg.Device.Port)
	assert.Equal(t, DefaultDevicePassword, cfg.Device.Password)
	assert.Equal(t, 3500*time.Millisecond, cfg.DeviceTimeout())
	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, DefaultWriteAttempts, cfg.Sync.WriteAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.WriteRetryDelay())
	assert.Equal(t, "127.0.0.1", cfg.MQTT.Host)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, "homeassistant", cfg.MQTT.DiscoveryPrefix)
	assert.Equal(t, "vents2mqtt-0123456789abcdef", cfg.MQTT.ClientID)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
device:
  id: "abc"
  host: "ahu.local"
  password: "secret"
sync:
  poll_interval_s: 2.5
  write_attempts: 5
mqtt:
  host: "broker"
  port: 8883
  tls: true
  client_id: "custom"
  qos: 1
logging:
  format: json
`)

	cfg, err := load(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Device.ID)
	assert.Equal(t, "ahu.local", cfg.Device.Host)
	assert.Equal(t, "secret", cfg.Device.Password)
	assert.Equal(t, DefaultDevicePort, cfg.Device.Port, "unset keys keep their defaults")
	assert.Equal(t, 2500*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 5, cfg.Sync.WriteAttempts)
	assert.True(t, cfg.MQTT.TLS)
	assert.Equal(t, "custom", cfg.MQTT.ClientID)
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, `
device:
  id: "abc"
  host: "ahu.local"
mqtt:
  host: "broker"
`)

	cfg, err := load(path, env(map[string]string{
		"VENTS_DEVICE_HOST":          "10.0.0.2",
		"VENTS_DEVICE_PORT":          "4001",
		"VENTS_DEVICE_TIMEOUT_S":     "1",
		"VENTS_POLL_INTERVAL_S":      "0.5",
		"VENTS_WRITE_RETRIES":        "1",
		"VENTS_WRITE_RETRY_DELAY_MS": "0",
		"MQTT_HOST":                  "mosquitto",
		"MQTT_USER":                  "user",
		"MQTT_PASSWORD":              "pass",
		"MQTT_TLS":                   "true",
		"MQTT_DISCOVERY_PREFIX":      "ha",
		"LOG_LEVEL":                  "debug",
		"MQTT_PORT":                  "  ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Device.ID)
	assert.Equal(t, "10.0.0.2", cfg.Device.Host)
	assert.Equal(t, 4001, cfg.Device.Port)
	assert.Equal(t, time.Second, cfg.DeviceTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 1, cfg.Sync.WriteAttempts)
	assert.Zero(t, cfg.WriteRetryDelay())
	assert.Equal(t, "mosquitto", cfg.MQTT.Host)
	assert.Equal(t, 1883, cfg.MQTT.Port, "blank variables are ignored")
	assert.Equal(t, "user", cfg.MQTT.Username)
	assert.Equal(t, "pass", cfg.MQTT.Password)
	assert.True(t, cfg.MQTT.TLS)
	assert.Equal(t, "ha", cfg.MQTT.DiscoveryPrefix)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadErrors(t *testing.T) {
	t.Run("Missing File", func(t *testing.T) {
		_, err := load("/nonexistent/path/config.yaml", env(nil))
		require.Error(t, err)
	})

	t.Run("Bad YAML", func(t *testing.T) {
		_, err := load(writeFile(t, "device: ["), env(nil))
		require.Error(t, err)
	})

	t.Run("Missing Device", func(t *testing.T) {
		_, err := load("", env(nil))
		require.ErrorIs(t, err, ErrMissingValue)
		assert.Contains(t, err.Error(), "VENTS_DEVICE_ID")
		assert.Contains(t, err.Error(), "VENTS_DEVICE_HOST")
	})

	t.Run("Unparsable Environment", func(t *testing.T) {
		_, err := load("", env(map[string]string{
			"VENTS_DEVICE_ID":   "abc",
			"VENTS_DEVICE_HOST": "ahu",
			"MQTT_PORT":         "mqtt",
			"MQTT_TLS":          "sometimes",
		}))
		require.ErrorIs(t, err, ErrInvalidValue)
		assert.Contains(t, err.Error(), "MQTT_PORT")
		assert.Contains(t, err.Error(), "MQTT_TLS")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Device.ID = "abc"
		cfg.Device.Host = "ahu"
		return cfg
	}

	require.NoError(t, valid().Validate())

	for _, tt := range []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "Long Device ID", mutate: func(c *Config) { c.Device.ID = "0123456789abcdefX" }},
		{name: "Device Port", mutate: func(c *Config) { c.Device.Port = 0 }},
		{name: "MQTT Port", mutate: func(c *Config) { c.MQTT.Port = 70000 }},
		{name: "Timeout", mutate: func(c *Config) { c.Device.Timeout = 0 }},
		{name: "Poll Interval", mutate: func(c *Config) { c.Sync.PollInterval = -1 }},
		{name: "Write Attempts", mutate: func(c *Config) { c.Sync.WriteAttempts = 0 }},
		{name: "Retry Delay", mutate: func(c *Config) { c.Sync.WriteRetryDelay = -5 }},
		{name: "QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			require.ErrorIs(t, cfg.Validate(), ErrInvalidValue)
		})
	}
}

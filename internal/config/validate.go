// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DeviceNameMaxChars keeps topic + payload inside a one-byte MQTT
	// remaining length.
	DeviceNameMaxChars = 32

	// ClientIDMaxChars keeps CONNECT inside a one-byte remaining length.
	ClientIDMaxChars = 64
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}

	// ------------------------------------------------------------
	// DEVICE NAME / TOPIC
	// ------------------------------------------------------------

	if len(cfg.DeviceName) > DeviceNameMaxChars {
		return fmt.Errorf("device_name: at most %d characters", DeviceNameMaxChars)
	}
	for i := 0; i < len(cfg.DeviceName); i++ {
		if cfg.DeviceName[i] > 0x7F {
			return fmt.Errorf("device_name %q: must contain ASCII characters only", cfg.DeviceName)
		}
	}
	if strings.ContainsAny(cfg.DeviceName, "/+#") {
		return fmt.Errorf("device_name %q: must not contain '/', '+' or '#'", cfg.DeviceName)
	}

	// ------------------------------------------------------------
	// MQTT
	// ------------------------------------------------------------

	if cfg.MQTT.Address == "" {
		return errors.New("mqtt.address: required")
	}
	if len(cfg.MQTT.ClientID) > ClientIDMaxChars {
		return fmt.Errorf("mqtt.client_id: at most %d characters", ClientIDMaxChars)
	}
	if cfg.MQTT.KeepAliveS < 0 || cfg.MQTT.KeepAliveS > 0xFFFF {
		return fmt.Errorf("mqtt.keepalive_s: %d out of range", cfg.MQTT.KeepAliveS)
	}
	if cfg.MQTT.ConnectAttempts < 0 {
		return fmt.Errorf("mqtt.connect_attempts: %d must be >= 0", cfg.MQTT.ConnectAttempts)
	}
	for name, v := range map[string]int{
		"mqtt.dial_timeout_ms":        cfg.MQTT.DialTimeoutMs,
		"mqtt.read_timeout_ms":        cfg.MQTT.ReadTimeoutMs,
		"mqtt.write_timeout_ms":       cfg.MQTT.WriteTimeoutMs,
		"mqtt.reconnect_interval_ms":  cfg.MQTT.ReconnectIntervalMs,
		"mqtt.stall_timeout_ms":       cfg.MQTT.StallTimeoutMs,
		"poller.interval_ms":          cfg.Poller.IntervalMs,
		"poller.response_timeout_ms":  cfg.Poller.ResponseTimeoutMs,
		"poller.tick_ms":              cfg.Poller.TickMs,
		"sniffer.publish_interval_ms": cfg.Sniffer.PublishIntervalMs,
		"http.read_timeout_ms":        cfg.HTTP.ReadTimeoutMs,
		"http.write_timeout_ms":       cfg.HTTP.WriteTimeoutMs,
		"status.stale_after_ms":       cfg.Status.StaleAfterMs,
	} {
		if v < 0 {
			return fmt.Errorf("%s: %d must be >= 0", name, v)
		}
	}

	// ------------------------------------------------------------
	// ACQUISITION LINES
	// ------------------------------------------------------------

	if !cfg.Sniffer.Enabled && !cfg.Poller.Enabled {
		return errors.New("at least one of sniffer or poller must be enabled")
	}

	if cfg.Sniffer.Enabled {
		if err := validateSerial("sniffer.serial", cfg.Sniffer.Serial); err != nil {
			return err
		}
	}

	if cfg.Poller.Enabled {
		if err := validateSerial("poller.serial", cfg.Poller.Serial); err != nil {
			return err
		}
		if cfg.Poller.Address > 247 {
			return fmt.Errorf("poller.address: %d out of range 1-247", cfg.Poller.Address)
		}
	}

	// one UART per line: the poller transmits, the sniffer must not
	if cfg.Sniffer.Enabled && cfg.Poller.Enabled &&
		cfg.Sniffer.Serial.Device == cfg.Poller.Serial.Device {
		return fmt.Errorf(
			"serial device collision: %s used by both sniffer and poller",
			cfg.Sniffer.Serial.Device,
		)
	}

	if cfg.HTTP.Addr != "" && cfg.HTTP.Key == "" {
		return errors.New("http.key: required when http.addr is set")
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format: %q must be json or console", cfg.Logging.Format)
	}

	return nil
}

func validateSerial(name string, s SerialConfig) error {
	if s.Device == "" {
		return fmt.Errorf("%s.device: required", name)
	}
	if s.BaudRate < 0 {
		return fmt.Errorf("%s.baud_rate: %d must be >= 0", name, s.BaudRate)
	}
	switch s.DataBits {
	case 0, 5, 6, 7, 8:
	default:
		return fmt.Errorf("%s.data_bits: %d must be 5-8", name, s.DataBits)
	}
	switch s.StopBits {
	case 0, 1, 2:
	default:
		return fmt.Errorf("%s.stop_bits: %d must be 1 or 2", name, s.StopBits)
	}
	switch strings.ToUpper(s.Parity) {
	case "", "N", "E", "O":
	default:
		return fmt.Errorf("%s.parity: %q must be N, E or O", name, s.Parity)
	}
	if s.ReadTimeoutMs < 0 {
		return fmt.Errorf("%s.read_timeout_ms: %d must be >= 0", name, s.ReadTimeoutMs)
	}
	return nil
}

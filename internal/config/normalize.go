// internal/config/normalize.go
package config

import (
	"strings"

	"github.com/google/uuid"
)

// Defaults.
const (
	DefaultDeviceName = "modbus2mqtt"

	DefaultKeepAliveS          = 60
	DefaultConnectAttempts     = 3
	DefaultDialTimeoutMs       = 3000
	DefaultReadTimeoutMs       = 500
	DefaultWriteTimeoutMs      = 1000
	DefaultReconnectIntervalMs = 3000
	DefaultStallTimeoutMs      = 30000

	DefaultBaudRate          = 9600
	DefaultSerialReadTimeout = 100

	DefaultSDM120CTAddress   = 1
	DefaultPollIntervalMs    = 30000
	DefaultResponseTimeoutMs = 1000
	DefaultTickMs            = 100

	DefaultStaleAfterMs = 120000
)

// ClientIDAuto asks for a random client identifier.
const ClientIDAuto = "auto"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.DeviceName == "" {
		cfg.DeviceName = DefaultDeviceName
	}

	// ------------------------------------------------------------
	// MQTT
	// ------------------------------------------------------------

	m := &cfg.MQTT
	if strings.EqualFold(m.ClientID, ClientIDAuto) {
		m.ClientID = cfg.DeviceName + "-" + uuid.NewString()[:8]
	}
	setDefault(&m.KeepAliveS, DefaultKeepAliveS)
	setDefault(&m.ConnectAttempts, DefaultConnectAttempts)
	setDefault(&m.DialTimeoutMs, DefaultDialTimeoutMs)
	setDefault(&m.ReadTimeoutMs, DefaultReadTimeoutMs)
	setDefault(&m.WriteTimeoutMs, DefaultWriteTimeoutMs)
	setDefault(&m.ReconnectIntervalMs, DefaultReconnectIntervalMs)
	setDefault(&m.StallTimeoutMs, DefaultStallTimeoutMs)

	// ------------------------------------------------------------
	// SERIAL LINES
	// ------------------------------------------------------------

	normalizeSerial(&cfg.Sniffer.Serial)
	normalizeSerial(&cfg.Poller.Serial)

	p := &cfg.Poller
	if p.Address == 0 {
		p.Address = DefaultSDM120CTAddress
	}
	setDefault(&p.IntervalMs, DefaultPollIntervalMs)
	setDefault(&p.ResponseTimeoutMs, DefaultResponseTimeoutMs)
	setDefault(&p.TickMs, DefaultTickMs)

	// without a poller there is no data cycle to ride on
	if cfg.Sniffer.Enabled && !p.Enabled {
		setDefault(&cfg.Sniffer.PublishIntervalMs, DefaultPollIntervalMs)
	}

	// ------------------------------------------------------------
	// LOGGING / STATUS
	// ------------------------------------------------------------

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	setDefault(&cfg.Status.StaleAfterMs, DefaultStaleAfterMs)
}

func normalizeSerial(s *SerialConfig) {
	setDefault(&s.BaudRate, DefaultBaudRate)
	setDefault(&s.DataBits, 8)
	setDefault(&s.StopBits, 1)
	setDefault(&s.ReadTimeoutMs, DefaultSerialReadTimeout)
	if s.Parity == "" {
		s.Parity = "N"
	}
	s.Parity = strings.ToUpper(s.Parity)
}

func setDefault(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

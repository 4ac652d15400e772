// internal/config/config.go
package config

type Config struct {
	// DeviceName prefixes the MQTT topic: "<device_name>/set".
	DeviceName string `yaml:"device_name"`

	MQTT    MQTTConfig    `yaml:"mqtt"`
	Sniffer SnifferConfig `yaml:"sniffer"`
	Poller  PollerConfig  `yaml:"poller"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
	Status  StatusConfig  `yaml:"status"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Address  string `yaml:"address"`
	ClientID string `yaml:"client_id"` // "auto" => random uuid

	KeepAliveS      int  `yaml:"keepalive_s"`
	SelfSubscribe   bool `yaml:"self_subscribe"`
	ConnectAttempts int  `yaml:"connect_attempts"`

	DialTimeoutMs       int `yaml:"dial_timeout_ms"`
	ReadTimeoutMs       int `yaml:"read_timeout_ms"`
	WriteTimeoutMs      int `yaml:"write_timeout_ms"`
	ReconnectIntervalMs int `yaml:"reconnect_interval_ms"`
	StallTimeoutMs      int `yaml:"stall_timeout_ms"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Device        string `yaml:"device"`
	BaudRate      int    `yaml:"baud_rate"`
	DataBits      int    `yaml:"data_bits"`
	StopBits      int    `yaml:"stop_bits"`
	Parity        string `yaml:"parity"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// ---- ACQUISITION ----

// SnifferConfig is the passively observed DDSU666-H line.
type SnifferConfig struct {
	Enabled bool         `yaml:"enabled"`
	Serial  SerialConfig `yaml:"serial"`

	// PublishIntervalMs publishes the sniffed reading on its own
	// schedule. 0 publishes it with every poller data cycle only.
	PublishIntervalMs int `yaml:"publish_interval_ms"`
}

// PollerConfig is the actively queried SDM120CT line.
type PollerConfig struct {
	Enabled bool         `yaml:"enabled"`
	Serial  SerialConfig `yaml:"serial"`

	Address           uint8 `yaml:"address"`
	IntervalMs        int   `yaml:"interval_ms"`
	ResponseTimeoutMs int   `yaml:"response_timeout_ms"`
	TickMs            int   `yaml:"tick_ms"`
	SkipInfo          bool  `yaml:"skip_info"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Addr           string `yaml:"addr"` // empty disables the server
	Key            string `yaml:"key"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs int    `yaml:"write_timeout_ms"`
}

// ---- LOGGING ----

type LoggingConfig struct {
	Level  string        `yaml:"level"`
	Format string        `yaml:"format"` // json | console
	File   LogFileConfig `yaml:"file"`
}

type LogFileConfig struct {
	Filename   string `yaml:"filename"` // empty => stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ---- STATUS ----

type StatusConfig struct {
	// StaleAfterMs marks a meter stale when it has not updated for this long.
	StaleAfterMs int `yaml:"stale_after_ms"`
}

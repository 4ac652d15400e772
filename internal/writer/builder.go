// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	"go.uber.org/zap"

	cfg "github.com/tamzrod/modbus2mqtt/internal/config"
	"github.com/tamzrod/modbus2mqtt/internal/metrics"
	"github.com/tamzrod/modbus2mqtt/internal/mqtt"
	"github.com/tamzrod/modbus2mqtt/internal/transport"
)

// TopicSuffix is appended to the device name to form the publish topic.
const TopicSuffix = "/set"

// Topic returns the single publish topic of a device.
func Topic(deviceName string) string {
	return deviceName + TopicSuffix
}

// Link is the broker side of the bridge: the TCP stream, the session
// driving it, and how to pace it.
type Link struct {
	TCP     *transport.TCPClient
	Session *mqtt.Session
	Run     mqtt.RunConfig
}

// BuildLink converts the mqtt config section into a ready session.
// Assumes config has already passed Validate and Normalize.
func BuildLink(c cfg.Config, log *zap.Logger, m *metrics.AppMetrics) (*Link, error) {
	if c.MQTT.Address == "" {
		return nil, errors.New("writer: mqtt.address required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	tcp := transport.NewTCPClient(transport.TCPConfig{
		Address:      c.MQTT.Address,
		DialTimeout:  ms(c.MQTT.DialTimeoutMs),
		ReadTimeout:  ms(c.MQTT.ReadTimeoutMs),
		WriteTimeout: ms(c.MQTT.WriteTimeoutMs),
	})

	announcer := NewAnnouncer(tcp)

	s, err := mqtt.NewSession(tcp, mqtt.Options{
		ClientID:        c.MQTT.ClientID,
		Topic:           Topic(c.DeviceName),
		KeepAlive:       time.Duration(c.MQTT.KeepAliveS) * time.Second,
		SelfSubscribe:   c.MQTT.SelfSubscribe,
		ConnectAttempts: c.MQTT.ConnectAttempts,
		Announce:        announcer.Announce,
	}, log, m)
	if err != nil {
		return nil, err
	}

	return &Link{
		TCP:     tcp,
		Session: s,
		Run: mqtt.RunConfig{
			ReconnectInterval: ms(c.MQTT.ReconnectIntervalMs),
			StallTimeout:      ms(c.MQTT.StallTimeoutMs),
		},
	}, nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

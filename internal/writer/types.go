// internal/writer/types.go
package writer

import "github.com/tamzrod/modbus2mqtt/internal/meter"

// Publisher delivers one payload to the broker topic.
type Publisher interface {
	Publish(payload []byte) error
}

// Writer publishes the current reading of each device, one message per device.
type Writer interface {
	Write(devices ...*meter.Device) error
}

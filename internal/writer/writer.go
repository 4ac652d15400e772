// internal/writer/writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus2mqtt/internal/meter"
)

type writerImpl struct {
	pub Publisher
	log *zap.Logger
}

func New(pub Publisher, log *zap.Logger) Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &writerImpl{
		pub: pub,
		log: log,
	}
}

// Write publishes devices in order. Nil devices and devices that never
// produced a value are skipped. Every device is attempted; failures are
// joined into one error.
func (w *writerImpl) Write(devices ...*meter.Device) error {
	var errs []string

	for _, d := range devices {
		if d == nil {
			continue
		}

		r := d.Reading()
		if r.At.IsZero() {
			w.log.Debug("no reading yet", zap.String("device", r.Device))
			continue
		}

		payload, err := meter.Payload(r)
		if err != nil {
			errs = append(errs, fmt.Sprintf("writer: device=%s err=%v", r.Device, err))
			continue
		}

		if err := w.pub.Publish(payload); err != nil {
			errs = append(errs, fmt.Sprintf("writer: publish device=%s err=%v", r.Device, err))
			continue
		}
		w.log.Debug("published", zap.String("device", r.Device), zap.ByteString("payload", payload))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}

	return nil
}

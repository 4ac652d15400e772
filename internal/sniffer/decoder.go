// internal/sniffer/decoder.go
package sniffer

import (
	"errors"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus2mqtt/internal/meter"
	"github.com/tamzrod/modbus2mqtt/internal/metrics"
	"github.com/tamzrod/modbus2mqtt/internal/rtu"
)

// Decoder turns observed bus traffic into device readings.
// Requests only give context; response values are looked up in the
// register map and stored on the device. Unknown registers are ignored.
type Decoder struct {
	scanner *rtu.Scanner
	points  map[uint16]meter.Point
	device  *meter.Device

	log     *zap.Logger
	metrics *metrics.AppMetrics
}

// NewDDSU666H returns a decoder for the DDSU666-H register map.
func NewDDSU666H(dev *meter.Device, log *zap.Logger, m *metrics.AppMetrics) *Decoder {
	return New(
		rtu.NewScanner(meter.DDSU666HAddress, rtu.FuncReadHoldingRegisters, meter.DDSU666HRequestRanges...),
		meter.DDSU666HMap(),
		dev, log, m,
	)
}

func New(s *rtu.Scanner, points map[uint16]meter.Point, dev *meter.Device, log *zap.Logger, m *metrics.AppMetrics) *Decoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{
		scanner: s,
		points:  points,
		device:  dev,
		log:     log,
		metrics: m,
	}
}

// Process decodes every complete frame in buf and returns how many
// bytes were used. The rest is a partial frame to retry once more
// bytes arrive.
func (d *Decoder) Process(buf []byte) int {
	off := 0
	for off < len(buf) {
		f, n := d.scanner.Scan(buf, off)
		if n == 0 {
			if errors.Is(f.Err, rtu.ErrNotFound) {
				// no slave address left, nothing worth keeping
				off = len(buf)
			}
			break
		}
		off += n

		switch f.Kind {
		case rtu.Request:
			d.metrics.Frame(d.device.Name(), f.Kind.String())
			d.log.Debug("request",
				zap.Uint16("register", f.Register),
				zap.Uint16("count", f.Count),
			)
		case rtu.Response:
			d.metrics.Frame(d.device.Name(), f.Kind.String())
			d.dispatch(f)
		default:
			d.metrics.FramingError(d.device.Name(), rtu.Reason(f.Err))
		}
	}
	return off
}

func (d *Decoder) dispatch(f rtu.Frame) {
	for _, v := range f.Values {
		p, ok := d.points[v.Register]
		if !ok {
			continue
		}
		p.Apply(d.device, v)
		d.log.Debug("value",
			zap.Uint16("register", v.Register),
			zap.Stringer("field", p.Field),
			zap.Float32("value", d.device.Get(p.Field)),
		)
	}
}

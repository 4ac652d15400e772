// internal/poller/builder.go
package poller

import (
	"io"
	"time"

	"go.uber.org/zap"

	cfg "github.com/tamzrod/modbus2mqtt/internal/config"
	"github.com/tamzrod/modbus2mqtt/internal/meter"
	"github.com/tamzrod/modbus2mqtt/internal/metrics"
	"github.com/tamzrod/modbus2mqtt/internal/rtu"
)

// Build constructs the SDM120CT sequencer storing into dev.
// Queries are written to w; the caller runs it with the matching reader.
func Build(c cfg.PollerConfig, dev *meter.Device, w io.Writer, onCycle CycleFunc, log *zap.Logger, m *metrics.AppMetrics) (*Sequencer, error) {
	var info []Query
	if !c.SkipInfo {
		info = InfoPlan(dev, meter.SDM120CTInfo)
	}

	return New(
		Config{
			Device:   dev.Name(),
			Slave:    c.Address,
			Interval: time.Duration(c.IntervalMs) * time.Millisecond,
			Timeout:  time.Duration(c.ResponseTimeoutMs) * time.Millisecond,
			Info:     info,
			Data:     DataPlan(dev, meter.SDM120CTData),
		},
		w, onCycle, log, m,
	)
}

// DataPlan binds float points to dev.
func DataPlan(dev *meter.Device, points []meter.Point) []Query {
	out := make([]Query, 0, len(points))
	for _, p := range points {
		out = append(out, Query{
			Register: p.Register,
			Apply:    func(v rtu.Value) { p.Apply(dev, v) },
		})
	}
	return out
}

// InfoPlan binds identification points to dev.
func InfoPlan(dev *meter.Device, points []meter.InfoPoint) []Query {
	out := make([]Query, 0, len(points))
	for _, p := range points {
		out = append(out, Query{
			Register: p.Register,
			Apply:    func(v rtu.Value) { p.Apply(dev, v) },
		})
	}
	return out
}

// internal/status/snapshot.go
package status

import (
	"time"

	"github.com/tamzrod/modbus2mqtt/internal/meter"
)

// Snapshot is the health of one meter at one instant.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Device     string
	Health     uint16
	AgeSeconds uint16
	Info       *meter.Info
}

// Evaluate derives the snapshot of d at now.
// A nil d reports HealthDisabled under name.
func Evaluate(name string, d *meter.Device, staleAfter time.Duration, now time.Time) Snapshot {
	if d == nil {
		return Snapshot{Device: name, Health: HealthDisabled}
	}

	s := Snapshot{Device: d.Name(), Health: HealthUnknown}
	if info, ok := d.Info(); ok {
		s.Info = &info
	}

	at := d.UpdatedAt()
	if at.IsZero() {
		return s
	}

	age := now.Sub(at)
	if age < 0 {
		age = 0
	}
	secs := int64(age / time.Second)
	if secs > MaxAgeSeconds {
		secs = MaxAgeSeconds
	}
	s.AgeSeconds = uint16(secs)

	if staleAfter > 0 && age > staleAfter {
		s.Health = HealthStale
	} else {
		s.Health = HealthOK
	}
	return s
}

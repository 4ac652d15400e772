// internal/meter/device.go
package meter

import (
	"math"
	"sync/atomic"
	"time"
)

// Field names one live measurement of a meter.
type Field int

const (
	Voltage Field = iota
	Current
	ActivePower
	ReactivePower
	ApparentPower
	PowerFactor
	Frequency
	ImportActiveEnergy
	ExportActiveEnergy
	TotalActiveEnergy

	numFields
)

var fieldNames = [numFields]string{
	"voltage",
	"current",
	"active_power",
	"reactive_power",
	"apparent_power",
	"power_factor",
	"frequency",
	"import_active_energy",
	"export_active_energy",
	"total_active_energy",
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return "unknown"
	}
	return fieldNames[f]
}

// Info is the identification block of a polled meter.
type Info struct {
	MeterID         float32 `json:"meter_id"`
	BaudRate        float32 `json:"baud_rate"`
	SerialNumber    uint32  `json:"serial_number"`
	MeterCode       uint16  `json:"meter_code"`
	SoftwareVersion uint16  `json:"software_version"`
}

// Device holds the latest readings of one meter.
//
// Each field is stored as float32 bits in a word-sized atomic, so one
// acquisition goroutine can write while others read without a lock.
// Last value wins; readers may see fields from different frames.
type Device struct {
	name string

	values  [numFields]atomic.Uint32
	updated atomic.Int64 // unix nanos, 0 = never
	info    atomic.Pointer[Info]
}

// NewDevice returns an empty device named name.
func NewDevice(name string) *Device {
	return &Device{name: name}
}

func (d *Device) Name() string { return d.name }

// Set stores v for field f.
func (d *Device) Set(f Field, v float32) {
	if f < 0 || f >= numFields {
		return
	}
	d.values[f].Store(math.Float32bits(v))
	d.updated.Store(time.Now().UnixNano())
}

// Get returns the last value stored for f.
func (d *Device) Get(f Field) float32 {
	if f < 0 || f >= numFields {
		return 0
	}
	return math.Float32frombits(d.values[f].Load())
}

// UpdatedAt returns the time of the last Set, zero if never.
func (d *Device) UpdatedAt() time.Time {
	ns := d.updated.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// SetInfo replaces the identification block.
func (d *Device) SetInfo(i Info) {
	d.info.Store(&i)
}

// Info returns the identification block, if one was read.
func (d *Device) Info() (Info, bool) {
	p := d.info.Load()
	if p == nil {
		return Info{}, false
	}
	return *p, true
}

// Reading is a point-in-time copy of a device.
type Reading struct {
	Device string
	Values [numFields]float32
	At     time.Time
}

func (r Reading) Get(f Field) float32 {
	if f < 0 || f >= numFields {
		return 0
	}
	return r.Values[f]
}

// Reading copies every field.
func (d *Device) Reading() Reading {
	r := Reading{Device: d.name, At: d.UpdatedAt()}
	for i := range r.Values {
		r.Values[i] = math.Float32frombits(d.values[i].Load())
	}
	return r
}

// internal/meter/registers.go
package meter

import "github.com/tamzrod/modbus2mqtt/internal/rtu"

// Device tags used in payloads.
const (
	DDSU666H = "DDSU666H"
	SDM120CT = "SDM120CT"
)

// Point maps one register pair to a field.
type Point struct {
	Register uint16
	Field    Field
	Scale    float32 // 0 means 1
}

// Apply decodes v as a float and stores it on d.
func (p Point) Apply(d *Device, v rtu.Value) {
	x := v.Float()
	if p.Scale != 0 {
		x *= p.Scale
	}
	d.Set(p.Field, x)
}

// ---- DDSU666-H (sniffed) ----

const (
	DDSU666HAddress uint8 = 0x0B

	ddsuLive   uint16 = 0x2000
	ddsuEnergy uint16 = 0x4000
)

// DDSU666HRequestRanges are the register ranges the inverter queries.
var DDSU666HRequestRanges = []rtu.Range{
	{Lo: 0x2000, Hi: 0x20FF},
	{Lo: 0x4000, Hi: 0x400F},
}

type sniffEntry struct {
	base   uint16
	offset uint16
	point  Point
}

// power registers are kW/kvar/kVA on the wire
var ddsuTable = []sniffEntry{
	{ddsuLive, 0x00, Point{Field: Voltage}},
	{ddsuLive, 0x02, Point{Field: Current}},
	{ddsuLive, 0x06, Point{Field: ActivePower, Scale: 1000}},
	{ddsuLive, 0x0C, Point{Field: ReactivePower, Scale: 1000}},
	{ddsuLive, 0x12, Point{Field: ApparentPower, Scale: 1000}},
	{ddsuLive, 0x18, Point{Field: PowerFactor}}, // unscaled, 0..1
	{ddsuLive, 0x20, Point{Field: Frequency}},
	{ddsuEnergy, 0x00, Point{Field: TotalActiveEnergy}},
	{ddsuEnergy, 0x0A, Point{Field: ExportActiveEnergy}},
	{ddsuEnergy, 0x14, Point{Field: ImportActiveEnergy}},
}

// DDSU666HMap returns the sniffed register map keyed by absolute register.
func DDSU666HMap() map[uint16]Point {
	m := make(map[uint16]Point, len(ddsuTable))
	for _, e := range ddsuTable {
		p := e.point
		p.Register = e.base + e.offset
		m[p.Register] = p
	}
	return m
}

// ---- SDM120CT (polled) ----

const SDM120CTAddress uint8 = 0x01

// SDM120CTData is the live-measurement plan, read with FC 0x04.
var SDM120CTData = []Point{
	{Register: 0x0000, Field: Voltage},
	{Register: 0x0006, Field: Current},
	{Register: 0x000C, Field: ActivePower},
	{Register: 0x0012, Field: ApparentPower},
	{Register: 0x0018, Field: ReactivePower},
	{Register: 0x001E, Field: PowerFactor},
	{Register: 0x0046, Field: Frequency},
	{Register: 0x0048, Field: ImportActiveEnergy},
	{Register: 0x004A, Field: ExportActiveEnergy},
	{Register: 0x0156, Field: TotalActiveEnergy},
}

// InfoField names one identification register.
type InfoField int

const (
	InfoMeterID InfoField = iota
	InfoBaudRate
	InfoSerialNumber
	InfoMeterCode
	InfoSoftwareVersion
)

// InfoPoint maps one holding register pair to an identification field.
type InfoPoint struct {
	Register uint16
	Field    InfoField
}

// SDM120CTInfo is the identification plan, read with FC 0x03.
var SDM120CTInfo = []InfoPoint{
	{Register: 0x0014, Field: InfoMeterID},
	{Register: 0x001C, Field: InfoBaudRate},
	{Register: 0xFC00, Field: InfoSerialNumber},
	{Register: 0xFC02, Field: InfoMeterCode},
	{Register: 0xFC03, Field: InfoSoftwareVersion},
}

// Apply decodes v into the identification block of d.
func (p InfoPoint) Apply(d *Device, v rtu.Value) {
	info, _ := d.Info()
	switch p.Field {
	case InfoMeterID:
		info.MeterID = v.Float()
	case InfoBaudRate:
		info.BaudRate = v.Float()
	case InfoSerialNumber:
		info.SerialNumber = v.Uint32()
	case InfoMeterCode:
		info.MeterCode = v.Uint16()
	case InfoSoftwareVersion:
		info.SoftwareVersion = v.Uint16()
	}
	d.SetInfo(info)
}

// internal/rtu/crc.go
package rtu

import "github.com/sigurn/crc16"

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// CRC16 returns the Modbus CRC of b (poly 0xA001 reflected, init 0xFFFF).
func CRC16(b []byte) uint16 {
	return crc16.Checksum(b, crcTable)
}

// AppendCRC appends the CRC of b to b, low byte first.
func AppendCRC(b []byte) []byte {
	crc := CRC16(b)
	return append(b, byte(crc), byte(crc>>8))
}

// CheckCRC reports whether the last two bytes of frame carry the CRC
// of everything before them.
func CheckCRC(frame []byte) bool {
	n := len(frame)
	if n < 3 {
		return false
	}
	want := uint16(frame[n-1])<<8 | uint16(frame[n-2])
	return CRC16(frame[:n-2]) == want
}

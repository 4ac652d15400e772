// internal/rtu/codec.go
package rtu

import (
	"encoding/binary"
	"math"
)

// Function codes used by the meters.
const (
	FuncReadHoldingRegisters uint8 = 0x03
	FuncReadInputRegisters   uint8 = 0x04
)

// RequestLen is the size of a read query on the wire.
const RequestLen = 8

// DecodeFloat decodes a register pair stored high word first into an
// IEEE-754 single.
//
//	43 68 33 33 -> 232.2
func DecodeFloat(b []byte) float32 {
	return math.Float32frombits(DecodeUint32(b))
}

// DecodeUint32 decodes a register pair, high word first.
func DecodeUint32(b []byte) uint32 {
	hi := uint32(binary.BigEndian.Uint16(b[0:2]))
	lo := uint32(binary.BigEndian.Uint16(b[2:4]))
	return hi<<16 | lo
}

// DecodeUint16 decodes a single register.
func DecodeUint16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b[0:2])
}

// BuildReadRequest builds a read query:
//
//	slave(1) fc(1) register(2) count(2) crc(2)
func BuildReadRequest(slave, fc uint8, register, count uint16) []byte {
	b := make([]byte, 6, RequestLen)
	b[0] = slave
	b[1] = fc
	binary.BigEndian.PutUint16(b[2:4], register)
	binary.BigEndian.PutUint16(b[4:6], count)
	return AppendCRC(b)
}

// internal/rtu/types.go
package rtu

import "errors"

// Framing errors. They are reported on Invalid frames and never fatal.
var (
	ErrNotFound  = errors.New("rtu: slave address not found")
	ErrTruncated = errors.New("rtu: frame truncated")
	ErrFunction  = errors.New("rtu: unexpected function code")
	ErrCRC       = errors.New("rtu: crc mismatch")
)

// Kind classifies a scanned frame.
type Kind uint8

const (
	Invalid Kind = iota
	Request
	Response
)

func (k Kind) String() string {
	switch k {
	case Request:
		return "request"
	case Response:
		return "response"
	default:
		return "invalid"
	}
}

// Value is one register pair carried by a response.
type Value struct {
	Register uint16
	Raw      [4]byte
}

func (v Value) Float() float32 { return DecodeFloat(v.Raw[:]) }
func (v Value) Uint32() uint32 { return DecodeUint32(v.Raw[:]) }
func (v Value) Uint16() uint16 { return DecodeUint16(v.Raw[:]) }

// Frame is the result of one Scan.
//
// Request: Register and Count are the query's start register and register count.
// Response: Register is the base it answers, Count is the byte count.
type Frame struct {
	Kind     Kind
	Function uint8
	Register uint16
	Count    uint16
	Values   []Value

	// Err explains an Invalid frame.
	Err error
}

// Range is an inclusive register range.
type Range struct {
	Lo uint16
	Hi uint16
}

func (r Range) Contains(reg uint16) bool {
	return reg >= r.Lo && reg <= r.Hi
}

// Reason returns a short label for a framing error.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrCRC):
		return "crc"
	case errors.Is(err, ErrFunction):
		return "function"
	case errors.Is(err, ErrTruncated):
		return "truncated"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "other"
	}
}

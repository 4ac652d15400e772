// internal/rtu/scanner.go
package rtu

import (
	"bytes"
	"encoding/binary"
)

// Scanner classifies RTU frames for one slave on a byte stream.
//
// It remembers the register of the last request it saw (or was told to
// expect) and tags the values of the following response with it.
// Not safe for concurrent use.
type Scanner struct {
	Address       uint8
	Function      uint8
	RequestRanges []Range

	base uint16
}

// NewScanner returns a scanner for slave address and function code fc.
// A frame whose register lies in one of ranges is read as a request.
func NewScanner(address, fc uint8, ranges ...Range) *Scanner {
	return &Scanner{
		Address:       address,
		Function:      fc,
		RequestRanges: ranges,
	}
}

// Expect sets the register the next response answers.
func (s *Scanner) Expect(register uint16) { s.base = register }

// SetFunction switches the accepted function code.
func (s *Scanner) SetFunction(fc uint8) { s.Function = fc }

// Base returns the register the next response will be tagged with.
func (s *Scanner) Base() uint16 { return s.base }

// Scan looks for one frame in buf starting at offset.
//
// consumed counts bytes from offset, including any skipped prefix.
// consumed == 0 means nothing more can be decoded until more bytes
// arrive. A frame failing its checks consumes one byte past the
// matched address so the caller resynchronises.
func (s *Scanner) Scan(buf []byte, offset int) (Frame, int) {
	if offset < 0 || offset >= len(buf) {
		return Frame{Kind: Invalid, Err: ErrNotFound}, 0
	}

	skip := bytes.IndexByte(buf[offset:], s.Address)
	if skip < 0 {
		return Frame{Kind: Invalid, Err: ErrNotFound}, 0
	}

	start := offset + skip
	b := buf[start:]

	if len(b) < RequestLen {
		return Frame{Kind: Invalid, Err: ErrTruncated}, 0
	}

	if b[1] != s.Function {
		return Frame{Kind: Invalid, Function: b[1], Err: ErrFunction}, skip + 1
	}

	reg := binary.BigEndian.Uint16(b[2:4])
	if s.isRequest(reg) && CheckCRC(b[:RequestLen]) {
		s.base = reg
		return Frame{
			Kind:     Request,
			Function: b[1],
			Register: reg,
			Count:    binary.BigEndian.Uint16(b[4:6]),
		}, skip + RequestLen
	}

	// response: addr fc count data... crc
	count := int(b[2])
	total := 3 + count + 2
	if len(b) < total {
		return Frame{Kind: Invalid, Err: ErrTruncated}, 0
	}

	if !CheckCRC(b[:total]) {
		return Frame{Kind: Invalid, Function: b[1], Err: ErrCRC}, skip + 1
	}

	values := make([]Value, 0, count/4)
	for i := 0; i+4 <= count; i += 4 {
		var v Value
		v.Register = s.base + uint16(i/2)
		copy(v.Raw[:], b[3+i:3+i+4])
		values = append(values, v)
	}

	return Frame{
		Kind:     Response,
		Function: b[1],
		Register: s.base,
		Count:    uint16(count),
		Values:   values,
	}, skip + total
}

func (s *Scanner) isRequest(reg uint16) bool {
	for _, r := range s.RequestRanges {
		if r.Contains(reg) {
			return true
		}
	}
	return false
}

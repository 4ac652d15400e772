// internal/rtu/scanner_test.go
package rtu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ddsuScanner() *Scanner {
	return NewScanner(0x0B, FuncReadHoldingRegisters,
		Range{Lo: 0x2000, Hi: 0x20FF},
		Range{Lo: 0x4000, Hi: 0x400F},
	)
}

var (
	ddsuRequest  = []byte{0x0B, 0x03, 0x20, 0x06, 0x00, 0x02, 0x2F, 0x60}
	ddsuResponse = []byte{0x0B, 0x03, 0x04, 0x43, 0x68, 0x33, 0x33, 0x90, 0x8E}
)

func TestScan_Request(t *testing.T) {
	s := ddsuScanner()

	f, n := s.Scan(ddsuRequest, 0)
	assert.Equal(t, Request, f.Kind)
	assert.Equal(t, 8, n)
	assert.Equal(t, uint16(0x2006), f.Register)
	assert.Equal(t, uint16(2), f.Count)
	assert.Equal(t, uint16(0x2006), s.Base())
}

func TestScan_RequestThenResponse(t *testing.T) {
	s := ddsuScanner()
	buf := append(append([]byte{}, ddsuRequest...), ddsuResponse...)

	f, n := s.Scan(buf, 0)
	require.Equal(t, Request, f.Kind)

	f, n2 := s.Scan(buf, n)
	require.Equal(t, Response, f.Kind)
	assert.Equal(t, len(ddsuResponse), n2)
	require.Len(t, f.Values, 1)
	assert.Equal(t, uint16(0x2006), f.Values[0].Register)
	assert.InDelta(t, 232.2, f.Values[0].Float(), 1e-4)
}

func TestScan_CapturedExchange(t *testing.T) {
	s := ddsuScanner()
	buf := []byte{
		0x0B, 0x03, 0x20, 0x06, 0x00, 0x02, 0x2F, 0x60,
		0x0B, 0x03, 0x04, 0x3E, 0x66, 0x9A, 0xD4, 0xD7, 0x3B,
	}

	steps := []struct {
		kind     Kind
		consumed int
		register uint16
		values   int
	}{
		{Request, 8, 0x2006, 0},
		{Response, 9, 0x2006, 1},
		{Invalid, 0, 0, 0},
	}

	off := 0
	for i, st := range steps {
		f, n := s.Scan(buf, off)
		assert.Equal(t, st.kind, f.Kind, "step %d", i)
		assert.Equal(t, st.consumed, n, "step %d", i)
		assert.Equal(t, st.register, f.Register, "step %d", i)
		assert.Len(t, f.Values, st.values, "step %d", i)
		if st.kind == Request {
			assert.Equal(t, uint16(2), f.Count)
		}
		if st.values == 1 {
			assert.InDelta(t, 0.2252, f.Values[0].Float(), 1e-6)
		}
		off += n
	}
}

func TestScan_SkippedPrefixCounted(t *testing.T) {
	s := ddsuScanner()
	buf := append([]byte{0xFF, 0x00, 0x55}, ddsuRequest...)

	f, n := s.Scan(buf, 0)
	assert.Equal(t, Request, f.Kind)
	assert.Equal(t, 3+8, n)
}

func TestScan_NoAddress(t *testing.T) {
	s := ddsuScanner()

	f, n := s.Scan([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}, 0)
	assert.Equal(t, Invalid, f.Kind)
	assert.ErrorIs(t, f.Err, ErrNotFound)
	assert.Equal(t, 0, n)
}

func TestScan_ShortBufferWaits(t *testing.T) {
	s := ddsuScanner()

	f, n := s.Scan(ddsuRequest[:7], 0)
	assert.Equal(t, Invalid, f.Kind)
	assert.ErrorIs(t, f.Err, ErrTruncated)
	assert.Equal(t, 0, n)
}

func TestScan_TruncatedResponseWaits(t *testing.T) {
	s := ddsuScanner()

	// byte count 8 needs 13 bytes
	buf := []byte{0x0B, 0x03, 0x08, 0x43, 0x68, 0x33, 0x33, 0x3E, 0x66, 0x9A}
	f, n := s.Scan(buf, 0)
	assert.ErrorIs(t, f.Err, ErrTruncated)
	assert.Equal(t, 0, n)
}

func TestScan_WrongFunctionResyncs(t *testing.T) {
	s := ddsuScanner()
	buf := []byte{0x0B, 0x10, 0x20, 0x06, 0x00, 0x02, 0x00, 0x00, 0x00}

	f, n := s.Scan(buf, 0)
	assert.Equal(t, Invalid, f.Kind)
	assert.ErrorIs(t, f.Err, ErrFunction)
	assert.Equal(t, 1, n)
}

func TestScan_BadCRCResyncs(t *testing.T) {
	s := ddsuScanner()
	buf := append([]byte{0x77}, ddsuResponse...)
	buf[len(buf)-1] ^= 0xFF

	f, n := s.Scan(buf, 0)
	assert.Equal(t, Invalid, f.Kind)
	assert.ErrorIs(t, f.Err, ErrCRC)
	assert.Equal(t, 2, n)
}

func TestScan_ResponseCountInRequestRange(t *testing.T) {
	s := ddsuScanner()
	s.Expect(0x2000)

	// count byte 0x20 makes the first register look like 0x2043
	buf := []byte{
		0x0B, 0x03, 0x20,
		0x43, 0x66, 0x80, 0x00,
		0x3F, 0xC0, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x3E, 0xB0, 0xA3, 0xD7,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x1A, 0x15,
	}

	f, n := s.Scan(buf, 0)
	require.Equal(t, Response, f.Kind)
	assert.Equal(t, len(buf), n)
	require.Len(t, f.Values, 8)
	assert.InDelta(t, 230.5, f.Values[0].Float(), 1e-6)
	assert.Equal(t, uint16(0x2002), f.Values[1].Register)
	assert.InDelta(t, 1.5, f.Values[1].Float(), 1e-6)
	assert.Equal(t, uint16(0x2006), f.Values[3].Register)
	assert.InDelta(t, 0.345, f.Values[3].Float(), 1e-6)
	assert.Equal(t, uint16(0x200E), f.Values[7].Register)
}

func TestScan_ActiveModeExpect(t *testing.T) {
	s := NewScanner(0x01, FuncReadInputRegisters)
	s.Expect(0x0000)

	f, n := s.Scan([]byte{0x01, 0x04, 0x04, 0x43, 0x62, 0x00, 0x00, 0x4F, 0xDE}, 0)
	require.Equal(t, Response, f.Kind)
	assert.Equal(t, 9, n)
	assert.Equal(t, uint16(0x0000), f.Register)
	assert.Equal(t, uint16(4), f.Count)
	assert.InDelta(t, 226.0, f.Values[0].Float(), 1e-6)

	s.Expect(0x0006)
	f, _ = s.Scan([]byte{0x01, 0x04, 0x04, 0x00, 0x00, 0x00, 0x00, 0xFB, 0x84}, 0)
	require.Equal(t, Response, f.Kind)
	assert.Equal(t, uint16(0x0006), f.Values[0].Register)
	assert.Equal(t, float32(0), f.Values[0].Float())
}

func TestScan_SetFunction(t *testing.T) {
	s := NewScanner(0x01, FuncReadInputRegisters)
	resp := []byte{0x01, 0x03, 0x04, 0x43, 0x48, 0x00, 0x00, 0x6F, 0xA1}

	f, _ := s.Scan(resp, 0)
	assert.ErrorIs(t, f.Err, ErrFunction)

	s.SetFunction(FuncReadHoldingRegisters)
	s.Expect(0x0014)
	f, _ = s.Scan(resp, 0)
	require.Equal(t, Response, f.Kind)
	assert.InDelta(t, 200.0, f.Values[0].Float(), 1e-6)
}

func TestScan_OffsetPastEnd(t *testing.T) {
	s := ddsuScanner()
	f, n := s.Scan(ddsuRequest, len(ddsuRequest))
	assert.Equal(t, Invalid, f.Kind)
	assert.Equal(t, 0, n)
}

// internal/sniffer/sniffer_test.go
package sniffer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tamzrod/modbus2mqtt/internal/meter"
	"github.com/tamzrod/modbus2mqtt/internal/metrics"
	"github.com/tamzrod/modbus2mqtt/internal/rtu"
)

// inverter <-> DDSU666-H exchanges
var (
	reqVoltage  = []byte{0x0B, 0x03, 0x20, 0x00, 0x00, 0x02, 0xCF, 0x61}
	respVoltage = []byte{0x0B, 0x03, 0x04, 0x43, 0x68, 0x33, 0x33, 0x90, 0x8E} // 232.2

	reqCurrent  = []byte{0x0B, 0x03, 0x20, 0x02, 0x00, 0x02, 0x6E, 0xA1}
	respCurrent = []byte{0x0B, 0x03, 0x04, 0x3F, 0xC0, 0x00, 0x00, 0x5C, 0x1B} // 1.5

	reqPower  = []byte{0x0B, 0x03, 0x20, 0x06, 0x00, 0x02, 0x2F, 0x60}
	respPower = []byte{0x0B, 0x03, 0x04, 0x3F, 0xA0, 0x00, 0x00, 0x5C, 0x05} // 1.25 kW

	reqImport = []byte{0x0B, 0x03, 0x40, 0x14, 0x00, 0x02, 0x91, 0x65}

	reqPF  = []byte{0x0B, 0x03, 0x20, 0x18, 0x00, 0x02, 0x4F, 0x66}
	respPF = []byte{0x0B, 0x03, 0x04, 0x3F, 0x7A, 0xE1, 0x48, 0x35, 0x98} // 0.98
)

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func newDecoder(t *testing.T) (*Decoder, *meter.Device) {
	dev := meter.NewDevice(meter.DDSU666H)
	return NewDDSU666H(dev, zaptest.NewLogger(t), nil), dev
}

func TestProcess_RequestResponsePairs(t *testing.T) {
	dec, dev := newDecoder(t)

	buf := concat(reqVoltage, respVoltage, reqCurrent, respCurrent, reqPower, respPower, reqImport, respCurrent, reqPF, respPF)
	n := dec.Process(buf)

	assert.Equal(t, len(buf), n)
	assert.InDelta(t, 232.2, dev.Get(meter.Voltage), 1e-4)
	assert.InDelta(t, 1.5, dev.Get(meter.Current), 1e-6)
	assert.InDelta(t, 1250.0, dev.Get(meter.ActivePower), 1e-3)
	assert.InDelta(t, 1.5, dev.Get(meter.ImportActiveEnergy), 1e-6)
	assert.InDelta(t, 0.98, dev.Get(meter.PowerFactor), 1e-6)
}

func TestProcess_ValuesFollowAbsoluteRegister(t *testing.T) {
	dec, dev := newDecoder(t)

	// a single-register poll based at 0x2006 updates active power
	resp := []byte{0x0B, 0x03, 0x04, 0x3E, 0x66, 0x9A, 0xD4, 0xD7, 0x3B} // 0.2252 kW
	n := dec.Process(concat(reqPower, resp))

	assert.Equal(t, len(reqPower)+len(resp), n)
	assert.InDelta(t, 225.2, dev.Get(meter.ActivePower), 1e-3)
	assert.Equal(t, float32(0), dev.Get(meter.Voltage))
}

func TestProcess_GarbageBetweenFrames(t *testing.T) {
	dec, dev := newDecoder(t)

	buf := concat([]byte{0x00, 0xFF, 0x12}, reqVoltage, []byte{0x55}, respVoltage, []byte{0x99, 0x98})
	n := dec.Process(buf)

	assert.Equal(t, len(buf), n)
	assert.InDelta(t, 232.2, dev.Get(meter.Voltage), 1e-4)
}

func TestProcess_PartialFrameKept(t *testing.T) {
	dec, dev := newDecoder(t)

	buf := concat(reqVoltage, respVoltage[:5])
	n := dec.Process(buf)

	assert.Equal(t, len(reqVoltage), n)
	assert.Equal(t, float32(0), dev.Get(meter.Voltage))
}

func TestProcess_BadCRCDiscarded(t *testing.T) {
	dec, dev := newDecoder(t)
	reg := metrics.NewRegistry()
	dec.metrics = metrics.NewAppMetrics(reg)

	bad := append([]byte{}, respVoltage...)
	bad[4] ^= 0x01

	buf := concat(reqVoltage, bad, reqCurrent, respCurrent)
	n := dec.Process(buf)

	assert.Equal(t, len(buf), n)
	assert.Equal(t, float32(0), dev.Get(meter.Voltage))
	assert.InDelta(t, 1.5, dev.Get(meter.Current), 1e-6)
}

func TestProcess_UnknownRegisterIgnored(t *testing.T) {
	dec, dev := newDecoder(t)

	// 0x2004 is not mapped
	req := []byte{0x0B, 0x03, 0x20, 0x04}
	req = append(req, 0x00, 0x02)
	req = rtu.AppendCRC(req)

	n := dec.Process(concat(req, respVoltage))
	assert.Equal(t, len(req)+len(respVoltage), n)
	assert.Equal(t, meter.Reading{Device: meter.DDSU666H}.Values, dev.Reading().Values)
}

func TestRunner_FeedCarriesSplitFrames(t *testing.T) {
	dec, dev := newDecoder(t)
	r := NewRunner(nil, dec, zaptest.NewLogger(t))

	stream := concat(reqPower, respPower)
	var buf []byte
	for i := 0; i < len(stream); i += 3 {
		end := i + 3
		if end > len(stream) {
			end = len(stream)
		}
		buf = r.feed(buf, stream[i:end])
	}

	assert.Empty(t, buf)
	assert.InDelta(t, 1250.0, dev.Get(meter.ActivePower), 1e-3)
}

// chunkReader returns one chunk per Read and (0, nil) once drained.
type chunkReader struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.chunks) == 0 {
		time.Sleep(5 * time.Millisecond)
		return 0, nil
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func TestRunner_Run(t *testing.T) {
	dec, dev := newDecoder(t)
	port := &chunkReader{chunks: [][]byte{
		reqVoltage[:4],
		concat(reqVoltage[4:], respVoltage[:2]),
		respVoltage[2:],
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRunner(port, dec, zaptest.NewLogger(t)).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return dev.Get(meter.Voltage) != 0
	}, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 232.2, dev.Get(meter.Voltage), 1e-4)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

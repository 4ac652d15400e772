// internal/sniffer/runner.go
package sniffer

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

const (
	// MaxCarry bounds the partial-frame bytes kept between reads.
	MaxCarry = 256

	readSize   = 256
	errBackoff = time.Second
)

// Runner reads the bus and feeds the decoder.
type Runner struct {
	port io.Reader
	dec  *Decoder
	log  *zap.Logger
}

// NewRunner returns a runner over port. port reads must time out so
// cancellation is noticed.
func NewRunner(port io.Reader, dec *Decoder, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{port: port, dec: dec, log: log}
}

// Run loops until ctx is done. Read errors are logged and retried.
func (r *Runner) Run(ctx context.Context) {
	buf := make([]byte, 0, MaxCarry+readSize)
	chunk := make([]byte, readSize)

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := r.port.Read(chunk)
		if err != nil {
			r.log.Warn("serial read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(errBackoff):
			}
			continue
		}
		if n == 0 {
			continue
		}

		buf = r.feed(buf, chunk[:n])
	}
}

// feed appends data, decodes, and returns the carried tail.
func (r *Runner) feed(buf, data []byte) []byte {
	buf = append(buf, data...)
	used := r.dec.Process(buf)
	buf = append(buf[:0], buf[used:]...)
	if len(buf) > MaxCarry {
		buf = append(buf[:0], buf[len(buf)-MaxCarry:]...)
	}
	return buf
}

// internal/poller/runner.go
package poller

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTick is how often Tick runs.
	DefaultTick = 100 * time.Millisecond

	maxCarry   = 64
	readSize   = 64
	errBackoff = time.Second
)

// Run starts the tx ticker loop and the rx loop on port.
// It returns when ctx is done.
func (s *Sequencer) Run(ctx context.Context, port io.Reader, tick time.Duration) {
	if tick <= 0 {
		tick = DefaultTick
	}

	rxDone := make(chan struct{})
	go func() {
		defer close(rxDone)
		s.receive(ctx, port)
	}()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	s.Tick(time.Now())
	for {
		select {
		case <-ctx.Done():
			<-rxDone
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

func (s *Sequencer) receive(ctx context.Context, port io.Reader) {
	buf := make([]byte, 0, maxCarry+readSize)
	chunk := make([]byte, readSize)

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := port.Read(chunk)
		if err != nil {
			s.log.Warn("serial read failed", zap.Error(err))
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

		buf = append(buf, chunk[:n]...)
		used := s.Process(buf, time.Now())
		buf = append(buf[:0], buf[used:]...)
		if len(buf) > maxCarry {
			buf = append(buf[:0], buf[len(buf)-maxCarry:]...)
		}
	}
}

// internal/mqtt/client.go
package mqtt

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultTick is the tx cadence.
	DefaultTick = time.Second

	maxCarry = 2 + MaxRemaining
	readSize = 256
	idlePoll = 100 * time.Millisecond
)

// RunConfig paces the tx loop.
type RunConfig struct {
	Tick time.Duration

	// ReconnectInterval is the minimum time between TCP connect attempts.
	ReconnectInterval time.Duration

	// StallTimeout drops the transport after this long in ConnectSent(0).
	// Zero disables the watchdog.
	StallTimeout time.Duration
}

// Run starts the tx ticker loop and the rx loop. It returns when ctx is
// done, after sending DISCONNECT.
func (s *Session) Run(ctx context.Context, cfg RunConfig) {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}

	var reconnect *rate.Limiter
	if cfg.ReconnectInterval > 0 {
		reconnect = rate.NewLimiter(rate.Every(cfg.ReconnectInterval), 1)
	}

	rxDone := make(chan struct{})
	go func() {
		defer close(rxDone)
		s.receive(ctx)
	}()

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	s.step(ctx, cfg, reconnect, time.Now())
	for {
		select {
		case <-ctx.Done():
			s.Disconnect()
			<-rxDone
			return
		case now := <-ticker.C:
			s.step(ctx, cfg, reconnect, now)
		}
	}
}

func (s *Session) step(ctx context.Context, cfg RunConfig, reconnect *rate.Limiter, now time.Time) {
	if cfg.StallTimeout > 0 {
		if d := s.StalledFor(now); d >= cfg.StallTimeout {
			s.log.Warn("no CONNACK, dropping connection", zap.Duration("stalled", d))
			s.Drop("connack timeout")
		}
	}

	if reconnect != nil && !s.TCPConnected() && !reconnect.AllowN(now, 1) {
		return
	}
	s.Tick(ctx)
}

func (s *Session) receive(ctx context.Context) {
	buf := make([]byte, 0, maxCarry+readSize)
	chunk := make([]byte, readSize)
	var cur uint64

	for ctx.Err() == nil {
		gen, state := s.generation()
		if state == TCPDisconnected {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idlePoll):
			}
			continue
		}
		if gen != cur {
			buf, cur = buf[:0], gen
		}

		n, err := s.t.Receive(chunk)
		if err != nil {
			s.lostGen(gen, err)
			continue
		}
		if n == 0 {
			continue
		}

		buf = append(buf, chunk[:n]...)

		s.mu.Lock()
		used := s.handleInbound(gen, buf)
		s.mu.Unlock()

		buf = append(buf[:0], buf[used:]...)
		if len(buf) > maxCarry {
			buf = append(buf[:0], buf[len(buf)-maxCarry:]...)
		}
	}
}

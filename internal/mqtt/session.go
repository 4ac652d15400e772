// internal/mqtt/session.go
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus2mqtt/internal/metrics"
)

// State is the connection state of the session.
type State int

const (
	TCPDisconnected State = iota
	TCPConnected
	ConnectSent
	Connected
	Subscribed
)

func (s State) String() string {
	switch s {
	case TCPDisconnected:
		return "tcp_disconnected"
	case TCPConnected:
		return "tcp_connected"
	case ConnectSent:
		return "connect_sent"
	case Connected:
		return "connected"
	case Subscribed:
		return "subscribed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is the byte stream to the broker.
//
// Receive returns (0, nil) when its read timeout elapses with nothing
// received. Any error from Send or Receive means the stream is gone.
type Transport interface {
	Connect(ctx context.Context) error
	Send(b []byte) error
	Receive(buf []byte) (int, error)
	Close() error
}

// DefaultConnectAttempts is how many CONNECTs are sent per TCP connection.
const DefaultConnectAttempts = 3

// ErrClosed is returned by Publish after Disconnect.
var ErrClosed = errors.New("mqtt: session closed")

// Options configure a Session.
type Options struct {
	ClientID        string
	Topic           string        // publish topic, also the self-subscribe filter
	KeepAlive       time.Duration // PINGREQ period once connected
	SelfSubscribe   bool
	ConnectAttempts int

	// Announce, when set, is published once after every accepted CONNACK.
	Announce func() []byte

	// Now defaults to time.Now.
	Now func() time.Time
}

// Session drives the MQTT connection lifecycle over a Transport.
//
// Tick runs on the tx goroutine and HandleInbound on the rx goroutine.
// Both, and Publish, serialize on mu. The only call made without mu
// held is Transport.Connect.
type Session struct {
	mu sync.Mutex

	t       Transport
	opts    Options
	connect []byte

	state     State
	retries   int       // CONNECTs left in ConnectSent
	stalledAt time.Time // when retries reached 0
	gen       uint64    // bumped on every connect and loss
	lastTx    time.Time
	nextID    uint16
	pending   []byte // single slot, last publish wins
	lost      int
	closed    bool

	log     *zap.Logger
	metrics *metrics.AppMetrics
}

// NewSession validates opts and returns a session in TCPDisconnected.
func NewSession(t Transport, opts Options, log *zap.Logger, m *metrics.AppMetrics) (*Session, error) {
	if t == nil {
		return nil, errors.New("mqtt: transport required")
	}
	if opts.Topic == "" {
		return nil, errors.New("mqtt: topic required")
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = time.Duration(DefaultKeepAlive) * time.Second
	}
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = DefaultConnectAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}

	connect, err := EncodeConnect(opts.ClientID, uint16(opts.KeepAlive/time.Second))
	if err != nil {
		return nil, fmt.Errorf("mqtt: client id: %w", err)
	}

	s := &Session{
		t:       t,
		opts:    opts,
		connect: connect,
		log:     log,
		metrics: m,
	}
	s.metrics.SetMQTTState(int(TCPDisconnected))
	return s, nil
}

// ---- accessors ----

// State returns the state and, in ConnectSent, the CONNECTs left.
func (s *Session) State() (State, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.retries
}

func (s *Session) TCPConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != TCPDisconnected
}

func (s *Session) MQTTConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state >= Connected
}

// LostCount is the number of transport losses since start.
func (s *Session) LostCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

// StalledFor reports how long the session has been in ConnectSent(0).
func (s *Session) StalledFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ConnectSent || s.retries > 0 {
		return 0
	}
	return now.Sub(s.stalledAt)
}

func (s *Session) generation() (uint64, State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen, s.state
}

// ---- tx side ----

// Tick advances the state machine by one step.
func (s *Session) Tick(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if s.state == TCPDisconnected {
		s.mu.Unlock()
		err := s.t.Connect(ctx)
		s.mu.Lock()

		if err != nil {
			s.mu.Unlock()
			s.log.Warn("broker connect failed", zap.Error(err))
			return
		}
		if s.closed {
			s.mu.Unlock()
			_ = s.t.Close()
			return
		}

		s.gen++
		s.setState(TCPConnected)
		s.retries = s.opts.ConnectAttempts
		s.setState(ConnectSent)
	}
	defer s.mu.Unlock()

	now := s.opts.Now()

	switch s.state {
	case ConnectSent:
		if s.retries == 0 {
			return
		}
		s.log.Debug("sending CONNECT", zap.Int("left", s.retries))
		if err := s.send(s.connect, now); err != nil {
			return
		}
		s.retries--
		if s.retries == 0 {
			s.stalledAt = now
		}

	case Connected:
		if s.opts.SelfSubscribe {
			s.nextID++
			b, err := EncodeSubscribe(s.nextID, s.opts.Topic)
			if err != nil {
				s.log.Error("subscribe not encodable", zap.Error(err))
			} else if err := s.send(b, now); err != nil {
				return
			}
		}
		s.setState(Subscribed)
		s.flush(now)

	case Subscribed:
		if now.Sub(s.lastTx) >= s.opts.KeepAlive {
			if err := s.send(EncodePingreq(), now); err != nil {
				return
			}
		}
		s.flush(now)
	}
}

// Publish stores payload as the pending publish and sends it at once
// when connected. A payload that cannot be encoded is rejected and the
// previous pending one is kept.
func (s *Session) Publish(payload []byte) error {
	b, err := EncodePublish(s.opts.Topic, payload)
	if err != nil {
		s.metrics.Publish("rejected")
		s.log.Warn("publish rejected", zap.Int("bytes", len(payload)), zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.pending != nil {
		s.metrics.Publish("overwritten")
	}
	s.pending = b
	if s.state < Connected {
		return nil
	}
	return s.flush(s.opts.Now())
}

// Disconnect sends DISCONNECT when connected and closes the transport.
// The session stays closed afterwards.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.state >= Connected {
		if err := s.t.Send(EncodeDisconnect()); err != nil {
			s.log.Debug("DISCONNECT not sent", zap.Error(err))
		}
	}
	_ = s.t.Close()
	s.gen++
	s.retries = 0
	s.pending = nil
	s.setState(TCPDisconnected)
	s.log.Info("session closed")
}

// Drop closes the transport and resets to TCPDisconnected.
func (s *Session) Drop(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == TCPDisconnected {
		return
	}
	s.reset(errors.New(reason))
}

// lostGen records a loss seen by a reader of generation gen. A loss from
// an older connection is ignored.
func (s *Session) lostGen(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.state == TCPDisconnected {
		return
	}
	s.reset(err)
}

// ---- rx side ----

// HandleInbound decodes every complete packet in buf and returns the
// number of bytes used. A trailing partial packet is left in buf.
func (s *Session) HandleInbound(buf []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handleInbound(s.gen, buf)
}

func (s *Session) handleInbound(gen uint64, buf []byte) int {
	if gen != s.gen {
		return len(buf)
	}

	off := 0
	for off < len(buf) {
		p, n, err := Decode(buf[off:])
		switch {
		case errors.Is(err, ErrIncomplete):
			return off
		case errors.Is(err, ErrRemainingLength):
			s.log.Warn("inbound packet too long, resetting", zap.Error(err))
			s.reset(err)
			return len(buf)
		case err != nil:
			s.log.Warn("inbound packet skipped", zap.Error(err))
			off += n
			continue
		}
		off += n
		s.dispatch(p)
		if s.state == TCPDisconnected {
			return len(buf)
		}
	}
	return off
}

func (s *Session) dispatch(p Packet) {
	now := s.opts.Now()

	switch p.Type {
	case Connack:
		if s.state != ConnectSent {
			s.log.Debug("unexpected CONNACK", zap.Stringer("state", s.state))
			return
		}
		if p.ReturnCode != 0 {
			s.log.Warn("connection refused", zap.Uint8("return_code", p.ReturnCode))
			return
		}
		s.retries = 0
		s.setState(Connected)
		s.log.Info("connected", zap.String("client_id", s.opts.ClientID))

		if s.opts.Announce != nil {
			if b, err := EncodePublish(s.opts.Topic, s.opts.Announce()); err != nil {
				s.log.Warn("announce rejected", zap.Error(err))
			} else if err := s.send(b, now); err != nil {
				return
			}
		}
		s.flush(now)

	case Pingresp:

	case Suback:
		s.log.Info("subscribed", zap.Uint16("packet_id", p.PacketID), zap.Binary("granted", p.Granted))

	case Publish:
		if p.Topic == s.opts.Topic {
			s.log.Info("message on own topic", zap.ByteString("payload", p.Payload))
			return
		}
		s.log.Debug("message", zap.String("topic", p.Topic), zap.Int("bytes", len(p.Payload)))

	default:
		s.log.Debug("packet ignored", zap.Stringer("type", p.Type))
	}
}

// ---- helpers (mu held) ----

func (s *Session) send(b []byte, now time.Time) error {
	if err := s.t.Send(b); err != nil {
		s.reset(err)
		return err
	}
	s.lastTx = now
	return nil
}

func (s *Session) flush(now time.Time) error {
	if s.pending == nil {
		return nil
	}
	if err := s.send(s.pending, now); err != nil {
		s.metrics.Publish("failed")
		return err
	}
	s.pending = nil
	s.metrics.Publish("sent")
	return nil
}

func (s *Session) reset(cause error) {
	_ = s.t.Close()
	s.gen++
	s.lost++
	s.retries = 0
	s.setState(TCPDisconnected)
	s.metrics.TransportLost()
	s.log.Warn("broker connection lost", zap.Error(cause), zap.Int("lost", s.lost))
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	s.log.Debug("state", zap.Stringer("from", s.state), zap.Stringer("to", st))
	s.state = st
	s.metrics.SetMQTTState(int(st))
}

// internal/poller/poller.go
package poller

import (
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus2mqtt/internal/metrics"
	"github.com/tamzrod/modbus2mqtt/internal/rtu"
)

// registersPerQuery is fixed: every value is one register pair.
const registersPerQuery = 2

// Config is the minimal runtime config the sequencer needs.
type Config struct {
	Device   string
	Slave    uint8
	Interval time.Duration // between Data cycles
	Timeout  time.Duration // before an unanswered query is re-sent
	Info     []Query       // FC 0x03, read once
	Data     []Query       // FC 0x04, repeated
}

// Sequencer walks the query plans one request at a time.
//
// At most one query is outstanding. A query is re-sent, unchanged,
// every Timeout until answered; there is no backoff and no skip.
// Once a re-sent query is answered the line settles for one Timeout
// before the next query goes out, so a second reply to the same query
// is dropped instead of being taken for the next register.
type Sequencer struct {
	mu sync.Mutex

	cfg     Config
	w       io.Writer
	scanner *rtu.Scanner
	onCycle CycleFunc

	phase   Phase
	plan    []Query
	cursor  int
	idle    bool // between Data cycles
	pending bool // query sent, not answered
	retried bool // current query was re-sent
	sentAt  time.Time
	settle  time.Time // next query not before this
	cycleAt time.Time

	log     *zap.Logger
	metrics *metrics.AppMetrics
}

// New creates a sequencer writing queries to w.
func New(cfg Config, w io.Writer, onCycle CycleFunc, log *zap.Logger, m *metrics.AppMetrics) (*Sequencer, error) {
	if cfg.Device == "" {
		return nil, errors.New("poller: device name required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("poller: response timeout must be > 0")
	}
	if len(cfg.Data) == 0 {
		return nil, errors.New("poller: at least one data query required")
	}
	if w == nil {
		return nil, errors.New("poller: writer required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Sequencer{
		cfg:     cfg,
		w:       w,
		onCycle: onCycle,
		idle:    true,
		log:     log,
		metrics: m,
	}

	if len(cfg.Info) > 0 {
		s.phase, s.plan = PhaseInfo, cfg.Info
	} else {
		s.phase, s.plan = PhaseData, cfg.Data
	}
	s.scanner = rtu.NewScanner(cfg.Slave, s.function())

	return s, nil
}

// Phase reports the current phase and cursor.
func (s *Sequencer) Phase() (Phase, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase, s.cursor
}

// Tick starts a cycle when one is due, re-sends a query that has
// been outstanding for Timeout, and sends the next query once the
// line has settled after a re-sent one was answered.
func (s *Sequencer) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idle {
		if s.cycleAt.IsZero() || now.Sub(s.cycleAt) >= s.cfg.Interval {
			s.startCycle(now)
		}
		return
	}

	if !s.pending {
		if now.Before(s.settle) {
			return
		}
		s.sendCurrent(now)
		return
	}

	if now.Sub(s.sentAt) >= s.cfg.Timeout {
		s.retried = true
		s.metrics.QueryRetry(s.cfg.Device)
		s.log.Debug("query timeout, re-sending",
			zap.Stringer("phase", s.phase),
			zap.Uint16("register", s.plan[s.cursor].Register),
		)
		s.sendCurrent(now)
	}
}

// Process scans buf for responses and returns how many bytes were used.
func (s *Sequencer) Process(buf []byte, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	off := 0
	for off < len(buf) {
		f, n := s.scanner.Scan(buf, off)
		if n == 0 {
			if errors.Is(f.Err, rtu.ErrNotFound) {
				off = len(buf)
			}
			break
		}
		off += n

		if f.Kind == rtu.Invalid {
			s.metrics.FramingError(s.cfg.Device, rtu.Reason(f.Err))
			continue
		}
		s.metrics.Frame(s.cfg.Device, f.Kind.String())
		s.handleFrame(f, now)
	}
	return off
}

// HandleFrame accepts a response to the outstanding query and moves
// the cursor. Anything else leaves the state untouched.
func (s *Sequencer) HandleFrame(f rtu.Frame, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handleFrame(f, now)
}

func (s *Sequencer) handleFrame(f rtu.Frame, now time.Time) bool {
	if s.idle || !s.pending || s.cursor >= len(s.plan) {
		return false
	}
	q := s.plan[s.cursor]
	if f.Kind != rtu.Response ||
		f.Function != s.function() ||
		f.Count != 2*registersPerQuery ||
		f.Register != q.Register ||
		len(f.Values) != 1 {
		return false
	}

	if q.Apply != nil {
		q.Apply(f.Values[0])
	}
	retried := s.retried
	s.pending = false
	s.retried = false
	s.cursor++

	if s.cursor >= len(s.plan) {
		s.advance(now)
		return true
	}
	if retried {
		// the first send may still be answered; Tick sends the next query
		s.settle = now.Add(s.cfg.Timeout)
		return true
	}
	s.sendCurrent(now)
	return true
}

// advance closes the current phase once the cursor reaches the end
// of its plan. It reports whether a boundary was crossed.
func (s *Sequencer) advance(now time.Time) bool {
	if s.cursor < len(s.plan) {
		return false
	}

	done := s.phase
	s.metrics.Cycle(s.cfg.Device, done.String())
	s.log.Debug("cycle complete", zap.Stringer("phase", done))
	if s.onCycle != nil {
		s.onCycle(done)
	}

	s.cursor = 0
	if done == PhaseInfo {
		s.phase = PhaseData
		s.plan = s.cfg.Data
		s.scanner.SetFunction(s.function())
		s.startCycle(now)
		return true
	}

	s.idle = true
	return true
}

func (s *Sequencer) startCycle(now time.Time) {
	s.idle = false
	s.cursor = 0
	s.retried = false
	s.settle = time.Time{}
	s.cycleAt = now
	s.sendCurrent(now)
}

func (s *Sequencer) sendCurrent(now time.Time) {
	q := s.plan[s.cursor]
	req := rtu.BuildReadRequest(s.cfg.Slave, s.function(), q.Register, registersPerQuery)

	s.scanner.Expect(q.Register)
	s.pending = true
	s.sentAt = now

	if _, err := s.w.Write(req); err != nil {
		// re-sent on the next timeout
		s.log.Warn("query write failed",
			zap.Uint16("register", q.Register),
			zap.Error(err),
		)
	}
}

func (s *Sequencer) function() uint8 {
	if s.phase == PhaseInfo {
		return rtu.FuncReadHoldingRegisters
	}
	return rtu.FuncReadInputRegisters
}

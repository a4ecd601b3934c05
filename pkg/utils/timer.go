package utils

import (
	"sync"
	"time"
)

// StopwatchPhase is one timed stage of a multi-stage operation.
type StopwatchPhase struct {
	Name     string
	Duration time.Duration
}

// Stopwatch times the named phases of a multi-stage operation, such as
// the pilot/stream/write stages of a streaming index build. Starting a
// phase ends the previous one; phases are reported in start order.
type Stopwatch struct {
	mu     sync.Mutex
	clock  Clock
	logger Logger

	phases  []StopwatchPhase
	current string
	started time.Time
	began   time.Time
}

// NewStopwatch creates a Stopwatch. A nil clock uses the real clock; a
// nil logger makes LogSummary a no-op.
func NewStopwatch(clock Clock, logger Logger) *Stopwatch {
	if clock == nil {
		clock = NewRealClock()
	}
	if logger == nil {
		logger = &NullLogger{}
	}
	return &Stopwatch{clock: clock, logger: logger}
}

// Start begins the named phase, ending the current one if any.
func (s *Stopwatch) Start(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.finishLocked(now)
	if s.began.IsZero() {
		s.began = now
	}
	s.current = name
	s.started = now
}

// Stop ends the current phase and returns its duration. Calling Stop
// with no phase running returns zero.
func (s *Stopwatch) Stop() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishLocked(s.clock.Now())
}

func (s *Stopwatch) finishLocked(now time.Time) time.Duration {
	if s.current == "" {
		return 0
	}
	d := now.Sub(s.started)
	s.phases = append(s.phases, StopwatchPhase{Name: s.current, Duration: d})
	s.current = ""
	return d
}

// Phases returns the completed phases in start order.
func (s *Stopwatch) Phases() []StopwatchPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StopwatchPhase, len(s.phases))
	copy(out, s.phases)
	return out
}

// Total returns the time elapsed since the first phase started, or the
// sum of completed phases once everything is stopped.
func (s *Stopwatch) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.began.IsZero() {
		return 0
	}
	if s.current != "" {
		return s.clock.Now().Sub(s.began)
	}
	var total time.Duration
	for _, p := range s.phases {
		total += p.Duration
	}
	return total
}

// LogSummary writes one line per completed phase through the logger.
func (s *Stopwatch) LogSummary() {
	for _, p := range s.Phases() {
		s.logger.Info("phase %s took %s", p.Name, p.Duration)
	}
}

package reminder

import (
	"sync"
	"time"

	"sleepbot/internal/config"
	"sleepbot/internal/escalation"
)

// State is the scheduler's mutable state.
// LastNotifiedAt is non-nil only while Level is not Inactive.
type State struct {
	LastNotifiedAt *time.Time
	Level          escalation.Level
}

// Effect asks the dispatcher to send one reminder round at Level.
type Effect struct {
	Level  escalation.Level
	At     time.Time
	Forced bool
}

// Status is a read-only view of where now falls relative to the deadline.
type Status struct {
	Level       escalation.Level
	MinutesPast float64
	Active      bool
}

// Scheduler evaluates ticks against one daily deadline.
// It is safe for concurrent use.
type Scheduler struct {
	deadline config.Deadline
	loc      *time.Location

	mu    sync.Mutex
	state State
}

// NewScheduler tracks deadline in loc; a nil loc means time.Local.
func NewScheduler(deadline config.Deadline, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		deadline: deadline,
		loc:      loc,
		state:    State{Level: escalation.Inactive},
	}
}

func (s *Scheduler) Deadline() config.Deadline { return s.deadline }
func (s *Scheduler) Location() *time.Location  { return s.loc }

// MinutesPast returns signed minutes between now and the deadline on now's
// calendar day. It does not roll over midnight: after midnight the deadline
// of the new day is used.
func (s *Scheduler) MinutesPast(now time.Time) float64 {
	local := now.In(s.loc)
	return local.Sub(s.deadline.On(local)).Minutes()
}

// Tick evaluates one moment. It returns an effect when a reminder is due.
func (s *Scheduler) Tick(now time.Time) (Effect, bool) {
	level := escalation.Classify(s.MinutesPast(now))

	s.mu.Lock()
	defer s.mu.Unlock()

	if level == escalation.Inactive {
		s.state = State{Level: escalation.Inactive}
		return Effect{}, false
	}
	s.state.Level = level

	last := s.state.LastNotifiedAt
	if last != nil && now.Sub(*last) < escalation.MinInterval(level) {
		return Effect{}, false
	}
	at := now
	s.state.LastNotifiedAt = &at
	return Effect{Level: level, At: now}, true
}

// ForceNotify returns an effect at an explicit level. State is neither read
// nor written, so rate limiting is bypassed.
func (s *Scheduler) ForceNotify(level escalation.Level) (Effect, error) {
	if !level.Valid() {
		return Effect{}, escalation.ErrInvalidLevel
	}
	return Effect{Level: level, At: time.Now(), Forced: true}, nil
}

// CurrentStatus classifies now without touching state.
func (s *Scheduler) CurrentStatus(now time.Time) Status {
	m := s.MinutesPast(now)
	level := escalation.Classify(m)
	return Status{Level: level, MinutesPast: m, Active: level != escalation.Inactive}
}

// State returns a copy of the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.LastNotifiedAt != nil {
		at := *st.LastNotifiedAt
		st.LastNotifiedAt = &at
	}
	return st
}

// Window is one escalation band on a given day.
type Window struct {
	Level    escalation.Level
	Start    time.Time
	Interval time.Duration
}

// Windows lists the escalation bands for the deadline on day's calendar date.
// The last band is open ended.
func (s *Scheduler) Windows(day time.Time) []Window {
	deadline := s.deadline.On(day.In(s.loc))
	out := make([]Window, 0, len(escalation.Levels()))
	for _, l := range escalation.Levels() {
		m, ok := escalation.Onset(l)
		if !ok {
			continue
		}
		out = append(out, Window{
			Level:    l,
			Start:    deadline.Add(time.Duration(m * float64(time.Minute))),
			Interval: escalation.MinInterval(l),
		})
	}
	return out
}

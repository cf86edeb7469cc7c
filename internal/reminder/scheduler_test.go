package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sleepbot/internal/config"
	"sleepbot/internal/escalation"
)

var bedtime = config.Deadline{Hour: 22, Minute: 30}

func at(h, m, s int) time.Time {
	return time.Date(2024, 5, 6, h, m, s, 0, time.UTC)
}

func newTestScheduler() *Scheduler { return NewScheduler(bedtime, time.UTC) }

func TestTickLevelsThroughTheEvening(t *testing.T) {
	tests := []struct {
		now  time.Time
		want escalation.Level
	}{
		{now: at(22, 29, 0), want: escalation.PreWarning},
		{now: at(22, 30, 0), want: escalation.AtDeadline},
		{now: at(22, 36, 0), want: escalation.Escalating5m},
		{now: at(22, 50, 0), want: escalation.Escalating2m},
		{now: at(23, 0, 0), want: escalation.MaxUrgency},
	}
	for _, tc := range tests {
		t.Run(tc.now.Format("15:04"), func(t *testing.T) {
			s := newTestScheduler()
			eff, due := s.Tick(tc.now)
			require.True(t, due)
			require.Equal(t, tc.want, eff.Level)
			require.Equal(t, tc.want, s.State().Level)
		})
	}
	require.Contains(t, escalation.Message(escalation.PreWarning), "15 minutes")
}

func TestTickOutsideWindow(t *testing.T) {
	s := newTestScheduler()
	_, due := s.Tick(at(22, 14, 59))
	require.False(t, due)
	require.Equal(t, State{Level: escalation.Inactive}, s.State())

	// Just after midnight the deadline of the new day applies.
	_, due = s.Tick(at(0, 5, 0))
	require.False(t, due)
}

func TestTickRateLimit(t *testing.T) {
	for _, level := range []escalation.Level{escalation.AtDeadline, escalation.Escalating2m, escalation.MaxUrgency} {
		t.Run(level.String(), func(t *testing.T) {
			var t0 time.Time
			switch level {
			case escalation.AtDeadline:
				t0 = at(22, 30, 0)
			case escalation.Escalating2m:
				t0 = at(22, 45, 0)
			case escalation.MaxUrgency:
				t0 = at(23, 0, 0)
			}
			interval := escalation.MinInterval(level)
			s := newTestScheduler()

			eff, due := s.Tick(t0)
			require.True(t, due)
			require.Equal(t, level, eff.Level)

			before := t0.Add(interval - time.Second)
			_, due = s.Tick(before)
			require.False(t, due)

			after := t0.Add(interval + time.Second)
			_, due = s.Tick(after)
			require.True(t, due)
			require.Equal(t, after, *s.State().LastNotifiedAt)
		})
	}
}

func TestTickPreWarningOnlyOnce(t *testing.T) {
	s := newTestScheduler()
	_, due := s.Tick(at(22, 15, 0))
	require.True(t, due)
	for m := 16; m < 30; m++ {
		_, due = s.Tick(at(22, m, 0))
		require.False(t, due, "22:%d", m)
	}
	// Crossing into AtDeadline 15 minutes after the pre-warning fires at once.
	eff, due := s.Tick(at(22, 30, 0))
	require.True(t, due)
	require.Equal(t, escalation.AtDeadline, eff.Level)
}

func TestTickTenSecondsApartAtMaxUrgency(t *testing.T) {
	s := newTestScheduler()
	fired := 0
	for _, now := range []time.Time{at(23, 0, 0), at(23, 0, 10)} {
		if _, due := s.Tick(now); due {
			fired++
		}
	}
	require.Equal(t, 1, fired)
}

func TestWindowResetFiresImmediately(t *testing.T) {
	s := newTestScheduler()
	_, due := s.Tick(at(23, 0, 0))
	require.True(t, due)
	_, due = s.Tick(at(23, 0, 30))
	require.False(t, due)

	// Next evening, before the window: everything resets.
	next := at(22, 0, 0).AddDate(0, 0, 1)
	_, due = s.Tick(next)
	require.False(t, due)
	st := s.State()
	require.Nil(t, st.LastNotifiedAt)
	require.Equal(t, escalation.Inactive, st.Level)

	eff, due := s.Tick(next.Add(20 * time.Minute))
	require.True(t, due)
	require.Equal(t, escalation.PreWarning, eff.Level)
}

func TestForceNotifyLeavesStateAlone(t *testing.T) {
	s := newTestScheduler()
	_, due := s.Tick(at(22, 40, 0))
	require.True(t, due)
	before := s.State()

	eff, err := s.ForceNotify(escalation.Escalating5m)
	require.NoError(t, err)
	require.Equal(t, escalation.Escalating5m, eff.Level)
	require.True(t, eff.Forced)
	require.Equal(t, before, s.State())

	_, err = s.ForceNotify(escalation.Level(5))
	require.ErrorIs(t, err, escalation.ErrInvalidLevel)
	_, err = s.ForceNotify(escalation.Inactive)
	require.ErrorIs(t, err, escalation.ErrInvalidLevel)
}

func TestCurrentStatusIsReadOnly(t *testing.T) {
	s := newTestScheduler()
	_, _ = s.Tick(at(22, 31, 0))
	before := s.State()

	for i := 0; i < 3; i++ {
		st := s.CurrentStatus(at(22, 52, 30))
		require.True(t, st.Active)
		require.Equal(t, escalation.Escalating2m, st.Level)
		require.InDelta(t, 22.5, st.MinutesPast, 1e-9)
	}
	require.Equal(t, before, s.State())

	st := s.CurrentStatus(at(12, 0, 0))
	require.False(t, st.Active)
	require.Equal(t, escalation.Inactive, st.Level)
}

func TestSchedulerUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	s := NewScheduler(bedtime, loc)
	// 20:30 UTC is 22:30 at UTC+2.
	st := s.CurrentStatus(time.Date(2024, 5, 6, 20, 30, 0, 0, time.UTC))
	require.Equal(t, escalation.AtDeadline, st.Level)
	require.InDelta(t, 0, st.MinutesPast, 1e-9)
}

func TestWindows(t *testing.T) {
	w := newTestScheduler().Windows(at(9, 0, 0))
	require.Len(t, w, 5)
	require.Equal(t, escalation.PreWarning, w[0].Level)
	require.Equal(t, at(22, 15, 0), w[0].Start)
	require.Equal(t, 15*time.Minute, w[0].Interval)
	require.Equal(t, at(22, 30, 0), w[1].Start)
	require.Equal(t, at(22, 55, 0), w[4].Start)
	require.Equal(t, time.Minute, w[4].Interval)
}

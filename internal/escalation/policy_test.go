package escalation

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassifyBoundaries(t *testing.T) {
	tests := map[string]struct {
		minutes float64
		want    Level
	}{
		"far before":        {minutes: -600, want: Inactive},
		"just before":       {minutes: -15.0001, want: Inactive},
		"window start":      {minutes: -15, want: PreWarning},
		"just before 0":     {minutes: -0.0001, want: PreWarning},
		"deadline":          {minutes: 0, want: AtDeadline},
		"just before 5":     {minutes: 4.9999, want: AtDeadline},
		"five":              {minutes: 5, want: Escalating5m},
		"just before 15":    {minutes: 14.9999, want: Escalating5m},
		"fifteen":           {minutes: 15, want: Escalating2m},
		"just before 25":    {minutes: 24.9999, want: Escalating2m},
		"twenty five":       {minutes: 25, want: MaxUrgency},
		"next calendar day": {minutes: 23 * 60, want: MaxUrgency},
		"infinity":          {minutes: math.Inf(1), want: MaxUrgency},
		"nan":               {minutes: math.NaN(), want: Inactive},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.minutes))
		})
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	prev := Inactive
	for m := -60.0; m <= 60; m += 0.25 {
		got := Classify(m)
		require.GreaterOrEqual(t, got, prev, "minutes=%v", m)
		prev = got
	}
}

func TestMinIntervalTable(t *testing.T) {
	want := []time.Duration{900 * time.Second, 300 * time.Second, 300 * time.Second, 120 * time.Second, 60 * time.Second}
	for i, l := range Levels() {
		require.Equal(t, want[i], MinInterval(l), l.String())
		if i > 0 {
			require.LessOrEqual(t, MinInterval(l), MinInterval(Levels()[i-1]))
		}
	}
	require.Equal(t, 300*time.Second, MinInterval(Inactive))
	require.Equal(t, 300*time.Second, MinInterval(Level(42)))
}

func TestMessage(t *testing.T) {
	require.Contains(t, Message(PreWarning), "15 minutes")
	seen := map[string]bool{}
	for _, l := range Levels() {
		msg := Message(l)
		require.NotEmpty(t, msg)
		require.False(t, seen[msg], "duplicate message for %s", l)
		seen[msg] = true
	}
	require.Equal(t, "Go to sleep!", Message(Level(9)))
	require.Equal(t, "Go to sleep!", Message(Inactive))
}

func TestLevelNames(t *testing.T) {
	names := make([]string, 0, 5)
	for _, l := range Levels() {
		names = append(names, l.String())
	}
	require.Equal(t, "Pre-warning|Bedtime|5 min interval|2 min interval|SPAM MODE", strings.Join(names, "|"))
	require.Equal(t, "Inactive", Inactive.String())
	require.Equal(t, "Level(7)", Level(7).String())
	require.False(t, Inactive.Valid())
	require.True(t, MaxUrgency.Valid())
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"0", "2", " 4 "} {
		l, err := ParseLevel(s)
		require.NoError(t, err)
		require.True(t, l.Valid())
	}
	for _, s := range []string{"-1", "5", "two", "", "2.5"} {
		_, err := ParseLevel(s)
		require.ErrorIs(t, err, ErrInvalidLevel, s)
	}
}

func TestOnsetMatchesClassify(t *testing.T) {
	prev := math.Inf(-1)
	for _, l := range Levels() {
		m, ok := Onset(l)
		require.True(t, ok)
		require.Greater(t, m, prev)
		require.Equal(t, l, Classify(m))
		prev = m
	}
	require.Equal(t, Inactive, Classify(windowStart-0.001))
	_, ok := Onset(Inactive)
	require.False(t, ok)
}

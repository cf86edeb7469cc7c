package escalation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Level is a reminder severity bucket. Higher is more urgent.
type Level int

const (
	// Inactive means the moment is outside the reminder window.
	Inactive Level = -1

	PreWarning   Level = 0
	AtDeadline   Level = 1
	Escalating5m Level = 2
	Escalating2m Level = 3
	MaxUrgency   Level = 4
)

// ErrInvalidLevel is returned for anything outside PreWarning..MaxUrgency.
var ErrInvalidLevel = errors.New("level must be between 0 and 4")

var levelNames = map[Level]string{
	Inactive:     "Inactive",
	PreWarning:   "Pre-warning",
	AtDeadline:   "Bedtime",
	Escalating5m: "5 min interval",
	Escalating2m: "2 min interval",
	MaxUrgency:   "SPAM MODE",
}

// Levels returns the active levels in severity order.
func Levels() []Level {
	return []Level{PreWarning, AtDeadline, Escalating5m, Escalating2m, MaxUrgency}
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return "Level(" + strconv.Itoa(int(l)) + ")"
}

// Valid reports whether l is one of the active levels.
func (l Level) Valid() bool { return l >= PreWarning && l <= MaxUrgency }

// ParseLevel parses a decimal level as typed by a user (e.g. "/test 2").
func ParseLevel(s string) (Level, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Inactive, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	l := Level(n)
	if !l.Valid() {
		return Inactive, fmt.Errorf("%w: %d", ErrInvalidLevel, n)
	}
	return l, nil
}

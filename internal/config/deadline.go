package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var reDeadline = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// Deadline is a daily time of day.
type Deadline struct {
	Hour   int
	Minute int
}

// ParseDeadline parses "HH:MM" (24h clock, 00:00..23:59).
func ParseDeadline(raw string) (Deadline, error) {
	m := reDeadline.FindStringSubmatch(raw)
	if len(m) != 3 {
		return Deadline{}, fmt.Errorf("invalid deadline %q (use HH:MM, e.g. 22:30)", raw)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if h > 23 {
		return Deadline{}, fmt.Errorf("invalid hour in %q", raw)
	}
	if mm > 59 {
		return Deadline{}, fmt.Errorf("invalid minutes in %q", raw)
	}
	return Deadline{Hour: h, Minute: mm}, nil
}

func (d Deadline) String() string { return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute) }

// On returns the deadline on the calendar day of t, in t's location.
func (d Deadline) On(t time.Time) time.Time {
	y, mo, day := t.Date()
	return time.Date(y, mo, day, d.Hour, d.Minute, 0, 0, t.Location())
}

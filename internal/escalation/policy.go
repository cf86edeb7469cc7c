package escalation

import (
	"math"
	"time"
)

// Window bounds in minutes relative to the deadline. Each band is [lower, next).
const (
	windowStart       = -15.0
	deadlineMark      = 0.0
	fiveMinuteMark    = 5.0
	fifteenMinuteMark = 15.0
	spamMark          = 25.0
)

// defaultInterval covers levels missing from the interval table.
const defaultInterval = 300 * time.Second

var intervals = map[Level]time.Duration{
	PreWarning:   900 * time.Second,
	AtDeadline:   300 * time.Second,
	Escalating5m: 300 * time.Second,
	Escalating2m: 120 * time.Second,
	MaxUrgency:   60 * time.Second,
}

var messages = map[Level]string{
	PreWarning:   "⏰ <b>15 minutes until bedtime!</b> Start wrapping up what you're doing.",
	AtDeadline:   "🛏️ <b>It's bedtime!</b> Time to sleep for a healthy tomorrow.",
	Escalating5m: "😴 <b>You should be in bed by now.</b> Please head to sleep.",
	Escalating2m: "⚠️ <b>SERIOUSLY, GO TO BED!</b> Your sleep schedule matters!",
	MaxUrgency:   "🚨 <b>SLEEP NOW!!!</b> Every minute you delay affects your health! GO TO BED IMMEDIATELY!",
}

const fallbackMessage = "Go to sleep!"

// Classify maps signed minutes past the deadline to a level.
// Anything before the window (and NaN) is Inactive.
func Classify(minutesPast float64) Level {
	switch {
	case math.IsNaN(minutesPast) || minutesPast < windowStart:
		return Inactive
	case minutesPast < deadlineMark:
		return PreWarning
	case minutesPast < fiveMinuteMark:
		return AtDeadline
	case minutesPast < fifteenMinuteMark:
		return Escalating5m
	case minutesPast < spamMark:
		return Escalating2m
	default:
		return MaxUrgency
	}
}

var onsets = map[Level]float64{
	PreWarning:   windowStart,
	AtDeadline:   deadlineMark,
	Escalating5m: fiveMinuteMark,
	Escalating2m: fifteenMinuteMark,
	MaxUrgency:   spamMark,
}

// Onset is the minute offset from the deadline at which level l begins.
func Onset(l Level) (float64, bool) {
	m, ok := onsets[l]
	return m, ok
}

// MinInterval is the minimum gap between two reminders at level l.
func MinInterval(l Level) time.Duration {
	if d, ok := intervals[l]; ok {
		return d
	}
	return defaultInterval
}

// Message is the reminder text for l, formatted as Telegram HTML.
func Message(l Level) string {
	if m, ok := messages[l]; ok {
		return m
	}
	return fallbackMessage
}

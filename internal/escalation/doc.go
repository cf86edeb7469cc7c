// Package escalation is the bedtime reminder policy: it maps minutes past the
// deadline to a severity level, the minimum gap between reminders at that
// level and the reminder text. It has no state and does no I/O.
package escalation

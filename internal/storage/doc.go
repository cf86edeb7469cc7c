// Package storage is the optional audit trail of reminder sends.
//
// It records what was delivered and who triggered it (scheduled ticks or
// manual tests). It is never read back into scheduler state, so a restart
// always starts the reminder window from scratch.
package storage

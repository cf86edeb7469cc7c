package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file next to the given path
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Actions recorded in the audit trail.
const (
	ActionReminder = "reminder"
	ActionTest     = "test"
)

// AuditEntry records one reminder dispatch.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At            time.Time `json:"at"`
	DispatchID    string    `json:"dispatch_id"`
	ActorID       int64     `json:"actor_id,omitempty"`
	ActorUsername string    `json:"actor_username,omitempty"`
	Action        string    `json:"action"`
	Level         int       `json:"level"`
	OK            int       `json:"ok"`
	Fail          int       `json:"fail"`
	Broadcast     bool      `json:"broadcast,omitempty"`
	Error         string    `json:"error,omitempty"`
	TookMS        int64     `json:"took_ms"`
}

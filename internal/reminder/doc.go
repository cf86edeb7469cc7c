// Package reminder owns the bedtime escalation loop.
//
// Scheduler decides when a reminder is due and holds the only mutable state.
// Dispatcher executes a due reminder against a delivery.Deliverer. Service
// drives Scheduler ticks on a fixed period and hands due effects to the
// Dispatcher, never letting two ticks overlap.
package reminder

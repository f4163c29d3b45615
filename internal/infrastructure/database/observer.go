package database

import "time"

// EventKind names a connection lifecycle transition or refusal.
type EventKind string

// Connection lifecycle events.
const (
	EventOpened        EventKind = "opened"
	EventOpenFailed    EventKind = "open_failed"
	EventClosed        EventKind = "closed"
	EventAlreadyClosed EventKind = "already_closed"
	EventCloseRefused  EventKind = "close_refused"
	EventCloseFailed   EventKind = "close_failed"
	EventReleased      EventKind = "released"
	EventReleaseFailed EventKind = "release_failed"
)

// Event describes one lifecycle step of a Connection.
type Event struct {
	Kind       EventKind
	Connection string
	Status     Status
	Err        error
	Time       time.Time
}

// StatementKind identifies which operation ran a statement.
type StatementKind string

// Statement kinds.
const (
	KindExecute StatementKind = "execute"
	KindSelect  StatementKind = "select"
	KindScript  StatementKind = "script"
)

// Statement summarises one Execute, Select, SelectRows or ExecuteScript call,
// including calls rejected before reaching the engine.
type Statement struct {
	Connection string
	Kind       StatementKind
	Status     Status
	Rows       int
	Duration   time.Duration
	Err        error
}

// Observer receives connection diagnostics alongside the log.
//
// Methods are called synchronously on the goroutine using the Connection
// and must not call back into it.
type Observer interface {
	ConnectionEvent(ev Event)
	StatementExecuted(st Statement)
}

package database

import (
	"errors"
	"fmt"
)

// Sentinel errors for connection operations.
// Use errors.Is() to check for these errors in calling code, or StatusOf()
// to obtain the numeric status code.
var (
	// ErrNoQuery is returned when Execute is called without a statement.
	ErrNoQuery = errors.New("database: no query supplied")

	// ErrNotConnected is returned when a statement is issued on a connection
	// that failed to open or has been closed.
	ErrNotConnected = errors.New("database: not connected")

	// ErrOpenFailed wraps the engine error of a failed Open; see Connection.Err.
	ErrOpenFailed = errors.New("database: open failed")
)

// AbortError reports that a row callback returned a non-zero code and
// row delivery for the statement was stopped.
type AbortError struct {
	Code CallbackCode
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("database: row callback aborted statement: %s (code %d)", e.Code, int(e.Code))
}

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Status is the numeric outcome of a statement.
//
// Zero is success and positive values are SQLite primary result codes, passed
// through verbatim. Negative values are produced by this package only and
// never collide with engine codes.
type Status int

// Status codes produced without engine interaction.
const (
	StatusOK           Status = 0
	StatusUnknown      Status = -1
	StatusNoQuery      Status = -2
	StatusNotConnected Status = -3
)

// Engine status codes referenced by this package. The values are SQLite's
// primary result codes and equal the matching sqlite3.Err* values.
const (
	StatusError      Status = 1
	StatusAbort      Status = 4
	StatusBusy       Status = 5
	StatusInterrupt  Status = 9
	StatusCantOpen   Status = 14
	StatusConstraint Status = 19
)

// StatusOf maps an error returned by this package to its status code.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}

	switch {
	case errors.Is(err, ErrNoQuery):
		return StatusNoQuery
	case errors.Is(err, ErrNotConnected):
		return StatusNotConnected
	}

	var abortErr *AbortError
	if errors.As(err, &abortErr) {
		return StatusAbort
	}

	var engineErr sqlite3.Error
	if errors.As(err, &engineErr) {
		return Status(engineErr.Code)
	}

	var errNo sqlite3.ErrNo
	if errors.As(err, &errNo) {
		return Status(errNo)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StatusInterrupt
	}

	return StatusUnknown
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnknown:
		return "unknown error"
	case StatusNoQuery:
		return "no query supplied"
	case StatusNotConnected:
		return "not connected"
	}
	if s > 0 {
		return fmt.Sprintf("sqlite: %s", sqlite3.ErrNo(s).Error())
	}
	return fmt.Sprintf("status(%d)", int(s))
}

package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementStatements       = "statements"
	measurementConnectionEvents = "connection_events"
)

// memoryConnection tags points from connections without a file name.
const memoryConnection = ":memory:"

func statementPoint(connID, kind string, status, rows int, duration time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementStatements,
		map[string]string{
			"connection": connectionTag(connID),
			"kind":       kind,
			"status":     strconv.Itoa(status),
		},
		map[string]interface{}{
			"duration_ms": float64(duration) / float64(time.Millisecond),
			"rows":        rows,
		},
		ts,
	)
}

func connectionEventPoint(connID, event string, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementConnectionEvents,
		map[string]string{
			"connection": connectionTag(connID),
			"event":      event,
		},
		map[string]interface{}{
			"count": 1,
		},
		ts,
	)
}

// connectionTag returns connID, or ":memory:" when it is empty. InfluxDB
// drops tags with empty values.
func connectionTag(connID string) string {
	if connID == "" {
		return memoryConnection
	}
	return connID
}

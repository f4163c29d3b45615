package monitor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/litesql/internal/infrastructure/database"
)

// Logger defines the logging interface used by the Monitor.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// EventPublisher delivers a serialised connection event. Implemented by
// *mqtt.Publisher.
type EventPublisher interface {
	PublishConnectionEvent(connID string, payload []byte) error
}

// MetricWriter records time-series points. Implemented by *influxdb.Recorder.
type MetricWriter interface {
	WriteStatementMetric(connID, kind string, status, rows int, duration time.Duration)
	WriteConnectionEvent(connID, event string)
}

// EventPayload is the JSON document published for each connection event.
type EventPayload struct {
	ID         string `json:"id"`
	Connection string `json:"connection"`
	Event      string `json:"event"`
	Status     int    `json:"status"`
	StatusText string `json:"status_text"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Monitor implements database.Observer.
//
// Sink failures are logged and never reach the Connection.
type Monitor struct {
	publisher EventPublisher
	metrics   MetricWriter
	logger    Logger

	newID func() string
	now   func() time.Time
}

var _ database.Observer = (*Monitor)(nil)

// New creates a Monitor. A nil publisher or metrics writer disables that sink.
func New(publisher EventPublisher, metrics MetricWriter) *Monitor {
	return &Monitor{
		publisher: publisher,
		metrics:   metrics,
		logger:    noopLogger{},
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// ConnectionEvent publishes ev and records it as a metric.
func (m *Monitor) ConnectionEvent(ev database.Event) {
	if ev.Time.IsZero() {
		ev.Time = m.now()
	}

	if m.metrics != nil {
		m.metrics.WriteConnectionEvent(ev.Connection, string(ev.Kind))
	}

	if m.publisher == nil {
		return
	}

	payload, err := BuildEventPayload(m.newID(), ev)
	if err != nil {
		m.logger.Warn("failed to encode connection event", "event", ev.Kind, "error", err)
		return
	}

	if err := m.publisher.PublishConnectionEvent(ev.Connection, payload); err != nil {
		m.logger.Warn("failed to publish connection event",
			"name", ev.Connection,
			"event", ev.Kind,
			"error", err,
		)
	}
}

// StatementExecuted records st as a metric and logs it at debug level.
func (m *Monitor) StatementExecuted(st database.Statement) {
	m.logger.Debug("statement executed",
		"name", st.Connection,
		"kind", st.Kind,
		"rc", int(st.Status),
		"rows", st.Rows,
		"duration", st.Duration,
	)

	if m.metrics != nil {
		m.metrics.WriteStatementMetric(st.Connection, string(st.Kind), int(st.Status), st.Rows, st.Duration)
	}
}

// BuildEventPayload serialises ev under the given event ID.
func BuildEventPayload(id string, ev database.Event) ([]byte, error) {
	p := EventPayload{
		ID:         id,
		Connection: ev.Connection,
		Event:      string(ev.Kind),
		Status:     int(ev.Status),
		StatusText: ev.Status.String(),
		Timestamp:  ev.Time.UTC().Format(time.RFC3339Nano),
	}
	if ev.Err != nil {
		p.Error = ev.Err.Error()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding event payload: %w", err)
	}
	return data, nil
}

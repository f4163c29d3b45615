package influxdb

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func tagMap(p *write.Point) map[string]string {
	tags := make(map[string]string)
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	return tags
}

func fieldMap(p *write.Point) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, field := range p.FieldList() {
		fields[field.Key] = field.Value
	}
	return fields
}

func TestStatementPoint(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	p := statementPoint("app.db", "select", 19, 3, 1500*time.Microsecond, ts)

	if p.Name() != measurementStatements {
		t.Errorf("Name() = %q, want %q", p.Name(), measurementStatements)
	}
	if !p.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", p.Time(), ts)
	}

	tags := tagMap(p)
	wantTags := map[string]string{"connection": "app.db", "kind": "select", "status": "19"}
	for k, v := range wantTags {
		if tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, tags[k], v)
		}
	}

	fields := fieldMap(p)
	if got, ok := fields["duration_ms"].(float64); !ok || got != 1.5 {
		t.Errorf("duration_ms = %v, want 1.5", fields["duration_ms"])
	}
	if got, ok := fields["rows"].(int64); !ok || got != 3 {
		t.Errorf("rows = %v (%T), want int64 3", fields["rows"], fields["rows"])
	}
}

func TestConnectionEventPoint(t *testing.T) {
	p := connectionEventPoint("", "opened", time.Now())

	if p.Name() != measurementConnectionEvents {
		t.Errorf("Name() = %q, want %q", p.Name(), measurementConnectionEvents)
	}

	tags := tagMap(p)
	if tags["connection"] != memoryConnection {
		t.Errorf("connection tag = %q, want %q", tags["connection"], memoryConnection)
	}
	if tags["event"] != "opened" {
		t.Errorf("event tag = %q, want %q", tags["event"], "opened")
	}
}

func TestConnectionTag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ":memory:"},
		{":memory:", ":memory:"},
		{"/tmp/app.db", "/tmp/app.db"},
	}

	for _, tt := range tests {
		if got := connectionTag(tt.in); got != tt.want {
			t.Errorf("connectionTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

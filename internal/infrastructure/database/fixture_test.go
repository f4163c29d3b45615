package database

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// Employee table used across the statement tests.
const (
	queryCreateTableEmployee = `create table employee(
		id     int       primary key not null,
		name   char(50)  not null
	);`

	employeeJohn = "John Paul"
	employeeJeff = "Jeff Beck"

	queryInsertEmployeeJohn = "insert into employee (id, name) values (1, 'John Paul')"
	queryInsertEmployeeJeff = "insert into employee (id, name) values (2, 'Jeff Beck')"

	querySelectNameFromEmployee = "select name from employee"
	queryClearTableEmployee     = "delete from employee"
	queryDropTableEmployee      = "drop table employee"
)

// quietLogger discards connection diagnostics during tests.
func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// testDBPath returns a database file path inside a per-test directory.
func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// openTestConnection opens name with a quiet logger and force-releases it
// when the test ends.
func openTestConnection(t *testing.T, name string, opts ...Option) *Connection {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	conn := Open(context.Background(), name, opts...)
	t.Cleanup(func() {
		_ = conn.Release() //nolint:errcheck // Test cleanup
	})
	return conn
}

// fileExists reports whether path exists on disk.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// sharedFixture is a file-backed connection shared by the subtests of one
// test function. Subtests run sequentially and reset the schema with
// freshStart; the connection is closed when the parent test ends.
type sharedFixture struct {
	conn *Connection
	path string
}

func newSharedFixture(t *testing.T) *sharedFixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sharedTest.db")
	conn := Open(context.Background(), path, WithLogger(quietLogger()))
	if !conn.IsConnected() {
		t.Fatalf("shared fixture: Open(%q) failed: %v", path, conn.Err())
	}

	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Errorf("shared fixture: Close() error = %v", err)
		}
		_ = conn.Release() //nolint:errcheck // No-op unless Close refused
	})

	return &sharedFixture{conn: conn, path: path}
}

// freshStart drops and recreates the employee table.
func (f *sharedFixture) freshStart(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	// The table does not exist on first use.
	_ = f.conn.Execute(ctx, queryDropTableEmployee) //nolint:errcheck // See above

	if err := f.conn.Execute(ctx, queryCreateTableEmployee); err != nil {
		t.Fatalf("freshStart: could not create table employee: %v", err)
	}
}

// recordingObserver captures everything a Connection reports.
type recordingObserver struct {
	events     []Event
	statements []Statement
}

func (r *recordingObserver) ConnectionEvent(ev Event) {
	r.events = append(r.events, ev)
}

func (r *recordingObserver) StatementExecuted(st Statement) {
	r.statements = append(r.statements, st)
}

func (r *recordingObserver) kinds() []EventKind {
	kinds := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

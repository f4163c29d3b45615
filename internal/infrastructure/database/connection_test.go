package database

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Open Tests
// =============================================================================

func TestOpen(t *testing.T) {
	t.Run("connects to existing file", func(t *testing.T) {
		dbPath := testDBPath(t)
		if err := os.WriteFile(dbPath, nil, 0600); err != nil {
			t.Fatalf("failed to create empty db file: %v", err)
		}

		conn := openTestConnection(t, dbPath)

		if !conn.IsConnected() {
			t.Fatalf("IsConnected() = false, want true (err = %v)", conn.Err())
		}
		if conn.Name() != dbPath {
			t.Errorf("Name() = %q, want %q", conn.Name(), dbPath)
		}
		if conn.Err() != nil {
			t.Errorf("Err() = %v, want nil", conn.Err())
		}
	})

	t.Run("creates missing file", func(t *testing.T) {
		dbPath := testDBPath(t)

		conn := openTestConnection(t, dbPath)

		if !conn.IsConnected() {
			t.Fatalf("IsConnected() = false, want true (err = %v)", conn.Err())
		}
		if !fileExists(dbPath) {
			t.Error("database file was not created")
		}
	})

	t.Run("empty name is in-memory", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)

		conn := openTestConnection(t, "")

		if !conn.IsConnected() {
			t.Fatalf("IsConnected() = false, want true (err = %v)", conn.Err())
		}
		if conn.Name() != "" {
			t.Errorf("Name() = %q, want empty", conn.Name())
		}
		if err := conn.Execute(context.Background(), queryCreateTableEmployee); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("in-memory database created %d files, want 0", len(entries))
		}
	})

	t.Run("memory marker is in-memory", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)

		conn := openTestConnection(t, ":memory:")

		if !conn.IsConnected() {
			t.Fatalf("IsConnected() = false, want true (err = %v)", conn.Err())
		}
		if conn.Name() != ":memory:" {
			t.Errorf("Name() = %q, want %q", conn.Name(), ":memory:")
		}
		if fileExists(filepath.Join(dir, ":memory:")) {
			t.Error("in-memory marker was treated as a file name")
		}
	})

	t.Run("missing directory fails without panic", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "does", "not", "exist", "test.db")
		obs := &recordingObserver{}

		conn := openTestConnection(t, dbPath, WithObserver(obs))

		if conn.IsConnected() {
			t.Fatal("IsConnected() = true, want false")
		}
		if !errors.Is(conn.Err(), ErrOpenFailed) {
			t.Errorf("Err() = %v, want ErrOpenFailed", conn.Err())
		}
		if got := StatusOf(conn.Err()); got != StatusCantOpen {
			t.Errorf("StatusOf(Err()) = %v, want %v", got, StatusCantOpen)
		}
		if fileExists(filepath.Dir(dbPath)) {
			t.Error("Open() must not create the database directory")
		}
		if !slices.Equal(obs.kinds(), []EventKind{EventOpenFailed}) {
			t.Errorf("events = %v, want [open_failed]", obs.kinds())
		}
	})

	t.Run("read-only directory fails without panic", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("permission checks do not apply to root")
		}
		dir := filepath.Join(t.TempDir(), "readonly")
		if err := os.Mkdir(dir, 0500); err != nil {
			t.Fatalf("Mkdir() error = %v", err)
		}

		conn := openTestConnection(t, filepath.Join(dir, "test.db"))

		if conn.IsConnected() {
			t.Error("IsConnected() = true, want false")
		}
	})
}

func TestOpen_FailedConnectionIsInert(t *testing.T) {
	conn := openTestConnection(t, filepath.Join(t.TempDir(), "missing", "test.db"))
	if conn.IsConnected() {
		t.Fatal("IsConnected() = true, want false")
	}

	if err := conn.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
	if err := conn.Release(); err != nil {
		t.Errorf("Release() error = %v, want nil", err)
	}
	if got := StatusOf(conn.Execute(context.Background(), queryCreateTableEmployee)); got != StatusNotConnected {
		t.Errorf("Execute() status = %v, want %v", got, StatusNotConnected)
	}
	if conn.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
}

func TestOpen_Options(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t, testDBPath(t),
		WithForeignKeys(true),
		WithJournalMode("WAL"),
		WithBusyTimeout(2*time.Second),
	)
	if !conn.IsConnected() {
		t.Fatalf("Open() failed: %v", conn.Err())
	}

	if got := conn.Select(ctx, "pragma foreign_keys")["foreign_keys"]; got != "1" {
		t.Errorf("foreign_keys = %q, want %q", got, "1")
	}
	if got := conn.Select(ctx, "pragma journal_mode")["journal_mode"]; got != "wal" {
		t.Errorf("journal_mode = %q, want %q", got, "wal")
	}
	if got := conn.Select(ctx, "pragma busy_timeout")["timeout"]; got != "2000" {
		t.Errorf("busy_timeout = %q, want %q", got, "2000")
	}
}

func TestDSN(t *testing.T) {
	defaults := options{busyTimeout: defaultBusyTimeout}

	tests := []struct {
		name     string
		opts     options
		input    string
		expected string
	}{
		{
			name:     "empty name",
			opts:     defaults,
			input:    "",
			expected: ":memory:?_busy_timeout=5000",
		},
		{
			name:     "memory marker",
			opts:     defaults,
			input:    ":memory:",
			expected: ":memory:?_busy_timeout=5000",
		},
		{
			name:     "file path",
			opts:     defaults,
			input:    "/data/app.db",
			expected: "file:/data/app.db?_busy_timeout=5000",
		},
		{
			name:     "file URI with parameters",
			opts:     defaults,
			input:    "file:app.db?mode=ro",
			expected: "file:app.db?mode=ro&_busy_timeout=5000",
		},
		{
			name:     "all pragmas",
			opts:     options{busyTimeout: time.Second, foreignKeys: true, journalMode: "WAL"},
			input:    "app.db",
			expected: "file:app.db?_busy_timeout=1000&_foreign_keys=on&_journal_mode=WAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.dsn(tt.input); got != tt.expected {
				t.Errorf("dsn(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Close Tests
// =============================================================================

func TestClose(t *testing.T) {
	t.Run("currently connected", func(t *testing.T) {
		conn := openTestConnection(t, testDBPath(t))
		if !conn.IsConnected() {
			t.Fatalf("Open() failed: %v", conn.Err())
		}

		if err := conn.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		if conn.IsConnected() {
			t.Error("IsConnected() = true after Close(), want false")
		}
	})

	t.Run("twice is a no-op", func(t *testing.T) {
		obs := &recordingObserver{}
		conn := openTestConnection(t, testDBPath(t), WithObserver(obs))

		for i := 0; i < 2; i++ {
			if err := conn.Close(); err != nil {
				t.Errorf("Close() #%d error = %v", i+1, err)
			}
			if conn.IsConnected() {
				t.Errorf("IsConnected() = true after Close() #%d, want false", i+1)
			}
		}

		want := []EventKind{EventOpened, EventClosed, EventAlreadyClosed}
		if !slices.Equal(obs.kinds(), want) {
			t.Errorf("events = %v, want %v", obs.kinds(), want)
		}
	})

	t.Run("database file deleted meanwhile", func(t *testing.T) {
		dbPath := testDBPath(t)
		conn := openTestConnection(t, dbPath)

		if err := os.Remove(dbPath); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}

		if err := conn.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		if conn.IsConnected() {
			t.Error("IsConnected() = true after Close(), want false")
		}
	})
}

func TestClose_TransactionGuard(t *testing.T) {
	finishers := []string{"COMMIT;", "ROLLBACK;", "END TRANSACTION;"}

	for _, finish := range finishers {
		t.Run(strings.TrimSuffix(finish, ";"), func(t *testing.T) {
			ctx := context.Background()
			obs := &recordingObserver{}
			conn := openTestConnection(t, testDBPath(t), WithObserver(obs))

			if err := conn.Execute(ctx, "BEGIN TRANSACTION;"); err != nil {
				t.Fatalf("BEGIN error = %v", err)
			}
			if err := conn.Execute(ctx, queryCreateTableEmployee); err != nil {
				t.Fatalf("CREATE error = %v", err)
			}
			if !conn.InTransaction() {
				t.Fatal("InTransaction() = false after BEGIN, want true")
			}

			if err := conn.Close(); err != nil {
				t.Errorf("Close() during transaction error = %v, want nil", err)
			}
			if !conn.IsConnected() {
				t.Fatal("IsConnected() = false, Close() must not end an open transaction")
			}

			if err := conn.Execute(ctx, finish); err != nil {
				t.Fatalf("%s error = %v", finish, err)
			}
			if conn.InTransaction() {
				t.Error("InTransaction() = true after finishing, want false")
			}

			if err := conn.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
			if conn.IsConnected() {
				t.Error("IsConnected() = true after Close(), want false")
			}

			want := []EventKind{EventOpened, EventCloseRefused, EventClosed}
			if !slices.Equal(obs.kinds(), want) {
				t.Errorf("events = %v, want %v", obs.kinds(), want)
			}
		})
	}
}

// TestClose_BusyDatabase holds a transaction open in one goroutine while
// another tries to close the connection. Close must refuse immediately;
// if it waited for the transaction the test would deadlock.
func TestClose_BusyDatabase(t *testing.T) {
	conn := openTestConnection(t, testDBPath(t))
	if !conn.IsConnected() {
		t.Fatalf("Open() failed: %v", conn.Err())
	}

	locked := make(chan struct{})
	closeAttempted := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		ctx := context.Background()
		for _, query := range []string{
			"BEGIN TRANSACTION;",
			queryCreateTableEmployee,
			queryInsertEmployeeJohn,
			querySelectNameFromEmployee,
		} {
			if err := conn.Execute(ctx, query); err != nil {
				done <- err
				return
			}
		}
		close(locked)

		<-closeAttempted
		done <- conn.Execute(ctx, "COMMIT;")
	}()

	select {
	case <-locked:
	case err := <-done:
		t.Fatalf("locking goroutine failed: %v", err)
	}

	if err := conn.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
	connectedWhileBusy := conn.IsConnected()
	close(closeAttempted)

	if err := <-done; err != nil {
		t.Fatalf("COMMIT error = %v", err)
	}
	if !connectedWhileBusy {
		t.Error("IsConnected() = false, database must not close while busy")
	}

	if err := conn.Close(); err != nil {
		t.Errorf("Close() after COMMIT error = %v", err)
	}
	if conn.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
}

// failingCloser fails Close with err until err is cleared.
type failingCloser struct {
	io.Closer
	err error
}

func (f *failingCloser) Close() error {
	if f.err != nil {
		return f.err
	}
	return f.Closer.Close()
}

func TestClose_ReleaseFailure(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	conn := openTestConnection(t, "", WithObserver(obs))

	pool := &failingCloser{Closer: conn.h.db, err: errors.New("engine refused to close")}
	conn.h.db = pool

	if err := conn.Close(); err == nil {
		t.Fatal("Close() error = nil, want the release failure")
	}
	if conn.h == nil {
		t.Fatal("Close() dropped the handle after a failed release")
	}
	if conn.IsConnected() {
		t.Error("IsConnected() = true after the session was released, want false")
	}
	if err := conn.Execute(ctx, "select 1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Execute() error = %v, want %v", err, ErrNotConnected)
	}

	pool.err = nil
	if err := conn.Close(); err != nil {
		t.Fatalf("retried Close() error = %v", err)
	}
	if conn.h != nil {
		t.Error("retried Close() kept the handle")
	}

	want := []EventKind{EventOpened, EventCloseFailed, EventClosed}
	if got := obs.kinds(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

// =============================================================================
// Release Tests
// =============================================================================

func TestRelease_ClosesDuringTransaction(t *testing.T) {
	ctx := context.Background()
	dbPath := testDBPath(t)
	obs := &recordingObserver{}
	conn := openTestConnection(t, dbPath, WithObserver(obs))

	if err := conn.Execute(ctx, queryCreateTableEmployee); err != nil {
		t.Fatalf("CREATE error = %v", err)
	}
	if err := conn.Execute(ctx, "BEGIN TRANSACTION;"); err != nil {
		t.Fatalf("BEGIN error = %v", err)
	}
	if err := conn.Execute(ctx, queryInsertEmployeeJohn); err != nil {
		t.Fatalf("INSERT error = %v", err)
	}

	if err := conn.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if conn.IsConnected() {
		t.Error("IsConnected() = true after Release(), want false")
	}

	// The uncommitted insert was rolled back by the engine.
	reopened := openTestConnection(t, dbPath)
	if rs := reopened.Select(ctx, "select count(*) as n from employee"); rs["n"] != "0" {
		t.Errorf("rows after forced release = %q, want %q", rs["n"], "0")
	}

	want := []EventKind{EventOpened, EventReleased}
	if !slices.Equal(obs.kinds(), want) {
		t.Errorf("events = %v, want %v", obs.kinds(), want)
	}
}

func TestRelease_Idempotent(t *testing.T) {
	conn := openTestConnection(t, "")

	if err := conn.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	if err := conn.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Close() after Release() error = %v", err)
	}
	if conn.IsConnected() {
		t.Error("IsConnected() = true after Release(), want false")
	}
}

func TestInTransaction_NotConnected(t *testing.T) {
	conn := openTestConnection(t, "")
	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if conn.InTransaction() {
		t.Error("InTransaction() = true on closed connection, want false")
	}
}

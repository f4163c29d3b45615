package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Connection configuration constants.
const (
	// driverName is the database/sql driver registered by mattn/go-sqlite3.
	driverName = "sqlite3"

	// memoryName is SQLite's marker for a private in-memory database.
	memoryName = ":memory:"

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// defaultBusyTimeout is how long SQLite waits on a locked database.
	defaultBusyTimeout = 5 * time.Second
)

// Logger is the diagnostic sink of a Connection.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Connection owns a single handle to an embedded SQLite database.
//
// It tracks connectivity, executes statements and keeps the result set of
// the most recent Select. A Connection is created by Open and must only be
// used through the returned pointer; copying it would duplicate ownership of
// the handle.
//
// Thread Safety:
//   - A Connection is not synchronized. Callers sharing one across
//     goroutines must serialize access themselves.
//   - Close never waits for another goroutine's transaction; it refuses
//     immediately instead.
type Connection struct {
	_ noCopy

	name      string
	h         *handle
	connected bool
	openErr   error
	last      ResultSet
	cleanup   runtime.Cleanup
	opts      options
}

// noCopy makes go vet's copylocks check flag copies of a Connection.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// handle is the engine session: a single pinned connection and the pool
// that owns it. Both are released together. The engine database is closed
// by the pool, so db stays set until its Close succeeds.
type handle struct {
	db   io.Closer
	conn *sql.Conn
}

type options struct {
	logger      Logger
	observer    Observer
	output      io.Writer
	busyTimeout time.Duration
	foreignKeys bool
	journalMode string
}

// Option configures a Connection at Open.
type Option func(*options)

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver registers an observer for lifecycle events and statements.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithOutput sets the stream Execute prints result rows to. Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

// WithBusyTimeout sets how long SQLite waits for a lock before reporting SQLITE_BUSY.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.busyTimeout = d
		}
	}
}

// WithForeignKeys enables foreign key enforcement.
func WithForeignKeys(enabled bool) Option {
	return func(o *options) {
		o.foreignKeys = enabled
	}
}

// WithJournalMode sets the SQLite journal mode (e.g. "WAL"). Empty keeps the engine default.
func WithJournalMode(mode string) Option {
	return func(o *options) {
		o.journalMode = mode
	}
}

// Open connects to the SQLite database identified by name.
//
// An empty name or ":memory:" opens a private in-memory database. Any other
// name is a file path; the file is created by the engine if it does not
// exist, but its directory is not.
//
// Open always returns a usable *Connection. When the engine cannot be
// opened the failure is logged with the engine's code and message, any
// partially acquired resources are released, IsConnected reports false for
// the lifetime of the instance and Err returns the cause. Construct a new
// Connection to retry.
//
// Parameters:
//   - ctx: Context bounding the open and its connectivity check
//   - name: Data source name, kept verbatim for Name()
//   - opts: Optional settings
//
// Returns:
//   - *Connection: Never nil
func Open(ctx context.Context, name string, opts ...Option) *Connection {
	c := &Connection{
		name: name,
		opts: options{
			logger:      slog.Default(),
			output:      io.Discard,
			busyTimeout: defaultBusyTimeout,
		},
	}
	for _, opt := range opts {
		opt(&c.opts)
	}

	h, err := openHandle(ctx, c.opts.dsn(name))
	if err != nil {
		status := StatusOf(err)
		c.openErr = fmt.Errorf("%w: %w", ErrOpenFailed, err)
		c.opts.logger.Error("failed to connect to DB",
			"name", name,
			"rc", int(status),
			"error", err,
		)
		c.notify(EventOpenFailed, status, c.openErr)
		return c
	}

	c.h = h
	c.connected = true
	c.cleanup = runtime.AddCleanup(c, releaseUnreachable, unreachableHandle{
		h:      h,
		name:   name,
		logger: c.opts.logger,
	})

	c.opts.logger.Info("connected to DB", "name", name)
	c.notify(EventOpened, StatusOK, nil)

	return c
}

// openHandle opens the pool, pins its single connection and pings it.
// On failure everything acquired so far is released.
func openHandle(ctx context.Context, dsn string) (*handle, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One engine session per Connection: the pinned conn below is the only
	// one the pool may ever create.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	h := &handle{db: sqlDB}

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		_ = h.release() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	h.conn = conn

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		_ = h.release() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	return h, nil
}

// dsn builds the mattn/go-sqlite3 connection string.
// See: https://github.com/mattn/go-sqlite3#connection-string
func (o options) dsn(name string) string {
	params := url.Values{}
	params.Set("_busy_timeout", strconv.FormatInt(o.busyTimeout.Milliseconds(), 10))
	if o.foreignKeys {
		params.Set("_foreign_keys", "on")
	}
	if o.journalMode != "" {
		params.Set("_journal_mode", o.journalMode)
	}

	var target string
	switch {
	case isMemory(name):
		target = memoryName
	case strings.HasPrefix(name, "file:"):
		target = name
	default:
		target = "file:" + name
	}

	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + params.Encode()
}

func isMemory(name string) bool {
	return name == "" || name == memoryName
}

// release closes the pinned connection and its pool. It is idempotent and
// may be retried after a failure: the pinned connection is finished by its
// first Close whatever the outcome, the pool is kept until it closes.
func (h *handle) release() error {
	var errs []error
	if h.conn != nil {
		if err := h.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, err)
		}
		h.conn = nil
	}
	if h.db != nil {
		if err := h.db.Close(); err != nil {
			errs = append(errs, err)
		} else {
			h.db = nil
		}
	}
	return errors.Join(errs...)
}

// autocommit reports whether the engine is in autocommit mode, which is
// false while a transaction started with BEGIN is open.
func (h *handle) autocommit() (bool, error) {
	autocommit := true
	err := h.conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		autocommit = sc.AutoCommit()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("reading autocommit state: %w", err)
	}
	return autocommit, nil
}

// unreachableHandle is what the runtime cleanup needs to release a handle
// whose Connection was dropped without Close or Release. It must not
// reference the Connection itself.
type unreachableHandle struct {
	h      *handle
	name   string
	logger Logger
}

func releaseUnreachable(u unreachableHandle) {
	if u.h.db == nil {
		return
	}
	if err := u.h.release(); err != nil {
		u.logger.Error("failed to force disconnect from DB", "name", u.name, "error", err)
		return
	}
	u.logger.Info("disconnected from DB", "name", u.name, "reason", "connection unreachable")
}

// IsConnected reports whether the connection is open and usable.
// After a failed Close the handle is kept for a retry, but the session is
// gone and IsConnected reports false.
func (c *Connection) IsConnected() bool {
	return c.usable()
}

// Name returns the data source name exactly as given to Open.
func (c *Connection) Name() string {
	return c.name
}

// Err returns the reason Open failed, or nil if it succeeded.
// The error wraps ErrOpenFailed and the engine error.
func (c *Connection) Err() error {
	return c.openErr
}

// usable reports whether statements may be sent to the engine.
func (c *Connection) usable() bool {
	return c.connected && c.h != nil && c.h.conn != nil
}

// InTransaction reports whether a transaction is open on the connection.
// It returns false when not connected or when the state cannot be read.
func (c *Connection) InTransaction() bool {
	if !c.usable() {
		return false
	}
	autocommit, err := c.h.autocommit()
	if err != nil {
		c.opts.logger.Warn("failed to read transaction state", "name", c.name, "error", err)
		return false
	}
	return !autocommit
}

// Close releases the connection unless a transaction is open.
//
// Behaviour:
//   - Already closed (or never opened): no-op, returns nil
//   - Transaction open: refuses without waiting, stays connected, returns nil;
//     COMMIT or ROLLBACK first, and check IsConnected to confirm
//   - Otherwise: releases the handle and marks the connection closed
//
// Close never reopens a connection.
//
// Returns:
//   - error: If the transaction state cannot be read or the engine fails to
//     release the handle. The handle is then kept, so Close or Release may
//     be retried, but no further statements run on it
func (c *Connection) Close() error {
	if c.h == nil {
		c.opts.logger.Info("DB has already been closed", "name", c.name)
		c.notify(EventAlreadyClosed, StatusOK, nil)
		return nil
	}

	if c.h.conn != nil {
		autocommit, err := c.h.autocommit()
		if err != nil {
			c.opts.logger.Error("failed to disconnect from DB", "name", c.name, "error", err)
			c.notify(EventCloseFailed, StatusOf(err), err)
			return err
		}
		if !autocommit {
			c.opts.logger.Info("will not close DB, please finish your transaction", "name", c.name)
			c.notify(EventCloseRefused, StatusOK, nil)
			return nil
		}
	}

	if err := c.h.release(); err != nil {
		status := StatusOf(err)
		c.opts.logger.Error("failed to disconnect from DB",
			"name", c.name,
			"rc", int(status),
			"error", err,
		)
		c.notify(EventCloseFailed, status, err)
		return fmt.Errorf("closing database: %w", err)
	}

	c.cleanup.Stop()
	c.h = nil
	c.connected = false

	c.opts.logger.Info("disconnected from DB", "name", c.name)
	c.notify(EventClosed, StatusOK, nil)

	return nil
}

// Release force-closes the connection regardless of transaction state.
//
// An open transaction is rolled back by the engine. This is the
// end-of-life path: afterwards the connection is closed even if the
// engine reported an error, which is logged and returned. Calling Release
// on a closed connection is a no-op.
func (c *Connection) Release() error {
	if c.h == nil {
		return nil
	}

	c.cleanup.Stop()
	err := c.h.release()
	c.h = nil
	c.connected = false

	if err != nil {
		status := StatusOf(err)
		c.opts.logger.Error("failed to force disconnect from DB",
			"name", c.name,
			"rc", int(status),
			"error", err,
		)
		c.notify(EventReleaseFailed, status, err)
		return fmt.Errorf("releasing database: %w", err)
	}

	c.opts.logger.Info("disconnected from DB", "name", c.name)
	c.notify(EventReleased, StatusOK, nil)

	return nil
}

// LastResult returns a copy of the result set kept from the most recent Select.
func (c *Connection) LastResult() ResultSet {
	return c.last.Clone()
}

func (c *Connection) notify(kind EventKind, status Status, err error) {
	if c.opts.observer == nil {
		return
	}
	c.opts.observer.ConnectionEvent(Event{
		Kind:       kind,
		Connection: c.name,
		Status:     status,
		Err:        err,
		Time:       time.Now(),
	})
}

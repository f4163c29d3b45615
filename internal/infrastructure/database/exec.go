package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Execute runs the SQL statements in query, in order, stopping at the
// first failure.
//
// Rows produced by the statements are printed to the connection's output
// stream (see WithOutput); the kept result set is not modified. Text made
// only of whitespace and comments succeeds without running anything.
//
// Parameters:
//   - ctx: Context for cancellation; cancellation interrupts the engine
//   - query: SQL statement; empty means no query was supplied
//
// Returns:
//   - error: nil on success. ErrNoQuery and ErrNotConnected are returned
//     without touching the engine; engine failures wrap sqlite3.Error.
//     StatusOf(err) yields the numeric status in every case.
func (c *Connection) Execute(ctx context.Context, query string) error {
	start := time.Now()

	if query == "" {
		c.observe(KindExecute, 0, start, ErrNoQuery)
		return ErrNoQuery
	}

	if !c.usable() {
		c.opts.logger.Error("cannot execute query, not connected to DB", "name", c.name)
		c.observe(KindExecute, 0, start, ErrNotConnected)
		return ErrNotConnected
	}

	out := c.opts.output
	rows, err := c.exec(ctx, query, func(row Row) CallbackCode {
		return PrintRow(out, row)
	})
	if err != nil {
		c.logStatementError(query, err)
		err = fmt.Errorf("executing statement: %w", err)
	}

	c.observe(KindExecute, rows, start, err)
	return err
}

// Select runs the statements in query and collects their rows into a
// ResultSet.
//
// Rows are accumulated by column name into a fresh result set, so each
// column holds the value of the last row that produced it. The result set
// is kept on the connection (see LastResult) and a copy is returned.
//
// When not connected, or when query is empty, an empty ResultSet is
// returned without touching the engine or the kept result set. Engine
// errors are logged; whatever was collected before the error is kept and
// returned.
func (c *Connection) Select(ctx context.Context, query string) ResultSet {
	start := time.Now()

	if query == "" {
		c.opts.logger.Warn("cannot select, no query supplied", "name", c.name)
		c.observe(KindSelect, 0, start, ErrNoQuery)
		return ResultSet{}
	}

	if !c.usable() {
		c.opts.logger.Error("cannot execute query, not connected to DB", "name", c.name)
		c.observe(KindSelect, 0, start, ErrNotConnected)
		return ResultSet{}
	}

	results := ResultSet{}
	rows, err := c.exec(ctx, query, func(row Row) CallbackCode {
		return SaveRow(results, row)
	})
	if err != nil {
		c.logStatementError(query, err)
	}

	c.last = results
	c.observe(KindSelect, rows, start, err)

	return results.Clone()
}

// SelectRows runs the statements in query and returns one ResultSet per row, in
// the order the engine produced them. Unlike Select it neither merges rows
// nor touches the kept result set.
func (c *Connection) SelectRows(ctx context.Context, query string) ([]ResultSet, error) {
	start := time.Now()

	if query == "" {
		c.observe(KindSelect, 0, start, ErrNoQuery)
		return nil, ErrNoQuery
	}

	if !c.usable() {
		c.opts.logger.Error("cannot execute query, not connected to DB", "name", c.name)
		c.observe(KindSelect, 0, start, ErrNotConnected)
		return nil, ErrNotConnected
	}

	var results []ResultSet
	rows, err := c.exec(ctx, query, func(row Row) CallbackCode {
		rs := ResultSet{}
		if code := SaveRow(rs, row); code != CallbackOK {
			return code
		}
		results = append(results, rs)
		return CallbackOK
	})
	if err != nil {
		c.logStatementError(query, err)
		err = fmt.Errorf("executing statement: %w", err)
	}

	c.observe(KindSelect, rows, start, err)
	return results, err
}

// ExecuteScript runs every statement in script, in order, stopping at the
// first failure. No rows are delivered. The status codes match Execute.
func (c *Connection) ExecuteScript(ctx context.Context, script string) error {
	start := time.Now()

	if script == "" {
		c.observe(KindScript, 0, start, ErrNoQuery)
		return ErrNoQuery
	}

	if !c.usable() {
		c.opts.logger.Error("cannot execute script, not connected to DB", "name", c.name)
		c.observe(KindScript, 0, start, ErrNotConnected)
		return ErrNotConnected
	}

	var err error
	for _, stmt := range SplitStatements(script) {
		if err = ctx.Err(); err != nil {
			break
		}
		if _, err = c.h.conn.ExecContext(ctx, stmt); err != nil {
			break
		}
	}
	if err != nil {
		c.logStatementError(script, err)
		err = fmt.Errorf("executing script: %w", err)
	}

	c.observe(KindScript, 0, start, err)
	return err
}

// exec is the execution primitive shared by the statement operations.
// Every statement in query runs in order and delivers its rows to
// callback. Execution stops at the first failing statement or the first
// non-zero verdict, which fails the call with an *AbortError. Text holding
// no statement succeeds without touching the engine.
//
// Returns the number of rows delivered.
func (c *Connection) exec(ctx context.Context, query string, callback RowCallback) (int, error) {
	delivered := 0
	for _, stmt := range SplitStatements(query) {
		n, err := c.execStatement(ctx, stmt, callback)
		delivered += n
		if err != nil {
			return delivered, err
		}
	}
	return delivered, nil
}

// execStatement runs a single statement. The engine steps it while the
// rows are read, so statements returning no rows run inside rows.Next too.
func (c *Connection) execStatement(ctx context.Context, stmt string, callback RowCallback) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	rows, err := c.h.conn.QueryContext(ctx, stmt)
	if err != nil {
		return 0, err
	}
	defer rows.Close() //nolint:errcheck // Close error is surfaced via rows.Err

	names, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	delivered := 0
	for rows.Next() {
		values := make([]sql.NullString, len(names))
		dest := make([]any, len(names))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return delivered, err
		}

		delivered++
		if code := callback(Row{Count: len(names), Names: names, Values: values}); code != CallbackOK {
			return delivered, &AbortError{Code: code}
		}
	}

	if err := rows.Err(); err != nil {
		return delivered, err
	}

	return delivered, nil
}

func (c *Connection) logStatementError(query string, err error) {
	c.opts.logger.Error("query execution returned an error",
		"name", c.name,
		"rc", int(StatusOf(err)),
		"error", err,
		"query", query,
	)
}

func (c *Connection) observe(kind StatementKind, rows int, start time.Time, err error) {
	if c.opts.observer == nil {
		return
	}
	c.opts.observer.StatementExecuted(Statement{
		Connection: c.name,
		Kind:       kind,
		Status:     StatusOf(err),
		Rows:       rows,
		Duration:   time.Since(start),
		Err:        err,
	})
}

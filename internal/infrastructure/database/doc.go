// Package database provides a managed connection to an embedded SQLite database.
//
// A Connection owns exactly one engine session and exposes a small surface:
//   - Open / IsConnected / Name / Err for the connection lifecycle
//   - Execute for statements whose rows are only printed
//   - Select for statements whose rows are collected into a ResultSet
//   - Close, which refuses while a transaction is open
//   - Release, which closes unconditionally (the end-of-life path)
//
// Query text may hold several statements; they run in order and the first
// failure ends the call. SplitStatements exposes the same splitting.
//
// Status Codes:
//
// Every statement outcome maps to a Status via StatusOf. Zero is success,
// positive codes are SQLite result codes passed through verbatim, and the
// negative codes StatusNoQuery and StatusNotConnected are produced by this
// package before any engine interaction.
//
// Result Sets:
//
// A ResultSet is a flat column-name to value mapping. When a statement
// returns several rows the last row wins for each column name; SelectRows
// returns one mapping per row instead. NULL values appear as the string
// "NULL".
//
// Thread Safety:
//
// A Connection is not synchronized; serialize access when sharing one.
// Close does not wait for another goroutine's transaction, it refuses.
//
// Usage:
//
//	conn := database.Open(ctx, "app.db", database.WithLogger(logger))
//	if !conn.IsConnected() {
//	    return conn.Err()
//	}
//	defer conn.Release() //nolint:errcheck // Release logs its own failure
//
//	if err := conn.Execute(ctx, "insert into employee (id, name) values (1, 'John Paul')"); err != nil {
//	    log.Printf("insert failed: rc=%d", database.StatusOf(err))
//	}
//	rs := conn.Select(ctx, "select name from employee")
//	fmt.Println(rs["name"])
package database

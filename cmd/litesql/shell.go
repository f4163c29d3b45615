package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/nerrad567/litesql/internal/infrastructure/database"
)

// statementTracker remembers the outcome of the last statement and passes
// everything on to next.
type statementTracker struct {
	next database.Observer
	last database.Statement
}

func (t *statementTracker) ConnectionEvent(ev database.Event) {
	if t.next != nil {
		t.next.ConnectionEvent(ev)
	}
}

func (t *statementTracker) StatementExecuted(st database.Statement) {
	t.last = st
	if t.next != nil {
		t.next.StatementExecuted(st)
	}
}

// rowKeywords start statements that are run through Select.
var rowKeywords = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"PRAGMA":  true,
	"VALUES":  true,
	"EXPLAIN": true,
}

// returnsRows reports whether stmt starts with a row-returning keyword.
func returnsRows(stmt string) bool {
	trimmed := strings.TrimLeft(stmt, " \t\r\n(")
	end := strings.IndexFunc(trimmed, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(trimmed)
	}
	return rowKeywords[strings.ToUpper(trimmed[:end])]
}

// runStatement runs one statement. Row-returning statements go through
// Select and print the merged result set; everything else goes through
// Execute, which prints rows itself.
func runStatement(ctx context.Context, conn *database.Connection, tracker *statementTracker, out io.Writer, stmt string) error {
	stmt = strings.TrimSpace(stmt)

	if returnsRows(stmt) {
		rs := conn.Select(ctx, stmt)
		if st := tracker.last; st.Status != database.StatusOK {
			return statementError(st.Status, st.Err)
		}
		printResult(out, rs)
		return nil
	}

	if err := conn.Execute(ctx, stmt); err != nil {
		return statementError(database.StatusOf(err), err)
	}
	return nil
}

// runStatements splits text into statements and runs them in order,
// stopping at the first failure.
func runStatements(ctx context.Context, conn *database.Connection, tracker *statementTracker, out io.Writer, text string) error {
	for _, stmt := range database.SplitStatements(text) {
		if err := runStatement(ctx, conn, tracker, out, stmt); err != nil {
			return err
		}
	}
	return nil
}

func statementError(status database.Status, err error) error {
	if err == nil {
		err = errors.New(status.String())
	}
	return fmt.Errorf("rc %d: %w", int(status), err)
}

// printResult writes rs as sorted "name -> value" lines.
func printResult(out io.Writer, rs database.ResultSet) {
	for _, name := range rs.Keys() {
		fmt.Fprintf(out, "%s -> %s\n", name, rs[name])
	}
}

// shell is the interactive prompt. Input is buffered until it ends with a
// complete statement and then run statement by statement; lines starting
// with a dot are shell commands.
type shell struct {
	conn    *database.Connection
	tracker *statementTracker
	in      *bufio.Reader
	out     io.Writer
}

func newShell(conn *database.Connection, tracker *statementTracker, in io.Reader, out io.Writer) *shell {
	return &shell{
		conn:    conn,
		tracker: tracker,
		in:      bufio.NewReader(in),
		out:     out,
	}
}

func (s *shell) prompt(multiLine bool) string {
	if multiLine {
		return "   ...> "
	}
	return "litesql> "
}

// run reads and executes input until EOF, .quit or ctx is cancelled.
func (s *shell) run(ctx context.Context) error {
	fmt.Fprintf(s.out, "litesql %s on %s\n", version, displayName(s.conn.Name()))
	fmt.Fprintln(s.out, "Type .help for commands, .quit to exit")

	var buf strings.Builder

	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(s.out, s.prompt(buf.Len() > 0))

		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ".") {
			if quit := s.handleCommand(line); quit {
				return nil
			}
			continue
		}

		buf.WriteString(line)
		buf.WriteString("\n")
		if !database.IsComplete(buf.String()) {
			continue
		}
		input := buf.String()
		buf.Reset()

		if err := runStatements(ctx, s.conn, s.tracker, s.out, input); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

// handleCommand runs a dot command and reports whether the shell should exit.
func (s *shell) handleCommand(input string) bool {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(input)))

	switch parts[0] {
	case ".quit", ".exit", ".q":
		return true
	case ".help", ".h":
		s.printHelp()
	case ".status":
		fmt.Fprintf(s.out, "database:       %s\n", displayName(s.conn.Name()))
		fmt.Fprintf(s.out, "connected:      %t\n", s.conn.IsConnected())
		fmt.Fprintf(s.out, "in transaction: %t\n", s.conn.InTransaction())
		if st := s.tracker.last; st.Kind != "" {
			fmt.Fprintf(s.out, "last statement: %s, rc %d (%s), %d rows, %s\n",
				st.Kind, int(st.Status), st.Status, st.Rows, st.Duration)
		}
	case ".last":
		printResult(s.out, s.conn.LastResult())
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  .help, .h        Show this help message")
	fmt.Fprintln(s.out, "  .quit, .exit     Exit the shell")
	fmt.Fprintln(s.out, "  .status          Show connection state and the last statement")
	fmt.Fprintln(s.out, "  .last            Print the result of the last SELECT")
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Statements end with ';' and may span several lines. Several")
	fmt.Fprintln(s.out, "statements on one line run in order until one fails.")
	fmt.Fprintln(s.out, "SELECT, WITH, PRAGMA, VALUES and EXPLAIN print one merged row;")
	fmt.Fprintln(s.out, "other statements print every row they return.")
}

package database

import "strings"

// Lexical classes seen by the statement splitter.
type tokenKind int

const (
	tokSemi tokenKind = iota
	tokSpace
	tokOther
	tokExplain
	tokCreate
	tokTemp
	tokTrigger
	tokEnd
)

// Splitter states. A statement is complete when a semicolon leaves the
// machine in stateStart.
const (
	stateStart = iota
	stateNormal
	stateExplain
	stateCreate
	stateTrigger
	stateSemi
	stateEnd
)

// transitions follows SQLite's sqlite3_complete: semicolons inside a
// CREATE TRIGGER body only end the statement after the closing END.
var transitions = [...][8]int{
	//               SEMI        SPACE          OTHER         EXPLAIN       CREATE       TEMP          TRIGGER       END
	stateStart:   {stateStart, stateStart, stateNormal, stateExplain, stateCreate, stateNormal, stateNormal, stateNormal},
	stateNormal:  {stateStart, stateNormal, stateNormal, stateNormal, stateNormal, stateNormal, stateNormal, stateNormal},
	stateExplain: {stateStart, stateExplain, stateExplain, stateNormal, stateCreate, stateNormal, stateNormal, stateNormal},
	stateCreate:  {stateStart, stateCreate, stateNormal, stateNormal, stateNormal, stateCreate, stateTrigger, stateNormal},
	stateTrigger: {stateSemi, stateTrigger, stateTrigger, stateTrigger, stateTrigger, stateTrigger, stateTrigger, stateTrigger},
	stateSemi:    {stateSemi, stateSemi, stateTrigger, stateTrigger, stateTrigger, stateTrigger, stateTrigger, stateEnd},
	stateEnd:     {stateStart, stateEnd, stateTrigger, stateTrigger, stateTrigger, stateTrigger, stateTrigger, stateTrigger},
}

var keywords = map[string]tokenKind{
	"create":    tokCreate,
	"end":       tokEnd,
	"explain":   tokExplain,
	"temp":      tokTemp,
	"temporary": tokTemp,
	"trigger":   tokTrigger,
}

// SplitStatements splits sql into the statements the engine would run one
// after another. Each statement keeps its terminating semicolon. Text made
// only of whitespace, comments and semicolons yields no statement; a final
// statement without a semicolon is returned as is, even when incomplete,
// so the engine can report it.
func SplitStatements(sql string) []string {
	var stmts []string

	state := stateStart
	start := 0
	content := false

	for pos := 0; pos < len(sql); {
		kind, next := nextToken(sql, pos)
		state = transitions[state][kind]
		pos = next

		switch {
		case kind == tokSemi && state == stateStart:
			if content {
				stmts = append(stmts, strings.TrimSpace(sql[start:pos]))
			}
			start = pos
			content = false
		case kind != tokSemi && kind != tokSpace:
			content = true
		}
	}

	if content {
		stmts = append(stmts, strings.TrimSpace(sql[start:]))
	}
	return stmts
}

// IsComplete reports whether sql ends with a complete statement, that is a
// semicolon outside of any literal, comment or trigger body, followed only
// by whitespace or comments.
func IsComplete(sql string) bool {
	state := stateStart
	ended := false

	for pos := 0; pos < len(sql); {
		kind, next := nextToken(sql, pos)
		state = transitions[state][kind]
		pos = next

		switch {
		case kind == tokSemi:
			ended = state == stateStart
		case kind != tokSpace:
			ended = false
		}
	}
	return ended
}

// nextToken classifies the token starting at pos and returns the offset
// just past it.
func nextToken(sql string, pos int) (tokenKind, int) {
	c := sql[pos]

	switch {
	case c == ';':
		return tokSemi, pos + 1

	case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
		return tokSpace, pos + 1

	case c == '-' && pos+1 < len(sql) && sql[pos+1] == '-':
		end := strings.IndexByte(sql[pos:], '\n')
		if end < 0 {
			return tokSpace, len(sql)
		}
		return tokSpace, pos + end + 1

	case c == '/' && pos+1 < len(sql) && sql[pos+1] == '*':
		end := strings.Index(sql[pos+2:], "*/")
		if end < 0 {
			return tokSpace, len(sql)
		}
		return tokSpace, pos + 2 + end + 2

	case c == '\'' || c == '"' || c == '`':
		return tokOther, skipPast(sql, pos+1, c)

	case c == '[':
		return tokOther, skipPast(sql, pos+1, ']')

	case isIdentChar(c):
		end := pos + 1
		for end < len(sql) && isIdentChar(sql[end]) {
			end++
		}
		if kind, ok := keywords[strings.ToLower(sql[pos:end])]; ok {
			return kind, end
		}
		return tokOther, end
	}

	return tokOther, pos + 1
}

// skipPast returns the offset just past the next quote at or after pos,
// or the end of sql for an unterminated literal. A doubled quote is read
// as two adjacent literals, which classifies the same way.
func skipPast(sql string, pos int, quote byte) int {
	end := strings.IndexByte(sql[pos:], quote)
	if end < 0 {
		return len(sql)
	}
	return pos + end + 1
}

func isIdentChar(c byte) bool {
	return c >= 0x80 || c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

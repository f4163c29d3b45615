package database

import (
	"database/sql"
	"fmt"
	"io"
	"maps"
	"slices"
)

// nullValue is stored and printed for columns whose value is SQL NULL.
const nullValue = "NULL"

// ResultSet maps column names to values.
//
// It is a single flat mapping: when a statement yields several rows, each
// column name holds the value from the last row processed, and duplicate
// column names within a row resolve to the rightmost column. Use
// Connection.SelectRows for one mapping per row.
type ResultSet map[string]string

// Clone returns an independent copy. Cloning a nil ResultSet yields an empty one.
func (rs ResultSet) Clone() ResultSet {
	if rs == nil {
		return ResultSet{}
	}
	return maps.Clone(rs)
}

// Keys returns the column names in sorted order.
func (rs ResultSet) Keys() []string {
	return slices.Sorted(maps.Keys(rs))
}

// Row is one result row as delivered by the engine.
//
// A nil Names or Values slice means the engine supplied no array at all,
// which is distinct from an empty one.
type Row struct {
	Count  int
	Names  []string
	Values []sql.NullString
}

// value returns the i-th value, or nullValue when the engine supplied none.
func (r Row) value(i int) string {
	if !r.Values[i].Valid {
		return nullValue
	}
	return r.Values[i].String
}

// CallbackCode is a row callback's verdict. Zero continues delivery; any
// other value aborts the statement.
type CallbackCode int

// Row callback codes.
const (
	CallbackOK           CallbackCode = 0
	CallbackInvalidCount CallbackCode = 1
	CallbackNoValues     CallbackCode = 2
	CallbackNoColumns    CallbackCode = 3
	CallbackNoTarget     CallbackCode = 4
)

func (c CallbackCode) String() string {
	switch c {
	case CallbackOK:
		return "ok"
	case CallbackInvalidCount:
		return "invalid column count"
	case CallbackNoValues:
		return "no values supplied"
	case CallbackNoColumns:
		return "column names missing"
	case CallbackNoTarget:
		return "no result set to save into"
	default:
		return fmt.Sprintf("callback code %d", int(c))
	}
}

// RowCallback is invoked once per result row while a statement executes.
type RowCallback func(row Row) CallbackCode

// validateRow checks a row's shape. The order of the checks is fixed:
// column count, then values, then column names. A count exceeding the
// supplied arrays is reported as an invalid count once both arrays exist.
func validateRow(row Row) CallbackCode {
	if row.Count < 0 {
		return CallbackInvalidCount
	}
	if row.Values == nil {
		return CallbackNoValues
	}
	if row.Names == nil {
		return CallbackNoColumns
	}
	if row.Count > len(row.Values) || row.Count > len(row.Names) {
		return CallbackInvalidCount
	}
	return CallbackOK
}

// PrintRow writes each column of row to w as "name -> value", one per line.
// NULL values are written as the literal NULL. It mutates nothing.
func PrintRow(w io.Writer, row Row) CallbackCode {
	if code := validateRow(row); code != CallbackOK {
		return code
	}

	for i := 0; i < row.Count; i++ {
		_, _ = fmt.Fprintf(w, "%s -> %s\n", row.Names[i], row.value(i))
	}

	return CallbackOK
}

// SaveRow stores each column of row into target, overwriting any value
// already held under the same column name.
//
// Returns CallbackNoTarget if target is nil; that check runs after the
// row shape checks.
func SaveRow(target ResultSet, row Row) CallbackCode {
	if code := validateRow(row); code != CallbackOK {
		return code
	}
	if target == nil {
		return CallbackNoTarget
	}

	for i := 0; i < row.Count; i++ {
		target[row.Names[i]] = row.value(i)
	}

	return CallbackOK
}

package cblgo

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"

	"github.com/obinnaokechukwu/cblgo/native"
	"github.com/obinnaokechukwu/cblgo/ref"
)

// QueryLanguage selects the syntax of a query string.
type QueryLanguage = native.QueryLanguage

// Query languages.
const (
	JSONLanguage = native.QueryJSON
	N1QLLanguage = native.QueryN1QL
)

// QueryError is a query that failed to compile. Position is the byte offset
// of the error in the query text, or -1 if unknown.
type QueryError struct {
	Position int
	Err      error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("cblgo: query: %v", e.Err)
	}
	return fmt.Sprintf("cblgo: query error at position %d: %v", e.Position, e.Err)
}

// Unwrap returns the native error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Query is a compiled query. It owns one native reference.
type Query struct {
	r *ref.Ref
}

// NewQuery compiles text. A syntax error is returned as *QueryError.
func (d *Database) NewQuery(lang QueryLanguage, text string) (*Query, error) {
	defer runtime.KeepAlive(d)
	lib, p, err := d.borrow("new query")
	if err != nil {
		return nil, err
	}
	pos := int32(-1)
	r, err := ref.Acquire(lib, native.KindQuery, "CBLDatabase_CreateQuery", func(st *native.Status) native.Ptr {
		return lib.CreateQuery(p, lang, text, &pos, st)
	})
	if err != nil {
		return nil, &QueryError{Position: int(pos), Err: err}
	}
	return &Query{r: r}, nil
}

func (q *Query) borrow(op string) (native.Library, native.Ptr, error) {
	if q == nil {
		return nil, 0, ErrNilArgument
	}
	h, err := q.r.Borrow()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return q.r.Library(), h.Ptr(), nil
}

// ColumnCount returns the number of result columns.
func (q *Query) ColumnCount() (int, error) {
	defer runtime.KeepAlive(q)
	lib, p, err := q.borrow("column count")
	if err != nil {
		return 0, err
	}
	return lib.QueryColumnCount(p), nil
}

// ColumnNames returns the result column names.
func (q *Query) ColumnNames() ([]string, error) {
	defer runtime.KeepAlive(q)
	lib, p, err := q.borrow("column names")
	if err != nil {
		return nil, err
	}
	return columnNames(lib, p), nil
}

func columnNames(lib native.Library, q native.Ptr) []string {
	names := make([]string, lib.QueryColumnCount(q))
	for i := range names {
		names[i] = lib.QueryColumnName(q, i)
	}
	return names
}

// Execute runs the query.
func (q *Query) Execute() (*ResultSet, error) {
	defer runtime.KeepAlive(q)
	lib, p, err := q.borrow("execute")
	if err != nil {
		return nil, err
	}
	names := columnNames(lib, p)
	r, err := ref.Acquire(lib, native.KindResultSet, "CBLQuery_Execute", func(st *native.Status) native.Ptr {
		return lib.ExecuteQuery(p, st)
	})
	if err != nil {
		return nil, err
	}
	return &ResultSet{r: r, columns: names}, nil
}

// Release gives back the wrapper's reference. Only the first call has an
// effect; later calls return ErrReleased.
func (q *Query) Release() error {
	if q == nil {
		return ErrNilArgument
	}
	return q.r.Release()
}

// ResultSet iterates over query results. It owns one native reference.
//
//	rs, err := q.Execute()
//	if err != nil {
//	    return err
//	}
//	defer rs.Release()
//	for rs.Next() {
//	    fmt.Println(rs.Row().Values())
//	}
//	return rs.Err()
type ResultSet struct {
	r       *ref.Ref
	columns []string
	row     Row
	err     error
}

// Next advances to the next row. It returns false at the end or on error;
// check Err.
func (rs *ResultSet) Next() bool {
	if rs == nil || rs.err != nil {
		return false
	}
	defer runtime.KeepAlive(rs)
	h, err := rs.r.Borrow()
	if err != nil {
		rs.err = err
		return false
	}
	lib := rs.r.Library()
	if !lib.ResultSetNext(h.Ptr()) {
		rs.row = Row{}
		return false
	}
	data, err := native.CallValue("CBLResultSet_ResultArray", lib, func(st *native.Status) string {
		return lib.ResultSetRowJSON(h.Ptr(), st)
	})
	if err != nil {
		rs.err = err
		return false
	}
	var values []any
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		rs.err = fmt.Errorf("cblgo: decoding result row: %w", err)
		return false
	}
	rs.row = Row{columns: rs.columns, values: values}
	return true
}

// Row returns the current row.
func (rs *ResultSet) Row() Row {
	return rs.row
}

// Err returns the error that stopped iteration, if any.
func (rs *ResultSet) Err() error {
	if rs == nil {
		return ErrNilArgument
	}
	return rs.err
}

// Release gives back the wrapper's reference. Only the first call has an
// effect; later calls return ErrReleased.
func (rs *ResultSet) Release() error {
	if rs == nil {
		return ErrNilArgument
	}
	return rs.r.Release()
}

// Row is one query result.
type Row struct {
	columns []string
	values  []any
}

// Values returns the row's values in column order.
func (r Row) Values() []any {
	return r.values
}

// Value returns column i, or nil if out of range.
func (r Row) Value(i int) any {
	if i < 0 || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

// Dict returns the row keyed by column name.
func (r Row) Dict() map[string]any {
	out := make(map[string]any, len(r.values))
	for i, v := range r.values {
		if i < len(r.columns) && r.columns[i] != "" {
			out[r.columns[i]] = v
		} else {
			out[fmt.Sprintf("$%d", i+1)] = v
		}
	}
	return out
}

// IsQueryError reports whether err is a query compilation error.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

package memlite

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo/native"
)

// query is the value of a KindQuery object. It holds a reference on its
// database.
type query struct {
	db   native.Ptr
	text string
	plan *plan
}

func (q *query) describe() string {
	return fmt.Sprintf("db=%s %q", q.db, q.text)
}

func (q *query) free(l *Library) {
	l.Release(q.db)
}

// resultSet is the value of a KindResultSet object. It holds a reference on
// its query.
type resultSet struct {
	query native.Ptr
	rows  [][]any
	pos   int
}

func (rs *resultSet) describe() string {
	return fmt.Sprintf("query=%s rows=%d", rs.query, len(rs.rows))
}

func (rs *resultSet) free(l *Library) {
	l.Release(rs.query)
}

// CreateQuery implements native.Library. Only the N1QL form
//
//	SELECT <*|expr [AS alias], ...> FROM <name> [WHERE expr op literal]
//	    [ORDER BY expr [ASC|DESC]] [LIMIT n]
//
// is understood, where expr is a property path or META().id. On a syntax
// error errPos receives the byte offset of the offending token.
func (l *Library) CreateQuery(db native.Ptr, lang native.QueryLanguage, text string, errPos *int32, st *native.Status) native.Ptr {
	if errPos != nil {
		*errPos = -1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.openDB("CBLDatabase_CreateQuery", db, st)
	if d == nil {
		return 0
	}
	if lang != native.QueryN1QL {
		st.Set(native.DomainCBL, native.CodeUnimplemented)
		return 0
	}
	p, err := parseQuery(text)
	if err != nil {
		if errPos != nil {
			*errPos = int32(err.pos)
		}
		l.log.Debug("invalid query", zap.String("query", text), zap.Int("pos", err.pos), zap.String("reason", err.msg))
		st.Set(native.DomainCBL, native.CodeInvalidQuery)
		return 0
	}
	for i := range p.cols {
		if p.cols[i].star {
			p.cols[i].name = d.name
		}
	}
	l.Retain(db)
	return l.newObject(native.KindQuery, &query{db: db, text: text, plan: p})
}

// QueryColumnCount implements native.Library.
func (l *Library) QueryColumnCount(q native.Ptr) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.get("CBLQuery_ColumnCount", q, native.KindQuery).(*query).plan.cols)
}

// QueryColumnName implements native.Library.
func (l *Library) QueryColumnName(q native.Ptr, col int) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	cols := l.get("CBLQuery_ColumnName", q, native.KindQuery).(*query).plan.cols
	if col < 0 || col >= len(cols) {
		return ""
	}
	return cols[col].name
}

// ExecuteQuery implements native.Library. Rows are materialized at once.
func (l *Library) ExecuteQuery(q native.Ptr, st *native.Status) native.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	qu := l.get("CBLQuery_Execute", q, native.KindQuery).(*query)
	d := l.openDB("CBLQuery_Execute", qu.db, st)
	if d == nil {
		return 0
	}
	recs, err := l.liveRecordsLocked(d)
	if err != nil {
		st.Set(native.DomainCBL, native.CodeCorruptData)
		return 0
	}
	rows := qu.plan.run(recs)
	l.Retain(q)
	return l.newObject(native.KindResultSet, &resultSet{query: q, rows: rows, pos: -1})
}

// ResultSetNext implements native.Library.
func (l *Library) ResultSetNext(rs native.Ptr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.get("CBLResultSet_Next", rs, native.KindResultSet).(*resultSet)
	if r.pos < len(r.rows) {
		r.pos++
	}
	return r.pos < len(r.rows)
}

// ResultSetRowJSON implements native.Library. The row is a JSON array with
// one value per column.
func (l *Library) ResultSetRowJSON(rs native.Ptr, st *native.Status) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.get("CBLResultSet_RowArray", rs, native.KindResultSet).(*resultSet)
	if r.pos < 0 || r.pos >= len(r.rows) {
		st.Set(native.DomainCBL, native.CodeInvalidParameter)
		return ""
	}
	data, err := json.Marshal(r.rows[r.pos])
	if err != nil {
		st.Set(native.DomainFleece, native.FleeceEncodeError)
		return ""
	}
	return string(data)
}

// expr is a property path or META().id.
type expr struct {
	metaID bool
	path   []string
}

func (e expr) eval(rec *record) (any, bool) {
	if e.metaID {
		return rec.ID, true
	}
	var v any = rec.Body
	for _, key := range e.path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		if v, ok = m[key]; !ok {
			return nil, false
		}
	}
	return v, true
}

type column struct {
	star bool
	expr expr
	name string
}

type condition struct {
	left  expr
	op    string
	right any
}

// plan is a parsed query.
type plan struct {
	cols    []column
	where   *condition
	orderBy *expr
	desc    bool
	limit   int
}

func (p *plan) run(recs []*record) [][]any {
	var matched []*record
	for _, rec := range recs {
		if p.where == nil || p.where.match(rec) {
			matched = append(matched, rec)
		}
	}
	if p.orderBy != nil {
		key := *p.orderBy
		sort.SliceStable(matched, func(i, j int) bool {
			a, _ := key.eval(matched[i])
			b, _ := key.eval(matched[j])
			c := compareValues(a, b)
			if p.desc {
				return c > 0
			}
			return c < 0
		})
	}
	if p.limit >= 0 && len(matched) > p.limit {
		matched = matched[:p.limit]
	}
	rows := make([][]any, len(matched))
	for i, rec := range matched {
		row := make([]any, len(p.cols))
		for j, col := range p.cols {
			if col.star {
				row[j] = rec.Body
				continue
			}
			row[j], _ = col.expr.eval(rec)
		}
		rows[i] = row
	}
	return rows
}

func (c *condition) match(rec *record) bool {
	v, ok := c.left.eval(rec)
	if !ok {
		return false
	}
	if !sameType(v, c.right) {
		return c.op == "!="
	}
	n := compareValues(v, c.right)
	switch c.op {
	case "=":
		return n == 0
	case "!=":
		return n != 0
	case "<":
		return n < 0
	case "<=":
		return n <= 0
	case ">":
		return n > 0
	case ">=":
		return n >= 0
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// typeRank orders values of different types: missing/null, booleans,
// numbers, strings, then everything else.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		return 3
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	return 4
}

func sameType(a, b any) bool {
	return typeRank(a) == typeRank(b) && typeRank(a) < 4
}

func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case 2:
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case 3:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

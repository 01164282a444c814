package memlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/cblgo/native"
)

func seedPeople(t *testing.T, l *Library, db native.Ptr) {
	t.Helper()
	for id, body := range map[string]string{
		"p1": `{"name":"Ann","age":40,"city":{"name":"Oslo"}}`,
		"p2": `{"name":"Bob","age":25,"active":true}`,
		"p3": `{"name":"Cid","age":33}`,
		"p4": `{"pet":"cat"}`,
	} {
		l.Release(saveJSON(t, l, db, id, body))
	}
}

func runQuery(t *testing.T, l *Library, db native.Ptr, text string) []string {
	t.Helper()
	var st native.Status
	var pos int32
	q := l.CreateQuery(db, native.QueryN1QL, text, &pos, &st)
	require.NotZero(t, q, "%q: %+v at %d", text, st, pos)
	defer l.Release(q)

	rs := l.ExecuteQuery(q, &st)
	require.NotZero(t, rs)
	defer l.Release(rs)

	var rows []string
	for l.ResultSetNext(rs) {
		row := l.ResultSetRowJSON(rs, &st)
		require.False(t, st.Failed())
		rows = append(rows, row)
	}
	assert.False(t, l.ResultSetNext(rs))
	return rows
}

func TestQuery_Select(t *testing.T) {
	l := New()
	db := openDB(t, l, "people")
	defer l.Release(db)
	seedPeople(t, l, db)

	tests := []struct {
		query string
		want  []string
	}{
		{"SELECT META().id FROM _", []string{`["p1"]`, `["p2"]`, `["p3"]`, `["p4"]`}},
		{"SELECT name FROM _ WHERE age > 30 ORDER BY age", []string{`["Cid"]`, `["Ann"]`}},
		{"select name, age from people where age >= 25 order by name desc limit 2", []string{`["Cid",33]`, `["Bob",25]`}},
		{"SELECT META().id FROM _ WHERE name = 'Bob'", []string{`["p2"]`}},
		{"SELECT META().id FROM _ WHERE active = true", []string{`["p2"]`}},
		{"SELECT city.name AS town FROM _ WHERE city.name != 'Rome'", []string{`["Oslo"]`}},
		{"SELECT name FROM _ WHERE META().id = 'p4'", []string{`[null]`}},
		{"SELECT name FROM _ WHERE age < 0", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, runQuery(t, l, db, tt.query))
		})
	}
}

func TestQuery_Star(t *testing.T) {
	l := New()
	db := openDB(t, l, "stars")
	defer l.Release(db)
	l.Release(saveJSON(t, l, db, "a", `{"x":1}`))

	var st native.Status
	q := l.CreateQuery(db, native.QueryN1QL, "SELECT *, META().id FROM _", nil, &st)
	require.NotZero(t, q)
	defer l.Release(q)
	assert.Equal(t, 2, l.QueryColumnCount(q))
	assert.Equal(t, "stars", l.QueryColumnName(q, 0))
	assert.Equal(t, "id", l.QueryColumnName(q, 1))
	assert.Equal(t, "", l.QueryColumnName(q, 2))

	assert.Equal(t, []string{`[{"x":1},"a"]`}, runQuery(t, l, db, "SELECT *, META().id FROM _"))
}

func TestQuery_SyntaxErrors(t *testing.T) {
	l := New()
	db := openDB(t, l, "bad")
	defer l.Release(db)

	tests := []struct {
		query string
		pos   int32
	}{
		{"SELEKT name FROM _", 0},
		{"SELECT name _", 12},
		{"SELECT name FROM", 16},
		{"SELECT name FROM _ WHERE age ~ 3", 29},
		{"SELECT name FROM _ WHERE age > ", 31},
		{"SELECT name FROM _ LIMIT x", 25},
		{"SELECT name FROM _ extra", 19},
		{"SELECT 'open FROM _", 7},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var st native.Status
			pos := int32(99)
			q := l.CreateQuery(db, native.QueryN1QL, tt.query, &pos, &st)
			assert.Zero(t, q)
			assert.Equal(t, native.CodeInvalidQuery, st.Code)
			assert.Equal(t, tt.pos, pos)
		})
	}
	assert.Zero(t, l.InstanceCounts().Get(native.KindQuery))
}

func TestQuery_JSONLanguageUnimplemented(t *testing.T) {
	l := New()
	db := openDB(t, l, "json")
	defer l.Release(db)

	var st native.Status
	assert.Zero(t, l.CreateQuery(db, native.QueryJSON, `["SELECT",{}]`, nil, &st))
	assert.Equal(t, native.CodeUnimplemented, st.Code)
}

func TestQuery_RetainsDatabase(t *testing.T) {
	l := New()
	db := openDB(t, l, "owner")

	var st native.Status
	q := l.CreateQuery(db, native.QueryN1QL, "SELECT META().id FROM _", nil, &st)
	require.NotZero(t, q)
	assert.Equal(t, int32(2), l.RefCount(db))

	rs := l.ExecuteQuery(q, &st)
	require.NotZero(t, rs)
	assert.Equal(t, int32(2), l.RefCount(q))

	l.Release(db)
	l.Release(q)
	counts := l.InstanceCounts()
	assert.Equal(t, int64(1), counts.Get(native.KindDatabase), "the result set keeps the chain alive")
	assert.Equal(t, int64(1), counts.Get(native.KindQuery))

	l.Release(rs)
	assert.Zero(t, l.InstanceCounts().Total())
}

func TestQuery_RowBeforeNext(t *testing.T) {
	l := New()
	db := openDB(t, l, "rows")
	defer l.Release(db)

	var st native.Status
	q := l.CreateQuery(db, native.QueryN1QL, "SELECT * FROM _", nil, &st)
	defer l.Release(q)
	rs := l.ExecuteQuery(q, &st)
	defer l.Release(rs)

	assert.Equal(t, "", l.ResultSetRowJSON(rs, &st))
	assert.Equal(t, native.CodeInvalidParameter, st.Code)
}

func TestQuery_ExecuteOnClosedDatabase(t *testing.T) {
	l := New()
	db := openDB(t, l, "closing")
	defer l.Release(db)

	var st native.Status
	q := l.CreateQuery(db, native.QueryN1QL, "SELECT * FROM _", nil, &st)
	require.NotZero(t, q)
	defer l.Release(q)

	require.True(t, l.CloseDatabase(db, &st))
	assert.Zero(t, l.ExecuteQuery(q, &st))
	assert.Equal(t, native.CodeNotOpen, st.Code)
}

//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"github.com/obinnaokechukwu/cblgo/native"
)

// CreateQuery implements native.Library.
func (l *Library) CreateQuery(db native.Ptr, lang native.QueryLanguage, text string, errPos *int32, st *native.Status) native.Ptr {
	var pos int32 = -1
	p, n := flStr(text)
	q := native.Ptr(cblDatabaseCreateQuery(uintptr(db), uint32(lang), p, n, &pos, st))
	if errPos != nil {
		*errPos = pos
	}
	return q
}

// QueryColumnCount implements native.Library.
func (l *Library) QueryColumnCount(q native.Ptr) int {
	return int(cblQueryColumnCount(uintptr(q)))
}

// QueryColumnName implements native.Library.
func (l *Library) QueryColumnName(q native.Ptr, col int) string {
	if cblQueryColumnName == nil || col < 0 {
		return ""
	}
	return cblQueryColumnName(uintptr(q), uint32(col)).String()
}

// ExecuteQuery implements native.Library.
func (l *Library) ExecuteQuery(q native.Ptr, st *native.Status) native.Ptr {
	return native.Ptr(cblQueryExecute(uintptr(q), st))
}

// ResultSetNext implements native.Library.
func (l *Library) ResultSetNext(rs native.Ptr) bool {
	return cblResultSetNext(uintptr(rs))
}

// ResultSetRowJSON implements native.Library. The row array is owned by the
// result set; only the JSON copy is released.
func (l *Library) ResultSetRowJSON(rs native.Ptr, st *native.Status) string {
	if flValueToJSON == nil {
		unimplemented(st)
		return ""
	}
	arr := cblResultSetArray(uintptr(rs))
	if arr == 0 {
		st.Set(native.DomainCBL, native.CodeInvalidParameter)
		return ""
	}
	return flValueToJSON(arr).take()
}

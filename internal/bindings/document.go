//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"github.com/obinnaokechukwu/cblgo/native"
)

// NewDocument implements native.Library. An empty id lets the library
// generate one.
func (l *Library) NewDocument(id string) native.Ptr {
	p, n := flStr(id)
	return native.Ptr(cblDocumentCreateWithID(p, n))
}

// GetDocument implements native.Library.
func (l *Library) GetDocument(db native.Ptr, id string, st *native.Status) native.Ptr {
	p, n := flStr(id)
	return native.Ptr(cblDatabaseGetMutable(uintptr(db), p, n, st))
}

// SaveDocument implements native.Library.
func (l *Library) SaveDocument(db, doc native.Ptr, cc native.Concurrency, st *native.Status) bool {
	return cblDatabaseSaveDoc(uintptr(db), uintptr(doc), uint8(cc), st)
}

// DeleteDocument implements native.Library.
func (l *Library) DeleteDocument(db, doc native.Ptr, cc native.Concurrency, st *native.Status) bool {
	return cblDatabaseDeleteDoc(uintptr(db), uintptr(doc), uint8(cc), st)
}

// PurgeDocument implements native.Library.
func (l *Library) PurgeDocument(db native.Ptr, id string, st *native.Status) bool {
	p, n := flStr(id)
	return cblDatabasePurgeByID(uintptr(db), p, n, st)
}

// DocumentID implements native.Library.
func (l *Library) DocumentID(doc native.Ptr) string {
	if cblDocumentID == nil {
		return ""
	}
	return cblDocumentID(uintptr(doc)).String()
}

// DocumentRevisionID implements native.Library.
func (l *Library) DocumentRevisionID(doc native.Ptr) string {
	if cblDocumentRevisionID == nil {
		return ""
	}
	return cblDocumentRevisionID(uintptr(doc)).String()
}

// DocumentSequence implements native.Library.
func (l *Library) DocumentSequence(doc native.Ptr) uint64 {
	return cblDocumentSequence(uintptr(doc))
}

// DocumentJSON implements native.Library.
func (l *Library) DocumentJSON(doc native.Ptr, st *native.Status) string {
	if cblDocumentCreateJSON == nil {
		unimplemented(st)
		return ""
	}
	return cblDocumentCreateJSON(uintptr(doc)).take()
}

// SetDocumentJSON implements native.Library.
func (l *Library) SetDocumentJSON(doc native.Ptr, json string, st *native.Status) bool {
	p, n := flStr(json)
	return cblDocumentSetJSON(uintptr(doc), p, n, st)
}

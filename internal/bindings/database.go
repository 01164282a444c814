//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"runtime"
	"unsafe"

	"github.com/obinnaokechukwu/cblgo/internal/handles"
	"github.com/obinnaokechukwu/cblgo/native"
)

// OpenDatabase implements native.Library.
func (l *Library) OpenDatabase(name string, cfg native.DatabaseConfig, st *native.Status) native.Ptr {
	if len(cfg.EncryptionKey) > 0 {
		// Community Edition builds have no encryption.
		st.Set(native.DomainCBL, native.CodeUnsupportedEncryption)
		return 0
	}

	var pin runtime.Pinner
	defer pin.Unpin()

	var conf unsafe.Pointer
	if cfg.Directory != "" {
		dir, n := flStr(cfg.Directory)
		pin.Pin(dir)
		c := &databaseConfiguration{directory: flSlice{buf: unsafe.Pointer(dir), size: n}}
		conf = unsafe.Pointer(c)
		defer runtime.KeepAlive(c)
	}

	p, n := flStr(name)
	return native.Ptr(cblDatabaseOpen(p, n, conf, st))
}

// CloseDatabase implements native.Library.
func (l *Library) CloseDatabase(db native.Ptr, st *native.Status) bool {
	return cblDatabaseClose(uintptr(db), st)
}

// DeleteDatabase implements native.Library.
func (l *Library) DeleteDatabase(db native.Ptr, st *native.Status) bool {
	return cblDatabaseDelete(uintptr(db), st)
}

// DeleteDatabaseFile implements native.Library.
func (l *Library) DeleteDatabaseFile(name, dir string, st *native.Status) bool {
	np, nn := flStr(name)
	dp, dn := flStr(dir)
	return cblDeleteDatabase(np, nn, dp, dn, st)
}

// DatabaseExists implements native.Library.
func (l *Library) DatabaseExists(name, dir string) bool {
	np, nn := flStr(name)
	dp, dn := flStr(dir)
	return cblDatabaseExists(np, nn, dp, dn)
}

// DatabaseName implements native.Library. It returns "" where struct returns
// are unavailable.
func (l *Library) DatabaseName(db native.Ptr) string {
	if cblDatabaseName == nil {
		return ""
	}
	return cblDatabaseName(uintptr(db)).String()
}

// DatabasePath implements native.Library. It returns "" where struct returns
// are unavailable.
func (l *Library) DatabasePath(db native.Ptr) string {
	if cblDatabasePath == nil {
		return ""
	}
	return cblDatabasePath(uintptr(db)).take()
}

// DatabaseCount implements native.Library.
func (l *Library) DatabaseCount(db native.Ptr) uint64 {
	return cblDatabaseCount(uintptr(db))
}

// BeginTransaction implements native.Library.
func (l *Library) BeginTransaction(db native.Ptr, st *native.Status) bool {
	return cblDatabaseBeginTx(uintptr(db), st)
}

// EndTransaction implements native.Library.
func (l *Library) EndTransaction(db native.Ptr, commit bool, st *native.Status) bool {
	return cblDatabaseEndTx(uintptr(db), commit, st)
}

// changeCallback is the C function pointer of changeTrampoline.
var changeCallback uintptr

// changeTrampoline is the CBLDatabaseChangeListener every Go listener is
// registered through. ctx is the listener's handle.
// Signature: void (*)(void *context, const CBLDatabase *db, unsigned numDocs, FLString docIDs[])
func changeTrampoline(ctx uintptr, db uintptr, numDocs uint32, docIDs unsafe.Pointer) {
	fn, ok := handles.Get[native.ChangeFunc](ctx)
	if !ok {
		return
	}
	ids := make([]string, numDocs)
	for i := range ids {
		ids[i] = flStringAt(docIDs, i)
	}
	fn(native.Ptr(db), ids)
}

// AddChangeListener implements native.Library.
func (l *Library) AddChangeListener(db native.Ptr, fn native.ChangeFunc) native.Ptr {
	h := handles.Register(fn)
	token := native.Ptr(cblDatabaseAddListener(uintptr(db), changeCallback, h))
	if token.IsNil() {
		handles.Unregister(h)
		return 0
	}
	l.track(token, native.KindListenerToken, h, func() {
		handles.Unregister(h)
		cblListenerRemove(uintptr(token))
	})
	return token
}

// RemoveListener implements native.Library. It detaches the Go callback at
// once; the native listener is removed, and the token freed, by the last
// Release.
func (l *Library) RemoveListener(token native.Ptr) {
	l.mu.Lock()
	obj, ok := l.local[token]
	l.mu.Unlock()
	if ok {
		handles.Unregister(obj.handle)
	}
}

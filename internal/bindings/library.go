//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"fmt"
	"sync"

	"github.com/obinnaokechukwu/cblgo/native"
)

// Library is the libcblite backend. Obtain it with Default.
//
// Endpoints and authenticators are plain heap objects in the C API, freed
// with CBLEndpoint_Free and CBLAuth_Free. Listener tokens are refcounted but
// must also be removed. The binding counts references to both on the Go side
// so every object follows the same Retain/Release contract.
type Library struct {
	path    string
	version native.Version

	mu    sync.Mutex
	local map[native.Ptr]*localObject
}

// localObject is an object whose references are counted here instead of by
// libcblite: endpoints and authenticators, which CBL 3.0 frees rather than
// refcounts, and listener tokens. free runs once, at the last Release, and
// makes the only native call that drops the object. For a token that is
// CBLListener_Remove, which also releases it, so CBL_Release is never called
// on a token.
type localObject struct {
	kind   native.Kind
	refs   int32
	handle uintptr // listener context, tokens only
	free   func()
}

var _ native.Library = (*Library)(nil)

// Name implements native.Library.
func (l *Library) Name() string {
	return "libcblite"
}

// Version implements native.Library.
func (l *Library) Version() native.Version {
	return l.version
}

// Path returns the file the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// ErrorMessage implements native.Messenger.
func (l *Library) ErrorMessage(st native.Status) string {
	if cblErrorMessage == nil || !st.Failed() {
		return native.DefaultMessage(st)
	}
	return cblErrorMessage(&st).take()
}

func (l *Library) track(p native.Ptr, kind native.Kind, handle uintptr, free func()) {
	l.mu.Lock()
	l.local[p] = &localObject{kind: kind, refs: 1, handle: handle, free: free}
	l.mu.Unlock()
}

// Retain implements native.Library.
func (l *Library) Retain(p native.Ptr) native.Ptr {
	if p.IsNil() {
		return 0
	}
	l.mu.Lock()
	if obj, ok := l.local[p]; ok {
		obj.refs++
		l.mu.Unlock()
		return p
	}
	l.mu.Unlock()
	return native.Ptr(cblRetain(uintptr(p)))
}

// Release implements native.Library.
func (l *Library) Release(p native.Ptr) {
	if p.IsNil() {
		return
	}
	l.mu.Lock()
	obj, ok := l.local[p]
	if !ok {
		l.mu.Unlock()
		cblRelease(uintptr(p))
		return
	}
	obj.refs--
	if obj.refs > 0 {
		l.mu.Unlock()
		return
	}
	delete(l.local, p)
	l.mu.Unlock()
	obj.free()
}

// InstanceCounts implements native.Library. libcblite keeps a single
// counter, reported under KindAll.
func (l *Library) InstanceCounts() native.Counts {
	return native.Counts{native.KindAll: int64(cblInstanceCount())}
}

// DumpInstances writes the live objects to the native log and returns nil:
// libcblite does not hand the list back to the caller.
func (l *Library) DumpInstances() []native.Instance {
	cblDumpInstances()
	return nil
}

// String describes the backend for logs.
func (l *Library) String() string {
	return fmt.Sprintf("libcblite %s (%s)", l.version, l.path)
}

func unimplemented(st *native.Status) {
	st.Set(native.DomainCBL, native.CodeUnimplemented)
}

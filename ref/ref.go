// Package ref implements ownership of reference-counted native objects.
//
// A Ref holds exactly one native reference (retain) on an object and gives it
// back exactly once. Copying a Ref is explicit: Retain returns a second Ref
// with its own reference. Release is guarded by an atomic flag, so a second
// Release, or any use after it, fails with ErrReleased instead of decrementing
// the native count again.
//
// Typical lifetime:
//
//	db, err := ref.Acquire(lib, native.KindDatabase, "CBLDatabase_Open",
//	    func(st *native.Status) native.Ptr {
//	        return lib.OpenDatabase("app", cfg, st)
//	    })
//	if err != nil {
//	    return err
//	}
//	defer db.Release()
//
// Borrow exposes the raw pointer for passing to native calls. The pointer is
// only valid while the Ref is unreleased and must never be released by the
// borrower. The Ref, or the wrapper holding it, must stay reachable until the
// native call returns (runtime.KeepAlive), or the leak cleanup may run while
// the pointer is in use.
//
// Refs that become unreachable without being released are reported by a GC
// cleanup; see SetLeakPolicy.
package ref

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo/native"
)

var (
	// ErrReleased is returned by every operation on a Ref after Release.
	ErrReleased = errors.New("cblgo: handle used after release")

	// ErrNilHandle is returned when adopting or retaining a null pointer.
	ErrNilHandle = errors.New("cblgo: nil native handle")
)

// Handle is an opaque native pointer paired with its kind. It carries no
// ownership.
type Handle struct {
	ptr  native.Ptr
	kind native.Kind
}

// NewHandle pairs a pointer with its kind.
func NewHandle(p native.Ptr, k native.Kind) Handle {
	return Handle{ptr: p, kind: k}
}

// Ptr returns the raw native pointer.
func (h Handle) Ptr() native.Ptr { return h.ptr }

// Kind returns the object kind.
func (h Handle) Kind() native.Kind { return h.kind }

// IsNil reports whether the handle points nowhere.
func (h Handle) IsNil() bool { return h.ptr.IsNil() }

// String formats the handle as "Kind@0x...".
func (h Handle) String() string {
	return fmt.Sprintf("%s@%s", h.kind, h.ptr)
}

// state is shared between a Ref and its GC cleanup. It must never point
// back at the Ref.
type state struct {
	lib      native.Library
	h        Handle
	owned    bool
	released atomic.Bool
}

// Ref is the owner of one native reference, or a borrowed view of one.
type Ref struct {
	st *state
}

var liveRefs atomic.Int64

// LiveRefs returns the number of owned Refs not yet released in this process.
func LiveRefs() int64 {
	return liveRefs.Load()
}

func newOwned(lib native.Library, h Handle) *Ref {
	r := &Ref{st: &state{lib: lib, h: h, owned: true}}
	liveRefs.Add(1)
	runtime.AddCleanup(r, cleanupLeaked, r.st)
	return r
}

// Acquire runs a native constructor and takes ownership of the reference it
// returns. The status is checked before the pointer: when the call reports
// failure nothing is retained or released, whatever the out slot holds.
func Acquire(lib native.Library, kind native.Kind, op string, fn func(st *native.Status) native.Ptr) (*Ref, error) {
	var st native.Status
	p := fn(&st)
	p, err := native.CheckPtr(op, p, st, lib)
	if err != nil {
		return nil, err
	}
	return newOwned(lib, Handle{ptr: p, kind: kind}), nil
}

// AcquireLookup is Acquire for lookups, where a null pointer with a clean
// status means the object was not found.
func AcquireLookup(lib native.Library, kind native.Kind, op string, fn func(st *native.Status) native.Ptr) (*Ref, error) {
	var st native.Status
	p := fn(&st)
	p, err := native.CheckLookup(op, p, st, lib)
	if err != nil {
		return nil, err
	}
	return newOwned(lib, Handle{ptr: p, kind: kind}), nil
}

// Adopt takes ownership of a reference the caller already holds, such as the
// result of an infallible native constructor.
func Adopt(lib native.Library, h Handle) (*Ref, error) {
	if h.IsNil() {
		return nil, ErrNilHandle
	}
	return newOwned(lib, h), nil
}

// RetainHandle adds a reference to a borrowed pointer and owns it. Use it to
// keep an object handed to a callback beyond the callback's duration.
func RetainHandle(lib native.Library, h Handle) (*Ref, error) {
	if h.IsNil() {
		return nil, ErrNilHandle
	}
	p := lib.Retain(h.ptr)
	return newOwned(lib, Handle{ptr: p, kind: h.kind}), nil
}

// Borrowed wraps a pointer without owning it. Releasing a borrowed Ref ends
// the view and leaves the native count untouched.
func Borrowed(lib native.Library, h Handle) *Ref {
	return &Ref{st: &state{lib: lib, h: h}}
}

// Retain returns a new owned Ref sharing the same native object. The object
// lives until every Ref referencing it has been released.
//
// A Ref has one owner: Retain and Release on the same Ref must not run
// concurrently, since a Release between the released check and the native
// retain would free the object first.
func (r *Ref) Retain() (*Ref, error) {
	defer runtime.KeepAlive(r)
	if err := r.guard("retain"); err != nil {
		return nil, err
	}
	p := r.st.lib.Retain(r.st.h.ptr)
	return newOwned(r.st.lib, Handle{ptr: p, kind: r.st.h.kind}), nil
}

// Release gives the reference back to the native side. Only the first call
// has an effect; later calls return ErrReleased.
func (r *Ref) Release() error {
	if r == nil || r.st == nil {
		return ErrNilHandle
	}
	if !r.st.released.CompareAndSwap(false, true) {
		reportUseAfterRelease("release", r.st.h)
		return ErrReleased
	}
	if r.st.owned {
		r.st.lib.Release(r.st.h.ptr)
		liveRefs.Add(-1)
	}
	return nil
}

// Close is Release in io.Closer form, for defer.
func (r *Ref) Close() error {
	return r.Release()
}

// Borrow returns the raw handle for passing to a native call. It does not
// transfer ownership: the caller must not release it, and must keep r
// reachable until the call returns.
func (r *Ref) Borrow() (Handle, error) {
	if err := r.guard("borrow"); err != nil {
		return Handle{}, err
	}
	return r.st.h, nil
}

// MustBorrow is Borrow for call paths where a released Ref is a programming
// error. It panics with ErrReleased.
func (r *Ref) MustBorrow() Handle {
	h, err := r.Borrow()
	if err != nil {
		panic(err)
	}
	return h
}

// Kind returns the object kind. It stays valid after release.
func (r *Ref) Kind() native.Kind {
	if r == nil || r.st == nil {
		return native.KindUnknown
	}
	return r.st.h.kind
}

// Owned reports whether the Ref holds a native reference of its own.
func (r *Ref) Owned() bool {
	return r != nil && r.st != nil && r.st.owned
}

// Released reports whether Release has been called.
func (r *Ref) Released() bool {
	return r == nil || r.st == nil || r.st.released.Load()
}

// Library returns the backend the Ref belongs to.
func (r *Ref) Library() native.Library {
	if r == nil || r.st == nil {
		return nil
	}
	return r.st.lib
}

// String formats the Ref for logs.
func (r *Ref) String() string {
	if r == nil || r.st == nil {
		return "<nil ref>"
	}
	mode := "owned"
	if !r.st.owned {
		mode = "borrowed"
	}
	if r.st.released.Load() {
		mode += ",released"
	}
	return fmt.Sprintf("%s(%s)", r.st.h, mode)
}

func (r *Ref) guard(op string) error {
	if r == nil || r.st == nil {
		return ErrNilHandle
	}
	if r.st.released.Load() {
		reportUseAfterRelease(op, r.st.h)
		return ErrReleased
	}
	return nil
}

func reportUseAfterRelease(op string, h Handle) {
	Logger().Error("use after release",
		zap.String("op", op),
		zap.Stringer("kind", h.kind),
		zap.Stringer("ptr", h.ptr),
		zap.Stack("stack"))
}
